package core

// record.go defines the dynamic record shape that flows through the pipeline.
//
// Client files have no fixed layout, so a record is a map from field name to a
// tagged Value. A key holding a missing Value is not the same as an absent key:
// after mapping, every canonical field exists, and fields the source could not
// supply hold Missing().

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindDate
)

// DateLayout is the canonical rendering of date values.
const DateLayout = "2006-01-02"

// Value is a single field value: a string, a number, a calendar date, or missing.
type Value struct {
	kind Kind
	str  string
	num  float64
	date time.Time
}

// Missing returns the explicit missing marker.
func Missing() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Date returns a date value truncated to the calendar day.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload. Only meaningful for KindNumber.
func (v Value) Float() float64 { return v.num }

// Time returns the date payload. Only meaningful for KindDate.
func (v Value) Time() time.Time { return v.date }

// Text returns the canonical textual form used by rules and storage.
// Missing values render as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// Raw returns the value as a plain Go value: nil, string, or float64.
// Dates are returned in their canonical string form.
func (v Value) Raw() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.kind == KindMissing {
		return "<missing>"
	}
	return v.Text()
}

// MarshalJSON encodes missing as null, numbers as JSON numbers and
// everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

// UnmarshalJSON accepts null, strings, numbers and booleans.
// Booleans are kept as their string form.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Missing()
		return nil
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a decoded JSON/YAML scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Missing(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case bool:
		return String(strconv.FormatBool(x)), nil
	case time.Time:
		return Date(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Record is one row of loan data keyed by field name.
type Record map[string]Value

// Get returns the value for a field and whether the key exists.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text returns the textual form of a field, or "" if absent or missing.
func (r Record) Text(field string) string {
	return r[field].Text()
}

// RejectedRecord is a record that failed validation, with its diagnostics.
type RejectedRecord struct {
	Record Record
	Errors []string
}

// ErrorsKey is the field name under which rejected records carry their errors
// when flattened.
const ErrorsKey = "errors"

// MarshalJSON flattens the record and adds the errors list under ErrorsKey.
func (r RejectedRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Record)+1)
	for k, v := range r.Record {
		flat[k] = v.Raw()
	}
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	flat[ErrorsKey] = errs
	return json.Marshal(flat)
}
