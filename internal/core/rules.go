package core

// rules.go holds the field-level checks the Validator is built from.
//
// Every rule is stateless: it receives a value and the field name, and returns
// nil on success or a *ValidationError whose message names the field. The
// messages are stable strings that end up in rejected-record diagnostics and
// in the top-reasons section of the quality report.

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Rule identifies which check produced a ValidationError.
type Rule int

const (
	RuleRequired Rule = iota
	RuleNumeric
	RuleNonNegative
	RuleAllowedValues
	RuleValidDate
)

func (r Rule) String() string {
	switch r {
	case RuleRequired:
		return "required"
	case RuleNumeric:
		return "numeric"
	case RuleNonNegative:
		return "non_negative"
	case RuleAllowedValues:
		return "allowed_values"
	case RuleValidDate:
		return "valid_date"
	default:
		return "unknown"
	}
}

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Canonical field name
	Value   string // The offending value, "" when missing
	Rule    Rule   // Check that failed
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(rule Rule, field string, v Value, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   v.Text(),
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
	}
}

// Required fails on a missing value or an empty string.
// Zero and false are present values.
func Required(v Value, field string) error {
	if v.IsMissing() || (v.Kind() == KindString && v.Text() == "") {
		return newValidationError(RuleRequired, field, v, "Missing required field: %s", field)
	}
	return nil
}

// Numeric fails when the value cannot be read as a float.
func Numeric(v Value, field string) error {
	if _, ok := numberOf(v); !ok {
		return newValidationError(RuleNumeric, field, v, "Invalid number for field: %s", field)
	}
	return nil
}

// NonNegative fails on values below zero. Unparseable input yields the
// Numeric error.
func NonNegative(v Value, field string) error {
	f, ok := numberOf(v)
	if !ok {
		return newValidationError(RuleNumeric, field, v, "Invalid number for field: %s", field)
	}
	if f < 0 {
		return newValidationError(RuleNonNegative, field, v, "Negative value not allowed for field: %s", field)
	}
	return nil
}

// AllowedValues fails when the textual value is not an exact member of allowed.
func AllowedValues(v Value, field string, allowed []string) error {
	if slices.Contains(allowed, v.Text()) {
		return nil
	}
	return newValidationError(RuleAllowedValues, field, v, "Invalid value '%s' for field: %s", v.Text(), field)
}

// ValidDate passes date values and strings that parse with any of patterns.
func ValidDate(v Value, field string, patterns []string) error {
	switch v.Kind() {
	case KindDate:
		return nil
	case KindString:
		if _, ok := ParseDate(v.Text(), patterns); ok {
			return nil
		}
	}
	return newValidationError(RuleValidDate, field, v, "Invalid date format for field: %s", field)
}

// validDatetime is ValidDate plus the canonical timestamp layouts.
func validDatetime(v Value, field string, patterns []string) error {
	if v.Kind() == KindString && parseDatetime(v.Text()) {
		return nil
	}
	return ValidDate(v, field, patterns)
}

// numberOf reads v as a finite decimal number. NaN, infinities and hex
// floats parse with strconv but have no numeric column value, so they fail.
func numberOf(v Value) (float64, bool) {
	var f float64
	switch v.Kind() {
	case KindNumber:
		f = v.Float()
	case KindString:
		s := strings.TrimSpace(v.Text())
		if strings.ContainsAny(s, "xX") {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
