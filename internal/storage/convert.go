package storage

// convert.go coerces canonical records into typed table rows.
//
// Clean records have already passed validation, but their values are still
// mostly strings as read from the client file. These helpers turn them into
// pgtype values the PostgreSQL driver can bind directly, and the SQLite store
// reads the same rows through the *Value helpers at the bottom of the file.
//
// All ToPg* functions return Valid=false for missing or unparseable input,
// which the database stores as NULL.

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// loanColumns are the typed columns of the loans table. Other record fields
// are kept in the extra JSON column.
var loanColumns = []string{
	core.FieldLoanID,
	"borrower_name",
	core.FieldLoanAmount,
	core.FieldStatus,
	core.FieldOpenDate,
	core.FieldClientID,
	core.FieldIngestionID,
	core.FieldIngestionTimestamp,
}

// LoanRow is one row of the loans table.
type LoanRow struct {
	LoanID             string
	BorrowerName       pgtype.Text
	LoanAmount         pgtype.Numeric
	LoanStatus         pgtype.Text
	OpenDate           pgtype.Date
	ClientID           pgtype.Text
	IngestionID        pgtype.Text
	IngestionTimestamp pgtype.Timestamptz
	Extra              []byte // JSON object, nil when there are no extra fields
}

// NewLoanRow coerces a clean record. It fails when loan_id is missing or a
// present value cannot be converted to its column type.
func NewLoanRow(rec core.Record) (LoanRow, error) {
	id := strings.TrimSpace(rec.Text(core.FieldLoanID))
	if id == "" {
		return LoanRow{}, fmt.Errorf("loan has no %s", core.FieldLoanID)
	}

	row := LoanRow{
		LoanID:             id,
		BorrowerName:       ToPgText(rec["borrower_name"]),
		LoanAmount:         ToPgNumeric(rec[core.FieldLoanAmount]),
		LoanStatus:         ToPgText(rec[core.FieldStatus]),
		OpenDate:           ToPgDate(rec[core.FieldOpenDate]),
		ClientID:           ToPgText(rec[core.FieldClientID]),
		IngestionID:        ToPgText(rec[core.FieldIngestionID]),
		IngestionTimestamp: ToPgTimestamptz(rec[core.FieldIngestionTimestamp]),
	}

	if !rec[core.FieldLoanAmount].IsMissing() && !row.LoanAmount.Valid {
		return LoanRow{}, fmt.Errorf("loan %s: invalid number for %s: %q", id, core.FieldLoanAmount, rec.Text(core.FieldLoanAmount))
	}
	if !rec[core.FieldOpenDate].IsMissing() && !row.OpenDate.Valid {
		return LoanRow{}, fmt.Errorf("loan %s: invalid date for %s: %q", id, core.FieldOpenDate, rec.Text(core.FieldOpenDate))
	}

	extra, err := extraFields(rec, loanColumns)
	if err != nil {
		return LoanRow{}, fmt.Errorf("loan %s: %w", id, err)
	}
	row.Extra = extra
	return row, nil
}

// args returns the insert arguments in loanColumns order plus extra.
func (r LoanRow) args() []any {
	return []any{
		r.LoanID, r.BorrowerName, r.LoanAmount, r.LoanStatus, r.OpenDate,
		r.ClientID, r.IngestionID, r.IngestionTimestamp, r.Extra,
	}
}

// RejectedRow is one row of the rejected_loans table.
type RejectedRow struct {
	ID              pgtype.UUID
	Fields          []pgtype.Text // loanColumns order, raw text
	RejectionReason string
	Errors          []byte // JSON array of messages
	Record          []byte // full rejected record as JSON
}

// NewRejectedRow renders a rejected record as text columns with its diagnostics.
// Rows get a fresh id since rejected loans may lack or repeat a loan_id.
func NewRejectedRow(rr core.RejectedRecord) (RejectedRow, error) {
	fields := make([]pgtype.Text, len(loanColumns))
	for i, col := range loanColumns {
		fields[i] = ToPgText(rr.Record[col])
	}

	errs := rr.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return RejectedRow{}, fmt.Errorf("encode errors: %w", err)
	}
	recJSON, err := json.Marshal(rr)
	if err != nil {
		return RejectedRow{}, fmt.Errorf("encode record: %w", err)
	}

	return RejectedRow{
		ID:              pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Fields:          fields,
		RejectionReason: strings.Join(errs, "; "),
		Errors:          errJSON,
		Record:          recJSON,
	}, nil
}

func (r RejectedRow) args() []any {
	out := make([]any, 0, len(r.Fields)+4)
	out = append(out, r.ID)
	for _, f := range r.Fields {
		out = append(out, f)
	}
	return append(out, r.RejectionReason, r.Errors, r.Record)
}

// extraFields encodes the record fields that have no column of their own.
func extraFields(rec core.Record, columns []string) ([]byte, error) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	extra := make(map[string]any)
	for k, v := range rec {
		if !known[k] {
			extra[k] = v.Raw()
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return json.Marshal(extra)
}

// ToPgText converts a value to pgtype.Text.
// Returns invalid if the value is missing or only whitespace.
func ToPgText(v core.Value) pgtype.Text {
	s := strings.TrimSpace(v.Text())
	if v.IsMissing() || s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgNumeric converts a value to pgtype.Numeric.
// Strings may carry currency symbols, thousands separators, and accounting
// format (parentheses for negative).
func ToPgNumeric(v core.Value) pgtype.Numeric {
	switch v.Kind() {
	case core.KindNumber:
		return scanNumeric(strconv.FormatFloat(v.Float(), 'f', -1, 64))
	case core.KindString:
		return ParseNumeric(v.Text())
	default:
		return pgtype.Numeric{Valid: false}
	}
}

// ParseNumeric cleans and parses a numeric string.
func ParseNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}
	return scanNumeric(s)
}

func scanNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgDate converts a value to pgtype.Date. Strings must be ISO dates, which
// is what the transformer produces for open_date.
func ToPgDate(v core.Value) pgtype.Date {
	switch v.Kind() {
	case core.KindDate:
		return pgtype.Date{Time: v.Time(), Valid: true}
	case core.KindString:
		s := strings.TrimSpace(v.Text())
		if t, err := time.Parse(core.DateLayout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}
	return pgtype.Date{Valid: false}
}

// timestampLayouts are accepted for ingestion_timestamp, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ToPgTimestamptz converts a value to pgtype.Timestamptz. Timestamps without
// a zone are taken as UTC.
func ToPgTimestamptz(v core.Value) pgtype.Timestamptz {
	switch v.Kind() {
	case core.KindDate:
		return pgtype.Timestamptz{Time: v.Time(), Valid: true}
	case core.KindString:
		s := strings.TrimSpace(v.Text())
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
			}
		}
	}
	return pgtype.Timestamptz{Valid: false}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// The helpers below adapt pgtype values for database/sql drivers that store
// dates and timestamps as text.

func textValue(t pgtype.Text) any {
	if !t.Valid {
		return nil
	}
	return t.String
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}

func dateValue(d pgtype.Date) any {
	if !d.Valid {
		return nil
	}
	return d.Time.Format(core.DateLayout)
}

func timestampValue(ts pgtype.Timestamptz) any {
	if !ts.Valid {
		return nil
	}
	return ts.Time.UTC().Format(time.RFC3339Nano)
}

func bytesValue(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
