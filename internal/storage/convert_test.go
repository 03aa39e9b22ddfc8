package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// ----------------------------------------------------------------------------
// ParseNumeric Tests
// ----------------------------------------------------------------------------

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		valid bool
	}{
		{"integer", "15000", 15000, true},
		{"decimal", "1234.56", 1234.56, true},
		{"currency", "$1,234.56", 1234.56, true},
		{"euro", "€99", 99, true},
		{"accounting negative", "(500.00)", -500, true},
		{"explicit negative", "-12", -12, true},
		{"padded", "  42 ", 42, true},
		{"empty", "", 0, false},
		{"letters", "abc", 0, false},
		{"two dots", "1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ParseNumeric(tt.input)
			require.Equal(t, tt.valid, n.Valid)
			if !tt.valid {
				return
			}
			f, err := n.Float64Value()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, f.Float64, 0.0001)
		})
	}
}

func TestToPgNumeric_Number(t *testing.T) {
	n := ToPgNumeric(core.Number(2500.5))
	require.True(t, n.Valid)
	f, err := n.Float64Value()
	require.NoError(t, err)
	assert.InDelta(t, 2500.5, f.Float64, 0.0001)

	assert.False(t, ToPgNumeric(core.Missing()).Valid)
}

// ----------------------------------------------------------------------------
// Date and timestamp Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input core.Value
		valid bool
	}{
		{"date value", core.Date(want), true},
		{"iso string", core.String("2024-05-01"), true},
		{"rfc3339 string", core.String("2024-05-01T10:00:00Z"), true},
		{"client format", core.String("05/01/2024"), false},
		{"missing", core.Missing(), false},
		{"number", core.Number(20240501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ToPgDate(tt.input)
			require.Equal(t, tt.valid, d.Valid)
			if tt.valid {
				assert.True(t, want.Equal(d.Time))
			}
		})
	}
}

func TestToPgTimestamptz(t *testing.T) {
	ts := ToPgTimestamptz(core.String("2024-06-01T12:30:45.123456789Z"))
	require.True(t, ts.Valid)
	assert.Equal(t, 123456789, ts.Time.Nanosecond())

	ts = ToPgTimestamptz(core.String("2024-06-01T12:30:45"))
	require.True(t, ts.Valid)
	assert.Equal(t, time.UTC, ts.Time.Location())

	assert.False(t, ToPgTimestamptz(core.String("yesterday")).Valid)
}

// ----------------------------------------------------------------------------
// Row Tests
// ----------------------------------------------------------------------------

func TestNewLoanRow(t *testing.T) {
	rec := core.Record{
		"loan_id":             core.String(" L001 "),
		"borrower_name":       core.String("John Doe"),
		"loan_amount":         core.String("15000"),
		"loan_status":         core.String("ACTIVE"),
		"open_date":           core.String("2024-05-01"),
		"client_id":           core.String("lender_a"),
		"ingestion_id":        core.String("INGEST_1"),
		"ingestion_timestamp": core.String("2024-06-01T12:30:45Z"),
		"branch":              core.String("north"),
	}

	row, err := NewLoanRow(rec)
	require.NoError(t, err)

	assert.Equal(t, "L001", row.LoanID)
	assert.Equal(t, "John Doe", row.BorrowerName.String)
	assert.True(t, row.LoanAmount.Valid)
	assert.True(t, row.OpenDate.Valid)
	assert.True(t, row.IngestionTimestamp.Valid)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(row.Extra, &extra))
	assert.Equal(t, map[string]any{"branch": "north"}, extra)
	assert.Len(t, row.args(), len(loanColumns)+1)
}

func TestNewLoanRow_NoExtra(t *testing.T) {
	row, err := NewLoanRow(core.Record{"loan_id": core.String("L001")})
	require.NoError(t, err)
	assert.Nil(t, row.Extra)
	assert.False(t, row.LoanAmount.Valid)
}

func TestNewLoanRow_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rec     core.Record
		wantErr string
	}{
		{"missing id", core.Record{"loan_amount": core.String("1")}, "loan has no loan_id"},
		{"bad amount", core.Record{"loan_id": core.String("L1"), "loan_amount": core.String("lots")}, "invalid number"},
		{"bad date", core.Record{"loan_id": core.String("L1"), "open_date": core.String("soon")}, "invalid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoanRow(tt.rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRejectedRow(t *testing.T) {
	rr := core.RejectedRecord{
		Record: core.Record{
			"loan_id":     core.String("L002"),
			"loan_amount": core.String("-5"),
		},
		Errors: []string{
			"Negative value not allowed for field: loan_amount",
			"Missing required field: open_date",
		},
	}

	row, err := NewRejectedRow(rr)
	require.NoError(t, err)

	assert.True(t, row.ID.Valid)
	assert.Len(t, PgUUIDToString(row.ID), 36)
	assert.Equal(t, "Negative value not allowed for field: loan_amount; Missing required field: open_date", row.RejectionReason)
	assert.Equal(t, "L002", row.Fields[0].String)
	assert.Len(t, row.args(), len(rejectedColumns))

	var stored map[string]any
	require.NoError(t, json.Unmarshal(row.Record, &stored))
	assert.Equal(t, "-5", stored["loan_amount"])
	assert.Len(t, stored["errors"], 2)
}

func TestNewRejectedRow_NoErrors(t *testing.T) {
	row, err := NewRejectedRow(core.RejectedRecord{Record: core.Record{}})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(row.Errors))
	assert.Empty(t, row.RejectionReason)
}

// ----------------------------------------------------------------------------
// SQL builder Tests
// ----------------------------------------------------------------------------

func TestDialectStatements(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", postgresDialect.placeholders(3))
	assert.Equal(t, "?, ?, ?", sqliteDialect.placeholders(3))

	assert.Contains(t, postgresDialect.insertLoan(), "ON CONFLICT (loan_id) DO NOTHING")
	assert.Contains(t, sqliteDialect.upsertRun(), "status = excluded.status")
	assert.NotContains(t, sqliteDialect.upsertRun(), "ingestion_id = excluded")
}

func TestChunks(t *testing.T) {
	assert.Empty(t, chunks(0, 500))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 500))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open(t.Context(), "mysql://localhost/loans", PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database url scheme")

	assert.Equal(t, "postgres", Backend("postgresql://localhost/loans"))
	assert.Equal(t, "sqlite", Backend("data/loans.db"))
}
