package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// ----------------------------------------------------------------------------
// CSV Tests
// ----------------------------------------------------------------------------

func TestReadCSV(t *testing.T) {
	input := "loan_id,borrower_name,loan_amount,loan_status,open_date\n" +
		"L001,John Doe,15000,A,2024-05-01\n" +
		"L002, Jane Smith ,,C,2024-06-01\n"

	recs, err := ReadCSV(strings.NewReader(input), ",", "utf-8")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, core.String("L001"), recs[0]["loan_id"])
	assert.Equal(t, core.String("15000"), recs[0]["loan_amount"])
	assert.Equal(t, core.String("Jane Smith"), recs[1]["borrower_name"])
	assert.True(t, recs[1]["loan_amount"].IsMissing(), "blank cell becomes missing")
}

func TestReadCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		input     string
	}{
		{"pipe", "|", "a|b\n1|2\n"},
		{"semicolon", ";", "a;b\n1;2\n"},
		{"tab", "\t", "a\tb\n1\t2\n"},
		{"escaped tab", `\t`, "a\tb\n1\t2\n"},
		{"default", "", "a,b\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ReadCSV(strings.NewReader(tt.input), tt.delimiter, "")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "1", recs[0].Text("a"))
			assert.Equal(t, "2", recs[0].Text("b"))
		})
	}
}

func TestReadCSV_SkipsBOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("loan_id\nL001\n")...)

	recs, err := ReadCSV(bytes.NewReader(input), ",", "utf-8")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, ok := recs[0].Get("loan_id")
	assert.True(t, ok, "header must not carry the BOM")
}

func TestReadCSV_ReplacesInvalidUTF8(t *testing.T) {
	input := []byte("name\nJo\x80n\n")

	recs, err := ReadCSV(bytes.NewReader(input), ",", "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "Jo�n", recs[0].Text("name"))
}

func TestReadCSV_Latin1(t *testing.T) {
	// "José" in ISO-8859-1
	input := []byte("borrower_name\nJos\xe9\n")

	recs, err := ReadCSV(bytes.NewReader(input), ",", "latin1")
	require.NoError(t, err)
	assert.Equal(t, "José", recs[0].Text("borrower_name"))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter string
		encoding  string
		wantErr   string
	}{
		{"empty input", "", ",", "utf-8", "empty file"},
		{"ragged row", "a,b\n1,2,3\n", ",", "utf-8", "invalid csv"},
		{"unknown encoding", "a\n1\n", ",", "klingon", "encoding error"},
		{"multi char delimiter", "a\n1\n", "||", "utf-8", "invalid csv delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.delimiter, tt.encoding)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ----------------------------------------------------------------------------
// JSON Tests
// ----------------------------------------------------------------------------

func TestReadJSON(t *testing.T) {
	input := `[
		{"loan_id": "L001", "loan_amount": 15000, "open_date": "2024-05-01"},
		{"loan_id": "L002", "loan_amount": null}
	]`

	recs, err := ReadJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, core.Number(15000), recs[0]["loan_amount"])
	assert.True(t, recs[1]["loan_amount"].IsMissing())
	_, ok := recs[1].Get("open_date")
	assert.False(t, ok)
}

func TestRead_NoRows(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
	}{
		{"csv header only", FormatCSV, "LoanNumber,Amount\n"},
		{"csv header without newline", FormatCSV, "LoanNumber,Amount"},
		{"json empty array", FormatJSON, "[]"},
		{"json empty array with spaces", FormatJSON, " [ ]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := Read(strings.NewReader(tt.input), core.ClientConfig{ClientID: "X", FileFormat: tt.format}, Options{})
			require.NoError(t, err)
			assert.NotNil(t, recs)
			assert.Empty(t, recs)
		})
	}
}

func TestReadJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"blank", "  ", "empty file"},
		{"null", "null", "invalid json"},
		{"object not array", `{"loan_id": "L001"}`, "invalid json"},
		{"nested object", `[{"loan": {"id": 1}}]`, "invalid json"},
		{"null element", `[null]`, "invalid json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ----------------------------------------------------------------------------
// Read dispatch Tests
// ----------------------------------------------------------------------------

func TestRead_UnsupportedFormat(t *testing.T) {
	_, err := Read(strings.NewReader("x"), core.ClientConfig{FileFormat: "xlsx"}, Options{})

	require.Error(t, err)
	assert.Equal(t, "Unsupported file format: xlsx", err.Error())

	var ufe *UnsupportedFormatError
	assert.True(t, errors.As(err, &ufe))
}

func TestRead_DefaultsToCSV(t *testing.T) {
	recs, err := Read(strings.NewReader("a\n1\n"), core.ClientConfig{}, Options{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRead_JSONFormat(t *testing.T) {
	recs, err := Read(strings.NewReader(`[{"a":"1"}]`), core.ClientConfig{FileFormat: "JSON"}, Options{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRead_MaxBytes(t *testing.T) {
	input := "loan_id\n" + strings.Repeat("L0000001\n", 100)

	_, err := Read(strings.NewReader(input), core.ClientConfig{}, Options{MaxBytes: 64})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	recs, err := Read(strings.NewReader(input), core.ClientConfig{}, Options{MaxBytes: int64(len(input))})
	require.NoError(t, err)
	assert.Len(t, recs, 100)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, os.WriteFile(path, []byte("loan_id\nL001\n"), 0o644))

	recs, err := ReadFile(path, core.ClientConfig{}, Options{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), core.ClientConfig{}, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
