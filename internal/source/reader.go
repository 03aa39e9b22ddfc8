// Package source reads raw client files into records.
//
// The reader settings come from the client config: file_format selects the
// parser (csv or json), delimiter and encoding apply to CSV. Every cell is
// kept as a string; typing happens later in the core pipeline. Blank CSV cells
// become missing values, the same as an absent key.
package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// Supported file formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ErrEmptyFile is returned for input with no bytes at all. A CSV header with
// no rows, or an empty JSON array, reads as zero records.
var ErrEmptyFile = errors.New("empty file")

var errNotArray = errors.New("top-level value is not an array")

// UnsupportedFormatError reports a file_format this package cannot read.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return "Unsupported file format: " + e.Format
}

// Options tune a read beyond the client config.
type Options struct {
	MaxBytes int64 // 0 means unlimited
}

// Read parses r according to the client's reader settings.
func Read(r io.Reader, client core.ClientConfig, opts Options) ([]core.Record, error) {
	client = client.WithDefaults()

	if opts.MaxBytes > 0 {
		r = NewSizeLimitReader(r, opts.MaxBytes)
	}

	switch strings.ToLower(client.FileFormat) {
	case FormatCSV:
		return ReadCSV(r, client.Delimiter, client.Encoding)
	case FormatJSON:
		return ReadJSON(r)
	default:
		return nil, &UnsupportedFormatError{Format: client.FileFormat}
	}
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string, client core.ClientConfig, opts Options) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	recs, err := Read(f, client, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return recs, nil
}

// ReadCSV parses delimited text with a header row.
func ReadCSV(r io.Reader, delimiter, encodingName string) ([]core.Record, error) {
	comma, err := delimiterRune(delimiter)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeReader(r, encodingName)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = comma
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, csvError(err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}

	recs := []core.Record{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}

		rec := make(core.Record, len(cols))
		for i, col := range cols {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				rec[col] = core.Missing()
			} else {
				rec[col] = core.String(cell)
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ReadJSON parses a JSON array of flat objects.
func ReadJSON(r io.Reader) ([]core.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var recs []core.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if recs == nil {
		// "null"
		return nil, fmt.Errorf("invalid json: %w", errNotArray)
	}
	for i, rec := range recs {
		if rec == nil {
			return nil, fmt.Errorf("invalid json: element %d is not an object", i)
		}
	}
	return recs, nil
}

func delimiterRune(d string) (rune, error) {
	if d == "" {
		return ',', nil
	}
	if d == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid csv delimiter %q", d)
	}
	return r, nil
}

func csvError(err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("invalid csv: %w", err)
	}
	return err
}
