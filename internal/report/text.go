// Package report renders ingestion results for people.
//
// WriteQuality and WriteBusiness print the plain-text reports shown at the
// end of a CLI run. RunPage renders the HTML report served for a run.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

var printer = message.NewPrinter(language.English)

// WriteQuality prints the data quality report.
func WriteQuality(w io.Writer, m core.QualityMetrics) error {
	ew := &errWriter{w: w}

	ew.printf("\nDATA QUALITY REPORT\n")
	ew.printf("-------------------\n")
	ew.printf("Total records: %d\n", m.TotalRecords)
	ew.printf("Clean records: %d\n", m.CleanRecords)
	ew.printf("Rejected records: %d\n", m.RejectedRecords)
	ew.printf("Rejection rate: %s%%\n", formatRate(m.TotalRecords, m.RejectionRate))

	ew.printf("\nTop rejection reasons:\n")
	for _, rc := range m.TopReasons {
		ew.printf(" - %s: %d\n", rc.Reason, rc.Count)
	}
	return ew.err
}

// WriteBusiness prints loan counts and average amounts per status.
func WriteBusiness(w io.Writer, m core.BusinessMetrics) error {
	ew := &errWriter{w: w}

	ew.printf("\nBUSINESS REPORT\n")
	ew.printf("---------------\n")
	ew.printf("Loans by Status:\n")
	for _, s := range m.ByStatus {
		ew.printf(" - %s: %d\n", s.Status, s.Count)
	}

	ew.printf("\nAverage Loan Amount by Status:\n")
	for _, s := range m.ByStatus {
		ew.printf(" - %s: %s\n", s.Status, FormatAmount(s.AverageAmount))
	}
	return ew.err
}

// FormatAmount renders a dollar amount with thousands separators, e.g. $1,234.50.
func FormatAmount(v float64) string {
	if v < 0 {
		return "-$" + printer.Sprintf("%.2f", -v)
	}
	return "$" + printer.Sprintf("%.2f", v)
}

// formatRate prints a rounded percentage the way reports have always shown
// it: whole numbers keep one decimal ("25.0"), an empty batch prints "0".
func formatRate(total int, rate float64) string {
	if total == 0 {
		return "0"
	}
	if rate == math.Trunc(rate) {
		return strconv.FormatFloat(rate, 'f', 1, 64)
	}
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

// errWriter keeps the first write error so callers check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
