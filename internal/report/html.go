package report

//go:generate templ generate

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// MaxRejectedRows caps the rejected records listed on a run page.
const MaxRejectedRows = 50

// Summary is everything a run page shows.
type Summary struct {
	IngestionID string
	Client      string
	Source      string
	Status      string
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
	Duplicates  int
	Quality     core.QualityMetrics
	Business    core.BusinessMetrics
	Rejected    []core.RejectedRecord
}

type detailRow struct {
	Label string
	Value string
}

func runDetails(s Summary) []detailRow {
	return []detailRow{
		{"Client", s.Client},
		{"Source", s.Source},
		{"Status", s.Status},
		{"Started", s.StartedAt.UTC().Format(time.RFC3339)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
}

func qualityDetails(s Summary) []detailRow {
	return []detailRow{
		{"Total records", fmt.Sprint(s.Quality.TotalRecords)},
		{"Clean records", fmt.Sprint(s.Quality.CleanRecords)},
		{"Rejected records", fmt.Sprint(s.Quality.RejectedRecords)},
		{"Rejection rate", formatRate(s.Quality.TotalRecords, s.Quality.RejectionRate) + "%"},
		{"Already stored", fmt.Sprint(s.Duplicates)},
	}
}

func shownRejected(rejected []core.RejectedRecord) []core.RejectedRecord {
	if len(rejected) > MaxRejectedRows {
		return rejected[:MaxRejectedRows]
	}
	return rejected
}

func rejectedLoanID(rr core.RejectedRecord) string {
	if id := rr.Record.Text(core.FieldLoanID); id != "" {
		return id
	}
	return "(no loan_id)"
}
