package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

func TestWriteQuality(t *testing.T) {
	m := core.QualityMetrics{
		TotalRecords:    4,
		CleanRecords:    3,
		RejectedRecords: 1,
		RejectionRate:   25,
		TopReasons: []core.ReasonCount{
			{Reason: "Missing required field: loan_amount", Count: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteQuality(&buf, m))

	want := "\nDATA QUALITY REPORT\n" +
		"-------------------\n" +
		"Total records: 4\n" +
		"Clean records: 3\n" +
		"Rejected records: 1\n" +
		"Rejection rate: 25.0%\n" +
		"\nTop rejection reasons:\n" +
		" - Missing required field: loan_amount: 1\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteBusiness(t *testing.T) {
	m := core.BusinessMetrics{ByStatus: []core.StatusSummary{
		{Status: "ACTIVE", Count: 2, AverageAmount: 12500},
		{Status: "CLOSED", Count: 1, AverageAmount: 1234567.891},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteBusiness(&buf, m))

	want := "\nBUSINESS REPORT\n" +
		"---------------\n" +
		"Loans by Status:\n" +
		" - ACTIVE: 2\n" +
		" - CLOSED: 1\n" +
		"\nAverage Loan Amount by Status:\n" +
		" - ACTIVE: $12,500.00\n" +
		" - CLOSED: $1,234,567.89\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name  string
		total int
		rate  float64
		want  string
	}{
		{"empty batch", 0, 0, "0"},
		{"none rejected", 5, 0, "0.0"},
		{"whole", 4, 25, "25.0"},
		{"fraction", 3, 33.33, "33.33"},
		{"one decimal", 10, 12.5, "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatRate(tt.total, tt.rate))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$0.00", FormatAmount(0))
	assert.Equal(t, "$999.50", FormatAmount(999.5))
	assert.Equal(t, "-$1,000.00", FormatAmount(-1000))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestWriteQuality_WriteError(t *testing.T) {
	err := WriteQuality(failingWriter{}, core.QualityMetrics{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunPage(t *testing.T) {
	s := Summary{
		IngestionID: "INGEST_20240601123045_ab12cd34",
		Client:      "lender_a",
		Source:      "loans.csv",
		Status:      "succeeded",
		StartedAt:   time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		Quality: core.QualityMetrics{
			TotalRecords: 2, CleanRecords: 1, RejectedRecords: 1, RejectionRate: 50,
			TopReasons: []core.ReasonCount{{Reason: "Invalid value '<X>' for field: loan_status", Count: 1}},
		},
		Business: core.BusinessMetrics{ByStatus: []core.StatusSummary{{Status: "ACTIVE", Count: 1, AverageAmount: 15000}}},
		Rejected: []core.RejectedRecord{
			{Record: core.Record{"loan_id": core.String("L002")}, Errors: []string{"Invalid value '<X>' for field: loan_status"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RunPage(s).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "<title>Ingestion INGEST_20240601123045_ab12cd34</title>")
	assert.Contains(t, html, "<td>50.0%</td>")
	assert.Contains(t, html, "$15,000.00")
	assert.Contains(t, html, "&lt;X&gt;", "user data is escaped")
	assert.NotContains(t, html, "'<X>'")
	assert.Contains(t, html, "<td>L002</td>")
}

func TestRunPage_TruncatesRejected(t *testing.T) {
	rejected := make([]core.RejectedRecord, MaxRejectedRows+5)
	for i := range rejected {
		rejected[i] = core.RejectedRecord{Record: core.Record{}, Errors: []string{"x"}}
	}

	var buf bytes.Buffer
	require.NoError(t, RunPage(Summary{Rejected: rejected}).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), "and 5 more")
	assert.Equal(t, MaxRejectedRows, strings.Count(buf.String(), "(no loan_id)"))
}

func TestRunPage_Sections(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    []string
		absent  []string
	}{
		{
			name:    "failed run",
			summary: Summary{Status: "failed", Error: "The file has no loan rows (Code: FILE005)"},
			want:    []string{`<p class="failed">The file has no loan rows (Code: FILE005)</p>`, "<th>Status</th><td>failed</td>"},
			absent:  []string{"Top rejection reasons", "Loans by status", "<h2>Rejected records</h2>"},
		},
		{
			name:    "clean run",
			summary: Summary{Status: "succeeded", Quality: core.QualityMetrics{TotalRecords: 3, CleanRecords: 3}},
			want:    []string{"<th>Total records</th><td>3</td>", "<th>Rejection rate</th><td>0.0%</td>"},
			absent:  []string{`class="failed"`, "<h2>Rejected records</h2>", "more</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RunPage(tt.summary).Render(context.Background(), &buf))
			html := buf.String()

			assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
			for _, w := range tt.want {
				assert.Contains(t, html, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, html, a)
			}
		})
	}
}

func TestRunPage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := RunPage(Summary{}).Render(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
