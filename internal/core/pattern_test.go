package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ----------------------------------------------------------------------------
// NormalizePattern Tests
// ----------------------------------------------------------------------------

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strftime passes through", "%Y-%m-%d", "%Y-%m-%d"},
		{"iso tokens", "YYYY-MM-DD", "%Y-%m-%d"},
		{"us tokens", "MM/DD/YYYY", "%m/%d/%Y"},
		{"single digit tokens", "M/D/YYYY", "%-m/%-d/%Y"},
		{"two digit year", "YY-MM-DD", "%y-%m-%d"},
		{"no separators", "YYYYMMDD", "%Y%m%d"},
		{"mixed with percent is untouched", "%d.MM.YYYY", "%d.MM.YYYY"},
		{"empty", "", ""},
		{"literal text kept", "D.M.YY", "%-d.%-m.%y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePattern(tt.input); got != tt.want {
				t.Errorf("NormalizePattern(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePatterns_PreservesOrder(t *testing.T) {
	got := NormalizePatterns([]string{"MM/DD/YYYY", "%Y-%m-%d", "D/M/YY"})
	assert.Equal(t, []string{"%m/%d/%Y", "%Y-%m-%d", "%-d/%-m/%y"}, got)
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		patterns []string
		want     time.Time
		wantOK   bool
	}{
		{
			name:     "iso token pattern",
			value:    "2024-05-01",
			patterns: []string{"YYYY-MM-DD"},
			want:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "first matching pattern wins",
			value:    "05/01/2024",
			patterns: []string{"MM/DD/YYYY", "DD/MM/YYYY"},
			want:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "falls through to later pattern",
			value:    "2024-07-15",
			patterns: []string{"MM/DD/YYYY", "YYYY-MM-DD"},
			want:     time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "unpadded month and day",
			value:    "5/1/2024",
			patterns: []string{"M/D/YYYY"},
			want:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "native strftime",
			value:    "2024-05-01",
			patterns: []string{"%Y-%m-%d"},
			want:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "no pattern matches",
			value:    "not-a-date",
			patterns: []string{"YYYY-MM-DD", "MM/DD/YYYY"},
			wantOK:   false,
		},
		{
			name:     "impossible calendar date",
			value:    "2024-02-30",
			patterns: []string{"YYYY-MM-DD"},
			wantOK:   false,
		},
		{
			name:     "no patterns",
			value:    "2024-05-01",
			patterns: nil,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.value, tt.patterns)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01", FormatDate("YYYY-MM-DD", d))
	assert.Equal(t, "5/1/2024", FormatDate("M/D/YYYY", d))
}
