package core

// metrics.go computes batch-level quality and business figures.

import (
	"math"
	"sort"
)

// TopReasonsLimit caps the number of rejection reasons reported.
const TopReasonsLimit = 10

// ReasonCount is a rejection message and how often it occurred.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// QualityMetrics summarizes how a batch split between clean and rejected.
type QualityMetrics struct {
	TotalRecords    int           `json:"total_records"`
	CleanRecords    int           `json:"clean_records"`
	RejectedRecords int           `json:"rejected_records"`
	RejectionRate   float64       `json:"rejection_rate"` // percent, two decimals
	TopReasons      []ReasonCount `json:"top_rejection_reasons"`
}

// StatusSummary is the business view of one loan status.
type StatusSummary struct {
	Status        string  `json:"status"`
	Count         int     `json:"count"`
	AverageAmount float64 `json:"average_amount"`
	amountCount   int
}

// BusinessMetrics aggregates clean loans by status.
type BusinessMetrics struct {
	ByStatus []StatusSummary `json:"by_status"`
}

// ComputeQualityMetrics counts the partitions and ranks rejection reasons.
// Each error message of a rejected record counts once toward its reason.
func ComputeQualityMetrics(clean []Record, rejected []RejectedRecord) QualityMetrics {
	total := len(clean) + len(rejected)
	m := QualityMetrics{
		TotalRecords:    total,
		CleanRecords:    len(clean),
		RejectedRecords: len(rejected),
		TopReasons:      []ReasonCount{},
	}
	if total > 0 {
		m.RejectionRate = math.Round(float64(len(rejected))/float64(total)*100*100) / 100
	}

	counts := make(map[string]int)
	var order []string
	for _, r := range rejected {
		reasons := r.Errors
		if len(reasons) == 0 {
			reasons = []string{"unknown"}
		}
		for _, reason := range reasons {
			if counts[reason] == 0 {
				order = append(order, reason)
			}
			counts[reason]++
		}
	}

	for _, reason := range order {
		m.TopReasons = append(m.TopReasons, ReasonCount{Reason: reason, Count: counts[reason]})
	}
	// Stable keeps first-seen order among ties.
	sort.SliceStable(m.TopReasons, func(i, j int) bool {
		return m.TopReasons[i].Count > m.TopReasons[j].Count
	})
	if len(m.TopReasons) > TopReasonsLimit {
		m.TopReasons = m.TopReasons[:TopReasonsLimit]
	}
	return m
}

// ComputeBusinessMetrics counts clean loans per status and averages their
// loan amounts. Statuses are listed in first-seen order. Records without a
// numeric amount count toward the status but not the average.
func ComputeBusinessMetrics(clean []Record) BusinessMetrics {
	idx := make(map[string]int)
	var out BusinessMetrics

	for _, rec := range clean {
		status := rec.Text(FieldStatus)
		if status == "" {
			status = "UNKNOWN"
		}
		i, ok := idx[status]
		if !ok {
			i = len(out.ByStatus)
			idx[status] = i
			out.ByStatus = append(out.ByStatus, StatusSummary{Status: status})
		}
		s := &out.ByStatus[i]
		s.Count++
		if amt, ok := numberOf(rec[FieldLoanAmount]); ok {
			// running sum, divided below
			s.AverageAmount += amt
			s.amountCount++
		}
	}

	for i := range out.ByStatus {
		s := &out.ByStatus[i]
		if s.amountCount > 0 {
			s.AverageAmount /= float64(s.amountCount)
		}
	}
	return out
}
