package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.UTC)

// ----------------------------------------------------------------------------
// ApplyMapping Tests
// ----------------------------------------------------------------------------

func TestApplyMapping(t *testing.T) {
	tests := []struct {
		name    string
		raw     Record
		mapping Mapping
		want    Record
	}{
		{
			name:    "basic rename drops unmapped",
			raw:     Record{"old_field": String("value"), "another": String("data")},
			mapping: Mapping{"old_field": "new_field"},
			want:    Record{"new_field": String("value")},
		},
		{
			name:    "multiple fields",
			raw:     Record{"field1": String("val1"), "field2": String("val2"), "field3": String("val3")},
			mapping: Mapping{"field1": "mapped1", "field2": "mapped2"},
			want:    Record{"mapped1": String("val1"), "mapped2": String("val2")},
		},
		{
			name:    "missing source key yields missing target",
			raw:     Record{"existing": String("value")},
			mapping: Mapping{"missing": "target"},
			want:    Record{"target": Missing()},
		},
		{
			name:    "empty mapping",
			raw:     Record{"a": String("b")},
			mapping: Mapping{},
			want:    Record{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyMapping(tt.raw, tt.mapping))
		})
	}
}

func TestApplyMapping_Idempotent(t *testing.T) {
	raw := Record{"cust_name": String("John Doe"), "amt": String("15000"), "junk": String("x")}
	mapping := Mapping{"cust_name": "borrower_name", "amt": "loan_amount"}

	assert.Equal(t, ApplyMapping(raw, mapping), ApplyMapping(raw, mapping))
}

func TestApplyMapping_DoesNotMutateInput(t *testing.T) {
	raw := Record{"a": String("1")}
	_ = ApplyMapping(raw, Mapping{"a": "b"})
	assert.Equal(t, Record{"a": String("1")}, raw)
}

// ----------------------------------------------------------------------------
// NormalizeStatus Tests
// ----------------------------------------------------------------------------

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		client ClientConfig
		want   Record
	}{
		{
			name:   "mapped code",
			rec:    Record{"loan_status": String("A")},
			client: ClientConfig{StatusCodeMapping: map[string]string{"A": "ACTIVE"}},
			want:   Record{"loan_status": String("ACTIVE")},
		},
		{
			name:   "empty table keeps value",
			rec:    Record{"loan_status": String("ACTIVE")},
			client: ClientConfig{},
			want:   Record{"loan_status": String("ACTIVE")},
		},
		{
			name:   "unknown code keeps value",
			rec:    Record{"loan_status": String("X")},
			client: ClientConfig{StatusCodeMapping: map[string]string{"A": "ACTIVE"}},
			want:   Record{"loan_status": String("X")},
		},
		{
			name:   "no status field",
			rec:    Record{"other_field": String("value")},
			client: ClientConfig{StatusCodeMapping: map[string]string{"A": "ACTIVE"}},
			want:   Record{"other_field": String("value")},
		},
		{
			name:   "missing stays missing",
			rec:    Record{"loan_status": Missing()},
			client: ClientConfig{StatusCodeMapping: map[string]string{"": "ACTIVE"}},
			want:   Record{"loan_status": Missing()},
		},
		{
			name:   "numeric code looked up by text",
			rec:    Record{"loan_status": Number(1)},
			client: ClientConfig{StatusCodeMapping: map[string]string{"1": "ACTIVE"}},
			want:   Record{"loan_status": String("ACTIVE")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.rec, tt.client))
		})
	}
}

// ----------------------------------------------------------------------------
// NormalizeDate Tests
// ----------------------------------------------------------------------------

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name     string
		rec      Record
		patterns []string
		wantText string
		wantKind Kind
	}{
		{"iso", Record{"open_date": String("2024-05-01")}, []string{"YYYY-MM-DD"}, "2024-05-01", KindDate},
		{"multiple formats", Record{"open_date": String("05/01/2024")}, []string{"MM/DD/YYYY", "YYYY-MM-DD"}, "2024-05-01", KindDate},
		{"invalid", Record{"open_date": String("not-a-date")}, []string{"YYYY-MM-DD"}, "", KindMissing},
		{"already missing", Record{"open_date": Missing()}, []string{"YYYY-MM-DD"}, "", KindMissing},
		{"no patterns", Record{"open_date": String("2024-05-01")}, nil, "", KindMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.rec, ClientConfig{DateFormats: tt.patterns})
			v, ok := got.Get("open_date")
			require.True(t, ok, "open_date key must remain present")
			assert.Equal(t, tt.wantKind, v.Kind())
			assert.Equal(t, tt.wantText, v.Text())
		})
	}
}

func TestNormalizeDate_NoDateField(t *testing.T) {
	rec := Record{"other_field": String("value")}
	got := NormalizeDate(rec, ClientConfig{DateFormats: []string{"YYYY-MM-DD"}})
	assert.Equal(t, rec, got)
}

func TestNormalizeDate_RoundTrip(t *testing.T) {
	client := ClientConfig{DateFormats: []string{"MM/DD/YYYY", "YYYY-MM-DD"}}

	once := NormalizeDate(Record{"open_date": String("05/01/2024")}, client)
	twice := NormalizeDate(Record{"open_date": String(once.Text("open_date"))}, client)

	assert.Equal(t, "2024-05-01", once.Text("open_date"))
	assert.Equal(t, once.Text("open_date"), twice.Text("open_date"))
}

// ----------------------------------------------------------------------------
// AddMetadata Tests
// ----------------------------------------------------------------------------

func TestAddMetadata(t *testing.T) {
	rec := Record{"loan_id": String("123")}

	got, err := AddMetadata(rec, ClientConfig{ClientID: "TEST_CLIENT"}, "INGEST_001", fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "TEST_CLIENT", got.Text("client_id"))
	assert.Equal(t, "INGEST_001", got.Text("ingestion_id"))
	assert.Equal(t, "2024-06-01T12:30:45.123456789Z", got.Text("ingestion_timestamp"))
	assert.Equal(t, KindString, got["ingestion_timestamp"].Kind())
	assert.NotContains(t, rec, "client_id", "input record must not be mutated")
}

func TestAddMetadata_MissingClientID(t *testing.T) {
	_, err := AddMetadata(Record{}, ClientConfig{}, "INGEST_001", fixedNow)
	assert.True(t, errors.Is(err, ErrMissingClientID))
}

func TestAddMetadata_ConvertsToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	got, err := AddMetadata(Record{}, ClientConfig{ClientID: "C"}, "I", time.Date(2024, 1, 1, 19, 0, 0, 0, est))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T00:00:00Z", got.Text("ingestion_timestamp"))
}

// ----------------------------------------------------------------------------
// Transformer Tests
// ----------------------------------------------------------------------------

func TestTransformRecords_EndToEnd(t *testing.T) {
	raws := []Record{{
		"loan_id":     String("L001"),
		"cust_name":   String("John Doe"),
		"amt":         String("15000"),
		"status":      String("A"),
		"date_opened": String("2024-05-01"),
	}}
	mapping := Mapping{
		"cust_name":   "borrower_name",
		"amt":         "loan_amount",
		"status":      "loan_status",
		"date_opened": "open_date",
	}
	client := ClientConfig{
		ClientID:          "TEST_CLIENT",
		StatusCodeMapping: map[string]string{"A": "ACTIVE"},
		DateFormats:       []string{"YYYY-MM-DD"},
	}

	tr := NewTransformer(mapping, client, "INGEST_001")
	tr.now = func() time.Time { return fixedNow }

	got, err := tr.TransformRecords(raws)
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, "John Doe", rec.Text("borrower_name"))
	assert.Equal(t, "15000", rec.Text("loan_amount"))
	assert.Equal(t, "ACTIVE", rec.Text("loan_status"))
	assert.Equal(t, "2024-05-01", rec.Text("open_date"))
	assert.Equal(t, "TEST_CLIENT", rec.Text("client_id"))
	assert.Equal(t, "INGEST_001", rec.Text("ingestion_id"))
	assert.Equal(t, fixedNow.Format(TimestampLayout), rec.Text("ingestion_timestamp"))
	_, hasLoanID := rec.Get("loan_id")
	assert.False(t, hasLoanID, "unmapped fields are dropped")
}

func TestTransformRecords_Empty(t *testing.T) {
	got, err := TransformRecords(nil, Mapping{}, ClientConfig{}, "INGEST_001")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransformRecords_PreservesOrder(t *testing.T) {
	var raws []Record
	for _, id := range []string{"L3", "L1", "L2"} {
		raws = append(raws, Record{"id": String(id)})
	}

	got, err := TransformRecords(raws, Mapping{"id": "loan_id"}, ClientConfig{ClientID: "C"}, "I")
	require.NoError(t, err)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.Text("loan_id"))
	}
	assert.Equal(t, []string{"L3", "L1", "L2"}, ids)
}

func TestTransformRecords_MissingClientIDFails(t *testing.T) {
	_, err := TransformRecords([]Record{{"a": String("1")}}, Mapping{"a": "b"}, ClientConfig{}, "I")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingClientID)
}
