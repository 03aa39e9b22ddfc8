package core

// transform.go turns raw client rows into canonical records.
//
// The transformation is four steps, applied to each record in order:
//  1. ApplyMapping: rename source fields to canonical names, dropping the rest
//  2. NormalizeStatus: translate loan_status codes through the client's table
//  3. NormalizeDate: parse open_date with the client's patterns
//  4. AddMetadata: stamp client_id, ingestion_id and ingestion_timestamp
//
// A date that cannot be parsed becomes Missing rather than an error. The
// Validator reports it later, so transform never rejects a record by itself.

import (
	"fmt"
	"time"
)

// TimestampLayout renders ingestion_timestamp values.
const TimestampLayout = time.RFC3339Nano

// nowUTC is the clock used for ingestion timestamps.
var nowUTC = func() time.Time { return time.Now().UTC() }

// ApplyMapping builds a new record holding only the mapped fields.
// A source key absent from raw yields a Missing value under its target name.
func ApplyMapping(raw Record, mapping Mapping) Record {
	out := make(Record, len(mapping))
	for src, dst := range mapping {
		if v, ok := raw[src]; ok {
			out[dst] = v
		} else {
			out[dst] = Missing()
		}
	}
	return out
}

// NormalizeStatus replaces loan_status through the client's code table.
// Codes without an entry pass through unchanged.
func NormalizeStatus(rec Record, client ClientConfig) Record {
	v, ok := rec[FieldStatus]
	if !ok {
		return rec
	}

	out := rec.Clone()
	if v.IsMissing() {
		return out
	}
	if mapped, ok := client.StatusCodeMapping[v.Text()]; ok {
		out[FieldStatus] = String(mapped)
	}
	return out
}

// NormalizeDate parses open_date with the client's patterns. The first
// pattern that parses wins; if none does the field becomes Missing.
func NormalizeDate(rec Record, client ClientConfig) Record {
	v, ok := rec[FieldOpenDate]
	if !ok {
		return rec
	}

	out := rec.Clone()
	switch v.Kind() {
	case KindDate:
		return out
	case KindString:
		if t, ok := ParseDate(v.Text(), client.DateFormats); ok {
			out[FieldOpenDate] = Date(t)
			return out
		}
	}
	out[FieldOpenDate] = Missing()
	return out
}

// AddMetadata stamps the client and ingestion fields onto a copy of rec.
func AddMetadata(rec Record, client ClientConfig, ingestionID string, now time.Time) (Record, error) {
	if client.ClientID == "" {
		return nil, ErrMissingClientID
	}

	out := rec.Clone()
	out[FieldClientID] = String(client.ClientID)
	out[FieldIngestionID] = String(ingestionID)
	out[FieldIngestionTimestamp] = String(now.UTC().Format(TimestampLayout))
	return out, nil
}

// Transformer applies the full transformation for one client and one run.
type Transformer struct {
	mapping     Mapping
	client      ClientConfig
	ingestionID string
	now         func() time.Time
}

// NewTransformer creates a transformer bound to a mapping, client and run id.
func NewTransformer(mapping Mapping, client ClientConfig, ingestionID string) *Transformer {
	return &Transformer{
		mapping:     mapping,
		client:      client,
		ingestionID: ingestionID,
		now:         nowUTC,
	}
}

// IngestionID returns the run identifier stamped on every record.
func (t *Transformer) IngestionID() string { return t.ingestionID }

// Transform runs the four steps on a single raw record.
func (t *Transformer) Transform(raw Record) (Record, error) {
	rec := ApplyMapping(raw, t.mapping)
	rec = NormalizeStatus(rec, t.client)
	rec = NormalizeDate(rec, t.client)
	return AddMetadata(rec, t.client, t.ingestionID, t.now())
}

// TransformRecords transforms every record, preserving order.
func (t *Transformer) TransformRecords(raws []Record) ([]Record, error) {
	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := t.Transform(raw)
		if err != nil {
			return nil, fmt.Errorf("transform record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// TransformRecords transforms raws without building a Transformer first.
func TransformRecords(raws []Record, mapping Mapping, client ClientConfig, ingestionID string) ([]Record, error) {
	return NewTransformer(mapping, client, ingestionID).TransformRecords(raws)
}
