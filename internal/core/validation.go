package core

// validation.go checks transformed records against the canonical schema.
//
// Validation walks the schema fields in declaration order:
//  1. Required fields must be present; a missing required field skips its other checks
//  2. Present values get type checks (number, date, datetime)
//  3. Present values with declared allowed values get a membership check
//
// All violations of a record are collected, so a rejected record reports every
// problem at once. Fields that are not in the schema are never inspected.

// ValidationResult contains the result of validating a record.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // Errors in schema field order (empty if Valid)
}

// Messages returns the error messages in order.
func (r ValidationResult) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return msgs
}

// Validator validates records against a schema using a client's date patterns.
type Validator struct {
	schema       Schema
	datePatterns []string
}

// NewValidator creates a validator for the given schema and client config.
func NewValidator(schema Schema, client ClientConfig) *Validator {
	patterns := NormalizePatterns(client.DateFormats)
	patterns = append(patterns, isoDatePattern)
	return &Validator{
		schema:       schema,
		datePatterns: patterns,
	}
}

// ValidateRecord validates a single record and returns all validation errors.
func (v *Validator) ValidateRecord(rec Record) ValidationResult {
	result := ValidationResult{Valid: true}

	add := func(err error) {
		if err == nil {
			return
		}
		result.Valid = false
		result.Errors = append(result.Errors, *err.(*ValidationError))
	}

	for _, spec := range v.schema.Fields {
		value := rec[spec.Name]

		if spec.Required {
			if err := Required(value, spec.Name); err != nil {
				add(err)
				continue
			}
		}

		if value.IsMissing() {
			continue
		}

		switch spec.Type {
		case FieldNumber:
			if err := Numeric(value, spec.Name); err != nil {
				add(err)
				continue
			}
			add(NonNegative(value, spec.Name))
		case FieldDate:
			add(ValidDate(value, spec.Name, v.datePatterns))
		case FieldDatetime:
			add(validDatetime(value, spec.Name, v.datePatterns))
		}

		if len(spec.AllowedValues) > 0 {
			add(AllowedValues(value, spec.Name, spec.AllowedValues))
		}
	}

	return result
}

// ValidateRecords partitions records into clean and rejected, preserving order
// within each partition.
func (v *Validator) ValidateRecords(recs []Record) (clean []Record, rejected []RejectedRecord) {
	clean = make([]Record, 0, len(recs))
	rejected = make([]RejectedRecord, 0)

	for _, rec := range recs {
		res := v.ValidateRecord(rec)
		if res.Valid {
			clean = append(clean, rec)
			continue
		}
		rejected = append(rejected, RejectedRecord{
			Record: rec.Clone(),
			Errors: res.Messages(),
		})
	}
	return clean, rejected
}

// ValidateRecord validates one record without building a Validator first.
func ValidateRecord(rec Record, schema Schema, client ClientConfig) ValidationResult {
	return NewValidator(schema, client).ValidateRecord(rec)
}

// ValidateRecords partitions records without building a Validator first.
func ValidateRecords(recs []Record, schema Schema, client ClientConfig) ([]Record, []RejectedRecord) {
	return NewValidator(schema, client).ValidateRecords(recs)
}
