// Package core provides the transform-then-validate pipeline for loan ingestion.
//
// This package is the heart of the ingester, containing all domain logic
// independent of any storage, file format or transport. It can be used by the
// HTTP server, the CLI, or tests without modification.
//
// # Architecture
//
// Records flow through two stages:
//
//   - Transformer: renames client fields to canonical names via a [Mapping],
//     rewrites status codes, parses open_date with the client's date patterns,
//     and stamps client and ingestion metadata.
//   - Validator: checks each record against the canonical [Schema] using the
//     rule library ([Required], [Numeric], [NonNegative], [AllowedValues],
//     [ValidDate]) and partitions the batch into clean and rejected records.
//
// [Pipeline] runs both stages over a batch, optionally on several workers.
//
// # Records
//
// A [Record] maps field names to tagged [Value]s. A field can be absent, or
// present with a Missing value; after mapping every canonical field named by
// the mapping is present, and fields the source could not supply are Missing.
//
// # Date Patterns
//
// Clients describe date formats with tokens (YYYY, YY, MM, DD, M, D) or with
// native strftime patterns. [NormalizePattern] translates tokens to strftime;
// [ParseDate] tries patterns in order and the first one that parses wins.
//
// A date that fails to parse during transformation becomes Missing. The
// Validator then reports it as a missing required field, so a bad date never
// reaches the clean partition as an unparsed string.
//
// # Error Handling
//
// Per-record problems are data, not errors: they are collected as
// [ValidationError]s on the rejected record. Errors returned from this package
// are configuration problems ([ErrMissingClientID], [ErrInvalidSchema]) or
// cancellation, and abort the run. [MapError] turns them into user-facing
// messages with support codes.
package core
