package core

// error_messages.go turns run-level failures into stable codes for API
// clients and the HTML report. Record-level problems never come through
// here; they travel with the rejected record instead.
//
//	CFG001 client config missing        FILE001 file over the size limit
//	CFG002 mapping missing              FILE002 malformed delimited text
//	CFG003 schema malformed             FILE003 unknown or bad encoding
//	CFG004 client_id missing            FILE004 no file in the request
//	                                    FILE005 file with no bytes
//	ING001 all run slots busy           FILE006 file_format not csv or json
//	ING002 run cancelled                FILE007 not a JSON array of objects
//	ING003 run exceeded its timeout
//	ING004 unknown ingestion id         DB001 store locked or deadlocked
//	                                    DB002 primary key conflict
//	ERR000 anything else                DB003 store unreachable
//	                                    DB004 store too slow to answer
//
// Sentinels are matched with errors.Is first, then the lower-cased message is
// searched for each pattern in order.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is what a caller of the API sees for a failed run.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrInvalidSchema, UserMessage{
		Message: "The loan schema is malformed",
		Action:  "Fix the field definitions in the schema file",
		Code:    "CFG003",
	}},
	{ErrMissingClientID, UserMessage{
		Message: "The client configuration has no client_id",
		Action:  "Set client_id in the client config file",
		Code:    "CFG004",
	}},
}

type errorPattern struct {
	patterns []string
	msg      UserMessage
}

// errorPatterns is searched in order; put narrow patterns before broad ones
// ("context deadline exceeded" before "timeout").
var errorPatterns = []errorPattern{
	// Configuration
	{[]string{"client config not found"}, UserMessage{
		Message: "No configuration exists for this client",
		Action:  "Check the client name or add a client config file",
		Code:    "CFG001",
	}},
	{[]string{"mapping config not found"}, UserMessage{
		Message: "No field mapping exists for this client",
		Action:  "Add a mapping file for this client",
		Code:    "CFG002",
	}},
	{[]string{"schema not found"}, UserMessage{
		Message: "The loan schema file is missing",
		Action:  "Add loan_schema.json to the schemas directory",
		Code:    "CFG003",
	}},

	// Input file
	{[]string{"file too large"}, UserMessage{
		Message: "The file exceeds the maximum size",
		Action:  "Split the loans across several files",
		Code:    "FILE001",
	}},
	{[]string{"invalid csv"}, UserMessage{
		Message: "The file is not valid delimited text",
		Action:  "Check the delimiter and that every row has the same number of columns",
		Code:    "FILE002",
	}},
	{[]string{"encoding error"}, UserMessage{
		Message: "The file encoding is not supported",
		Action:  "Save the file as UTF-8 or set a supported encoding for the client",
		Code:    "FILE003",
	}},
	{[]string{"no file provided"}, UserMessage{
		Message: "No file was provided",
		Action:  "Attach a loan file to the request",
		Code:    "FILE004",
	}},
	{[]string{"empty file"}, UserMessage{
		Message: "The file has no loan rows",
		Action:  "Send a file with a header and at least one loan",
		Code:    "FILE005",
	}},
	{[]string{"unsupported file format"}, UserMessage{
		Message: "The client's file format is not supported",
		Action:  "Use csv or json as the client file_format",
		Code:    "FILE006",
	}},
	{[]string{"invalid json"}, UserMessage{
		Message: "The file is not a JSON array of objects",
		Action:  "Export the loans as a JSON array",
		Code:    "FILE007",
	}},

	// Ingestion
	{[]string{"too many ingestions"}, UserMessage{
		Message: "Other ingestions are using every run slot",
		Action:  "Retry once a running ingestion has finished",
		Code:    "ING001",
	}},
	{[]string{"context canceled"}, UserMessage{
		Message: "The ingestion was cancelled",
		Action:  "Send the file again",
		Code:    "ING002",
	}},
	{[]string{"context deadline exceeded"}, UserMessage{
		Message: "The ingestion ran past its time limit",
		Action:  "Split the file or raise INGEST_TIMEOUT",
		Code:    "ING003",
	}},
	{[]string{"run not found"}, UserMessage{
		Message: "No ingestion run has this id",
		Action:  "Check the ingestion id; reports are kept only for recent runs",
		Code:    "ING004",
	}},

	// Store
	{[]string{"database is locked", "sqlite_busy", "deadlock"}, UserMessage{
		Message: "The loan store is busy with another write",
		Action:  "Send the file again in a moment",
		Code:    "DB001",
	}},
	{[]string{"duplicate key", "unique constraint"}, UserMessage{
		Message: "A loan with this loan_id conflicts with a stored loan",
		Action:  "Check the file for loan ids that appear twice",
		Code:    "DB002",
	}},
	{[]string{"connection refused", "connection reset", "broken pipe", "no such host"}, UserMessage{
		Message: "The loan store cannot be reached",
		Action:  "Check DATABASE_URL and that the database is running",
		Code:    "DB003",
	}},
	{[]string{"timeout"}, UserMessage{
		Message: "The loan store did not answer in time",
		Action:  "Send the file again later",
		Code:    "DB004",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Send the file again or contact support with the ingestion id",
	Code:    "ERR000",
}

// MapError picks the user message for err, ERR000 when nothing matches.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, p := range ep.patterns {
			if strings.Contains(text, p) {
				return ep.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err has a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
