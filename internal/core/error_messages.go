// Package core provides the conversion engine for marketplace exports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Users can quote the code when reporting a problem.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Export fewer rows at a time
//	          Patterns: "file too large"
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Action: Re-export the inventory from the marketplace
//	          Patterns: "parse csv"
//
//	FILE003 - Encoding error: File contains unreadable characters
//	          Action: Save the file as UTF-8
//	          Patterns: "decode windows-1252"
//
//	FILE004 - No file: No file selected
//	          Action: Choose an exported CSV file
//	          Errors: ErrNoInput
//
//	FILE005 - Empty file: The file has no header row
//	          Action: Re-export the inventory from the marketplace
//	          Errors: ErrEmptyInput
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid format: Header matches neither export layout
//	         Action: Are you sure this is a CardMarket CSV file?
//	         Errors: *SchemaError
//
// # Card Service Errors (SVC001-SVC099)
//
//	SVC001 - Unreachable: The card service could not be reached
//	         Patterns: "connection refused", "no such host", "connection reset"
//
//	SVC002 - Throttled: The card service is rejecting requests (HTTP 429)
//
//	SVC003 - Service error: The card service returned an error status
//
//	SVC004 - Bad response: The card service sent a response that could not be read
//	         Patterns: "decode response"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: Too many conversions in progress (ErrTooManyRuns)
//	RUN002 - Superseded: A newer conversion replaced this one (ErrSuperseded)
//	RUN003 - Not found: Run not found in history (ErrRunNotFound)
//	RUN004 - Cancelled: "context canceled"
//	RUN005 - Timeout: "context deadline exceeded"
//	RUN006 - No output: The latest conversion has no result to download (ErrNoOutput)
//
// # Other
//
//	RATE001 - Too many requests: "rate limit"
//	ERR000  - Anything else. Check the logs for the technical error.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// HTTPStatusError is implemented by card service errors that carry the
// response status.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// errorMatch maps a known error value or type to a user message.
type errorMatch struct {
	match func(error) bool
	msg   UserMessage
}

// typedErrors are checked before the pattern table.
var typedErrors = []errorMatch{
	{
		match: func(err error) bool { return errors.Is(err, ErrNoInput) },
		msg: UserMessage{
			Message: NoInputMessage,
			Action:  "Choose an exported CSV file",
			Code:    "FILE004",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrEmptyInput) },
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Re-export the inventory from the marketplace",
			Code:    "FILE005",
		},
	},
	{
		match: func(err error) bool { return errors.As(err, new(*SchemaError)) },
		msg: UserMessage{
			Message: "Invalid file format",
			Action:  "Are you sure this is a CardMarket CSV file?",
			Code:    "VAL001",
		},
	},
	{
		match: func(err error) bool { return statusOf(err) == http.StatusTooManyRequests },
		msg: UserMessage{
			Message: "The card service is rejecting requests",
			Action:  "Wait a minute and convert again",
			Code:    "SVC002",
		},
	},
	{
		match: func(err error) bool { return statusOf(err) != 0 },
		msg: UserMessage{
			Message: "The card service returned an error",
			Action:  "Please try again later",
			Code:    "SVC003",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyRuns) },
		msg: UserMessage{
			Message: "Too many conversions in progress",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrSuperseded) },
		msg: UserMessage{
			Message: "A newer conversion replaced this one",
			Action:  "Check the latest result",
			Code:    "RUN002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrRunNotFound) },
		msg: UserMessage{
			Message: "Conversion not found",
			Action:  "It may have expired from history. Convert the file again",
			Code:    "RUN003",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrNoOutput) },
		msg: UserMessage{
			Message: "There is no converted file yet",
			Action:  "Wait for the conversion to finish, or convert a file first",
			Code:    "RUN006",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Export fewer rows at a time",
			Code:    "FILE001",
		},
	},
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Re-export the inventory from the marketplace",
			Code:    "FILE002",
		},
	},
	{
		pattern: "decode windows-1252",
		msg: UserMessage{
			Message: "File contains unreadable characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "decode response",
		msg: UserMessage{
			Message: "The card service sent an unreadable response",
			Action:  "Please try again later",
			Code:    "SVC004",
		},
	},
	{
		pattern: "connection refused",
		msg:     unreachable,
	},
	{
		pattern: "no such host",
		msg:     unreachable,
	},
	{
		pattern: "connection reset",
		msg:     unreachable,
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The conversion was cancelled",
			Action:  "Please try again",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The conversion timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var unreachable = UserMessage{
	Message: "The card service could not be reached",
	Action:  "Check your connection and try again",
	Code:    "SVC001",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known error values and types are checked first, then the pattern table.
// If nothing matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, te := range typedErrors {
		if te.match(err) {
			return te.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

func statusOf(err error) int {
	var se HTTPStatusError
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return 0
}
