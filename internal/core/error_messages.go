package core

// # Error Codes Reference
//
// Technical errors are mapped to user-friendly messages with a code that
// users can quote to support staff. Codes are grouped by category:
//
//	GED001-GED099   GEDCOM content (invalid records, oversized records)
//	DB001-DB099     Database (duplicates, connections, timeouts)
//	FILE001-FILE099 Uploaded files (size, emptiness, compression)
//	IMP001-IMP099   Import sessions (cancelled, busy, expired)
//	CHG001-CHG099   Trees, records, settings and pending changes
//	RATE001         Request throttling
//	ERR000          Anything else; check the logs for the technical error

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTreeNotFound is returned when a tree name is not known.
	ErrTreeNotFound = errors.New("tree not found")

	// ErrTooManyImports is returned when all import slots are occupied and
	// the wait timeout expires. Clients should retry after a short delay.
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

	// ErrImportNotFound is returned for unknown or expired import ids.
	ErrImportNotFound = errors.New("import not found")

	// ErrImportCancelled is recorded for imports stopped by CancelImport.
	ErrImportCancelled = errors.New("import cancelled")

	// ErrNoPendingChanges is returned when accepting or rejecting a record
	// that has nothing pending.
	ErrNoPendingChanges = errors.New("no pending changes")

	// ErrInvalidSetting is returned for unknown tree settings and bad values.
	ErrInvalidSetting = errors.New("invalid tree setting")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when a file holds no records.
	ErrEmptyFile = errors.New("empty file")
)

// UserMessage is what a user sees for an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorPattern maps a lowercase substring of an error to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is searched in order; more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// GEDCOM
	// =========================================================================
	{
		pattern: "invalid gedcom record",
		msg: UserMessage{
			Message: "A record does not start with a valid level 0 line",
			Action:  "Check the failed records; each must begin with \"0 @XREF@ TYPE\" or \"0 TYPE\"",
			Code:    "GED001",
		},
	},
	{
		pattern: "token too long",
		msg: UserMessage{
			Message: "A record is larger than the 16MB limit",
			Action:  "Remove embedded binary data from notes or media before importing",
			Code:    "GED002",
		},
	},

	// =========================================================================
	// Database
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists in the tree",
			Action:  "Import with replace, or renumber the duplicate records",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Files
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Compress the file with gzip or zstd, or split the tree",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file contains no GEDCOM records",
			Action:  "Please upload a GEDCOM file exported by your genealogy program",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a GEDCOM file to import",
			Code:    "FILE003",
		},
	},
	{
		pattern: "decompress",
		msg: UserMessage{
			Message: "The compressed file could not be read",
			Action:  "Check that the file is a complete .gz or .zst archive",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Import sessions
	// =========================================================================
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Check the import history instead",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or raise IMPORT_TIMEOUT",
			Code:    "IMP005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "IMP005",
		},
	},

	// =========================================================================
	// Trees and changes
	// =========================================================================
	{
		pattern: "no pending changes",
		msg: UserMessage{
			Message: "There are no pending changes for this record",
			Action:  "Refresh the list of pending changes",
			Code:    "CHG001",
		},
	},
	{
		pattern: "tree not found",
		msg: UserMessage{
			Message: "The family tree does not exist",
			Action:  "Check the tree name; trees are created by their first import",
			Code:    "CHG002",
		},
	},
	{
		pattern: "invalid tree setting",
		msg: UserMessage{
			Message: "The setting name or value is not valid",
			Action:  "Use one of the documented tree settings",
			Code:    "CHG003",
		},
	},
	{
		pattern: "no rows in result set",
		msg: UserMessage{
			Message: "The record does not exist in this tree",
			Action:  "Check the record ID",
			Code:    "CHG004",
		},
	},

	// =========================================================================
	// Rate limiting
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. The first
// pattern found in the lowercased error text wins.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats an error as "Message (Code: XXX). Action".
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

// UserError pairs a technical error, kept for logging, with its message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
