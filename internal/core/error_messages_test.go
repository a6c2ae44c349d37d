package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{
			name:     "invalid record",
			err:      fmt.Errorf("record 12: %w", gedcom.ErrInvalidRecord),
			wantCode: "GED001",
		},
		{name: "record too long", err: bufio.ErrTooLong, wantCode: "GED002"},
		{
			name:     "duplicate xref",
			err:      fmt.Errorf("insert INDI I1: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"individuals_pkey\""}),
			wantCode: "DB001",
		},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), wantCode: "DB002"},
		{name: "file too large", err: fmt.Errorf("%w: 600MB", ErrFileTooLarge), wantCode: "FILE001"},
		{name: "empty file", err: ErrEmptyFile, wantCode: "FILE002"},
		{name: "bad gzip", err: errors.New("decompress: gzip: invalid header"), wantCode: "FILE004"},
		{name: "import cancelled", err: ErrImportCancelled, wantCode: "IMP001"},
		{name: "too many imports", err: ErrTooManyImports, wantCode: "IMP002"},
		{name: "import not found", err: fmt.Errorf("%w: abc", ErrImportNotFound), wantCode: "IMP003"},
		{name: "context canceled", err: context.Canceled, wantCode: "IMP004"},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: "IMP005"},
		{name: "no pending changes", err: fmt.Errorf("%w for I1", ErrNoPendingChanges), wantCode: "CHG001"},
		{name: "tree not found", err: fmt.Errorf("%w: demo", ErrTreeNotFound), wantCode: "CHG002"},
		{name: "invalid setting", err: ErrInvalidSetting, wantCode: "CHG003"},
		{name: "missing record", err: fmt.Errorf("get record X9: %w", pgx.ErrNoRows), wantCode: "CHG004"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "case insensitive", err: errors.New("DUPLICATE KEY"), wantCode: "DB001"},
		{name: "unknown error", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError(%v) = %+v, want message and action", tt.err, got)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	want := "Too many imports in progress (Code: IMP002). Please wait a moment and try again"
	if got := FormatUserError(ErrTooManyImports); got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(ErrTreeNotFound) {
		t.Error("IsUserFacing(ErrTreeNotFound) = false")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing(boom) = true")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Fatal("NewUserError(nil) != nil")
	}

	err := fmt.Errorf("accept I1: %w", ErrNoPendingChanges)
	ue := NewUserError(err)
	if ue.Error() != "There are no pending changes for this record" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, ErrNoPendingChanges) {
		t.Error("errors.Is(ue, ErrNoPendingChanges) = false, want true via Unwrap")
	}
	if ue.User.Code != "CHG001" {
		t.Errorf("Code = %q, want CHG001", ue.User.Code)
	}
}
