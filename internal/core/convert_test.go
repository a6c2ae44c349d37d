package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ----------------------------------------------------------------------------
// ToPgText Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue string
	}{
		{name: "simple value", input: "Smith", wantValid: true, wantValue: "Smith"},
		{name: "empty string is NULL", input: "", wantValid: false},
		{name: "whitespace kept", input: "  Jo  ", wantValid: true, wantValue: "  Jo  "},
		{name: "unicode", input: "Zürich", wantValid: true, wantValue: "Zürich"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.String != tt.wantValue {
				t.Errorf("ToPgText(%q).String = %q, want %q", tt.input, got.String, tt.wantValue)
			}
			if back := FromPgText(got); back != tt.wantValue {
				t.Errorf("FromPgText() = %q, want %q", back, tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgInt4 Tests
// ----------------------------------------------------------------------------

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		input     int
		wantValid bool
	}{
		{input: 0, wantValid: false},
		{input: 1, wantValid: true},
		{input: -7, wantValid: true},
	}
	for _, tt := range tests {
		got := ToPgInt4(tt.input)
		if got.Valid != tt.wantValid {
			t.Errorf("ToPgInt4(%d).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
		}
		if got.Valid && int(got.Int32) != tt.input {
			t.Errorf("ToPgInt4(%d).Int32 = %d", tt.input, got.Int32)
		}
	}
}

// ----------------------------------------------------------------------------
// UUID Tests
// ----------------------------------------------------------------------------

func TestToPgUUID(t *testing.T) {
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{name: "valid", input: id, wantValid: true},
		{name: "empty", input: "", wantValid: false},
		{name: "garbage", input: "not-a-uuid", wantValid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgUUID(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgUUID(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.Valid && PgUUIDToString(got) != tt.input {
				t.Errorf("round trip = %q, want %q", PgUUIDToString(got), tt.input)
			}
		})
	}

	if s := PgUUIDToString(pgtype.UUID{}); s != "" {
		t.Errorf("PgUUIDToString(invalid) = %q, want empty", s)
	}
}

// ----------------------------------------------------------------------------
// ToPgTimestamptz Tests
// ----------------------------------------------------------------------------

func TestToPgTimestamptz(t *testing.T) {
	if ToPgTimestamptz(time.Time{}).Valid {
		t.Error("zero time should be NULL")
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := ToPgTimestamptz(now)
	if !got.Valid || !got.Time.Equal(now) {
		t.Errorf("ToPgTimestamptz(%v) = %+v", now, got)
	}
}
