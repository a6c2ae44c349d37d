package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingDB captures Exec calls.
type recordingDB struct {
	stmts []string
	args  [][]interface{}
	err   error
}

func (r *recordingDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, strings.TrimSpace(sql))
	r.args = append(r.args, args)
	return pgconn.NewCommandTag("DELETE 0"), r.err
}

func (r *recordingDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestSchema_DefinesTables(t *testing.T) {
	tables := []string{
		"gedcom", "gedcom_setting", "individuals", "families", "sources", "other",
		"media", "next_id", "places", "placelinks", "dates", "link", "name", "change",
		"gedcom_import", "gedcom_import_failure", "audit_log", "audit_log_archive",
	}
	schema := Schema()
	for _, table := range tables {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
}

func TestMigrate(t *testing.T) {
	rec := &recordingDB{}
	if err := Migrate(context.Background(), rec); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(rec.stmts) != 1 || len(rec.args[0]) != 0 {
		t.Errorf("Migrate should run the schema once without arguments, got %d calls", len(rec.stmts))
	}

	rec = &recordingDB{err: errors.New("boom")}
	if err := Migrate(context.Background(), rec); err == nil || !strings.Contains(err.Error(), "apply schema") {
		t.Errorf("Migrate() error = %v, want wrapped apply schema error", err)
	}
}

func TestEmptyTree(t *testing.T) {
	tests := []struct {
		name      string
		keepMedia bool
		wantLast  []string
	}{
		{
			name:      "drop media",
			keepMedia: false,
			wantLast: []string{
				"DELETE FROM link WHERE l_file = $1",
				"DELETE FROM media WHERE m_file = $1",
				"DELETE FROM next_id WHERE gedcom_id = $1",
			},
		},
		{
			name:      "keep media",
			keepMedia: true,
			wantLast: []string{
				"DELETE FROM link WHERE l_file = $1 AND l_type <> 'OBJE'",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingDB{}
			err := New(rec).EmptyTree(context.Background(), EmptyTreeParams{TreeID: 7, KeepMedia: tt.keepMedia})
			if err != nil {
				t.Fatalf("EmptyTree() error = %v", err)
			}
			if len(rec.stmts) != len(emptyTreeStatements)+len(tt.wantLast) {
				t.Fatalf("got %d statements", len(rec.stmts))
			}
			got := rec.stmts[len(emptyTreeStatements):]
			if diff := cmp.Diff(tt.wantLast, got); diff != "" {
				t.Errorf("trailing statements mismatch (-want +got):\n%s", diff)
			}
			for i, args := range rec.args {
				if len(args) != 1 || args[0] != int32(7) {
					t.Errorf("statement %d args = %v, want [7]", i, args)
				}
			}
		})
	}

	// The shared statement list must not be modified by either branch.
	if len(emptyTreeStatements) != 9 {
		t.Errorf("emptyTreeStatements modified: %d entries", len(emptyTreeStatements))
	}
}
