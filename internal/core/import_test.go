package core_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/gedimport/internal/config"
	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/core/memstore"
)

func newService(t *testing.T, cfg *config.Config) (*core.Service, *memstore.DB) {
	t.Helper()
	store := memstore.New()
	svc := core.NewService(store, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, store
}

// runImport starts an import and waits for its result.
func runImport(t *testing.T, svc *core.Service, tree, ged string, opts core.ImportOptions) *core.ImportResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := svc.StartImport(ctx, tree, "test.ged", strings.NewReader(ged), int64(len(ged)), opts)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	res, err := svc.GetImportResult(ctx, id)
	if err != nil {
		t.Fatalf("GetImportResult() error = %v", err)
	}
	return res
}

const familyGEDCOM = "0 HEAD\r\n1 CHAR UTF-8\r\n" +
	"0 @I1@ INDI\r\n1 NAME John /Smith/\r\n1 FAMS @F1@\r\n" +
	"0 @I1@ INDI\r\n1 NAME Duplicate /Smith/\r\n" +
	"0 @F1@ FAM\r\n1 HUSB @I1@\r\n" +
	"0 @X1@ _CUSTOM\r\n1 NOTE skipped\r\n" +
	"0 TRLR\r\n"

// ----------------------------------------------------------------------------
// StartImport Tests
// ----------------------------------------------------------------------------

func TestStartImport(t *testing.T) {
	svc, store := newService(t, nil)
	res := runImport(t, svc, "demo", familyGEDCOM, core.ImportOptions{UserName: "alice"})

	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	if res.Charset != "UTF-8" {
		t.Errorf("Charset = %q, want UTF-8", res.Charset)
	}
	if res.Records != 6 || res.Imported != 4 || res.Skipped != 1 {
		t.Errorf("counts = records %d imported %d skipped %d, want 6/4/1", res.Records, res.Imported, res.Skipped)
	}
	wantByType := map[string]int{"HEAD": 1, "INDI": 1, "FAM": 1, "TRLR": 1}
	if diff := cmp.Diff(wantByType, res.ByType); diff != "" {
		t.Errorf("ByType mismatch (-want +got):\n%s", diff)
	}

	if len(res.FailedRecords) != 1 {
		t.Fatalf("FailedRecords = %+v, want one", res.FailedRecords)
	}
	failed := res.FailedRecords[0]
	if failed.Number != 3 || failed.Xref != "I1" {
		t.Errorf("failed record = %+v, want number 3 xref I1", failed)
	}
	if !strings.Contains(failed.Reason, "duplicate key") {
		t.Errorf("Reason = %q", failed.Reason)
	}

	row, ok := store.Individual(1, "I1")
	if !ok || !strings.Contains(row.Gedcom, "John /Smith/") {
		t.Errorf("I1 = %+v, want the first definition", row)
	}
	if names := store.Names(1, "I1"); len(names) != 1 {
		t.Errorf("rolled back record left name rows: %+v", names)
	}

	stats, err := svc.TreeStats(context.Background(), "demo")
	if err != nil {
		t.Fatalf("TreeStats() error = %v", err)
	}
	if stats.Individuals != 1 || stats.Families != 1 || stats.Other != 2 {
		t.Errorf("stats = %+v", stats)
	}

	failures, err := svc.ImportFailures(context.Background(), res.ImportID)
	if err != nil {
		t.Fatalf("ImportFailures() error = %v", err)
	}
	if len(failures) != 1 || failures[0].Number != 3 {
		t.Errorf("stored failures = %+v", failures)
	}

	imports, err := svc.ListImports(context.Background(), "demo", 0)
	if err != nil {
		t.Fatalf("ListImports() error = %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("ListImports() = %+v, want one", imports)
	}
	got := imports[0]
	if got.Status != "complete" || got.Records != 6 || got.Imported != 4 || got.Failed != 1 || got.Charset != "UTF-8" {
		t.Errorf("import row = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	if actions := store.AuditActions(); !contains(actions, string(core.ActionImport)) {
		t.Errorf("audit actions = %v, want an import entry", actions)
	}
}

func TestStartImport_Gzip(t *testing.T) {
	svc, store := newService(t, nil)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	io.WriteString(zw, "0 HEAD\n0 @I1@ INDI\n1 NAME A /B/\n0 TRLR\n")
	zw.Close()

	res := runImport(t, svc, "demo", buf.String(), core.ImportOptions{})
	if res.Error != "" || res.Imported != 3 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := store.Individual(1, "I1"); !ok {
		t.Error("I1 not imported from gzip stream")
	}
}

func TestStartImport_Replace(t *testing.T) {
	svc, store := newService(t, nil)
	runImport(t, svc, "demo", "0 @I1@ INDI\n1 NAME Old /One/\n", core.ImportOptions{})

	res := runImport(t, svc, "demo", "0 @I2@ INDI\n1 NAME New /One/\n", core.ImportOptions{Replace: true})
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	if _, ok := store.Individual(1, "I1"); ok {
		t.Error("I1 survived a replacing import")
	}
	if _, ok := store.Individual(1, "I2"); !ok {
		t.Error("I2 not imported")
	}
}

func TestStartImport_Appends(t *testing.T) {
	svc, store := newService(t, nil)
	runImport(t, svc, "demo", "0 @I1@ INDI\n", core.ImportOptions{})
	runImport(t, svc, "demo", "0 @I2@ INDI\n", core.ImportOptions{})

	for _, xref := range []string{"I1", "I2"} {
		if _, ok := store.Individual(1, xref); !ok {
			t.Errorf("%s missing", xref)
		}
	}
}

func TestStartImport_EmptyFile(t *testing.T) {
	svc, _ := newService(t, nil)
	res := runImport(t, svc, "demo", "\r\n\r\n", core.ImportOptions{})

	if !strings.Contains(res.Error, core.ErrEmptyFile.Error()) {
		t.Errorf("Error = %q, want empty file", res.Error)
	}
	progress, err := svc.GetImportProgress(res.ImportID)
	if err != nil {
		t.Fatalf("GetImportProgress() error = %v", err)
	}
	if progress.Phase != core.PhaseFailed {
		t.Errorf("Phase = %q, want failed", progress.Phase)
	}
	if !strings.Contains(progress.Error, "FILE002") {
		t.Errorf("progress error = %q, want the FILE002 message", progress.Error)
	}

	imports, _ := svc.ListImports(context.Background(), "demo", 0)
	if len(imports) != 1 || imports[0].Status != "failed" {
		t.Errorf("import rows = %+v", imports)
	}
}

func TestStartImport_Validation(t *testing.T) {
	svc, _ := newService(t, &config.Config{Import: config.ImportConfig{MaxFileSize: 10}})
	ctx := context.Background()

	tests := []struct {
		name    string
		tree    string
		size    int64
		wantErr error
	}{
		{name: "too large", tree: "demo", size: 11, wantErr: core.ErrFileTooLarge},
		{name: "no tree", tree: "  ", size: 5, wantErr: core.ErrTreeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartImport(ctx, tt.tree, "a.ged", strings.NewReader("0 HEAD"), tt.size, core.ImportOptions{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("StartImport() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestStartImport_ClosesReader(t *testing.T) {
	svc, _ := newService(t, &config.Config{Import: config.ImportConfig{MaxFileSize: 10}})

	rejected := &closeRecorder{Reader: strings.NewReader("")}
	if _, err := svc.StartImport(context.Background(), "demo", "a.ged", rejected, 100, core.ImportOptions{}); err == nil {
		t.Fatal("expected an error")
	}
	if !rejected.closed {
		t.Error("rejected reader not closed")
	}

	accepted := &closeRecorder{Reader: strings.NewReader("0 TRLR\n")}
	id, err := svc.StartImport(context.Background(), "demo", "a.ged", accepted, 7, core.ImportOptions{})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if _, err := svc.GetImportResult(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	// The reader is closed by a deferred call after the result is published.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && svc.Limiter().ActiveCount() > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.Limiter().ActiveCount() != 0 {
		t.Error("import slot not released")
	}
}

func TestStartImport_TooManyImports(t *testing.T) {
	svc, _ := newService(t, &config.Config{Import: config.ImportConfig{
		MaxConcurrent: 1,
		MaxWaitTime:   20 * time.Millisecond,
	}})
	ctx := context.Background()

	pr, pw := io.Pipe()
	first, err := svc.StartImport(ctx, "demo", "slow.ged", pr, 0, core.ImportOptions{})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	_, err = svc.StartImport(ctx, "demo", "second.ged", strings.NewReader("0 TRLR"), 6, core.ImportOptions{})
	if !errors.Is(err, core.ErrTooManyImports) {
		t.Errorf("second StartImport() error = %v, want ErrTooManyImports", err)
	}

	io.WriteString(pw, "0 TRLR\n")
	pw.Close()
	res, err := svc.GetImportResult(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != "" {
		t.Errorf("first import Error = %q", res.Error)
	}
}

func TestCancelImport(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	pr, pw := io.Pipe()
	id, err := svc.StartImport(ctx, "demo", "cancel.ged", pr, 0, core.ImportOptions{})
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if err := svc.CancelImport(id); err != nil {
		t.Fatalf("CancelImport() error = %v", err)
	}

	io.WriteString(pw, "0 HEAD\n0 @I1@ INDI\n1 NAME A /B/\n0 TRLR\n")
	pw.Close()

	res, err := svc.GetImportResult(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != core.ErrImportCancelled.Error() {
		t.Errorf("Error = %q, want %q", res.Error, core.ErrImportCancelled)
	}
	progress, _ := svc.GetImportProgress(id)
	if progress.Phase != core.PhaseCancelled {
		t.Errorf("Phase = %q, want cancelled", progress.Phase)
	}
	if _, ok := store.Individual(1, "I1"); ok {
		t.Error("cancelled import stored records")
	}

	imports, _ := svc.ListImports(ctx, "demo", 0)
	if len(imports) != 1 || imports[0].Status != "cancelled" {
		t.Errorf("import rows = %+v", imports)
	}
}

func TestImportLookups_Unknown(t *testing.T) {
	svc, _ := newService(t, nil)

	if err := svc.CancelImport("nope"); !errors.Is(err, core.ErrImportNotFound) {
		t.Errorf("CancelImport() error = %v", err)
	}
	if _, err := svc.GetImportProgress("nope"); !errors.Is(err, core.ErrImportNotFound) {
		t.Errorf("GetImportProgress() error = %v", err)
	}
	if _, err := svc.SubscribeProgress("nope"); !errors.Is(err, core.ErrImportNotFound) {
		t.Errorf("SubscribeProgress() error = %v", err)
	}
	if _, err := svc.ImportFailures(context.Background(), "not-a-uuid"); !errors.Is(err, core.ErrImportNotFound) {
		t.Errorf("ImportFailures() error = %v", err)
	}
	if _, err := svc.ListImports(context.Background(), "missing", 0); !errors.Is(err, core.ErrTreeNotFound) {
		t.Errorf("ListImports() error = %v", err)
	}
}

func TestSubscribeProgress(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	pr, pw := io.Pipe()
	id, err := svc.StartImport(ctx, "demo", "live.ged", pr, 0, core.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}

	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	io.WriteString(pw, "0 HEAD\n0 @I1@ INDI\n0 TRLR\n")
	pw.Close()

	var last core.ImportProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel never closed")
		}
	}
	if last.Phase != core.PhaseComplete || last.Imported != 3 {
		t.Errorf("last progress = %+v, want complete with 3 imported", last)
	}
	if last.Percent() != 100 {
		t.Errorf("Percent() = %d, want 100", last.Percent())
	}

	// Subscribing after completion yields the final state once.
	late, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := <-late
	if !ok || p.Phase != core.PhaseComplete {
		t.Errorf("late subscriber got %+v, %v", p, ok)
	}
	if _, ok := <-late; ok {
		t.Error("late subscriber channel not closed")
	}
}

func TestGetImportResult_ContextDone(t *testing.T) {
	svc, _ := newService(t, nil)

	pr, pw := io.Pipe()
	defer pw.Close()
	id, err := svc.StartImport(context.Background(), "demo", "slow.ged", pr, 0, core.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.GetImportResult(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetImportResult() error = %v, want deadline exceeded", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
