package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/gedimport/internal/config"
	"github.com/JonMunkholm/gedimport/internal/core"
)

// ----------------------------------------------------------------------------
// Registry Tests
// ----------------------------------------------------------------------------

func TestHandlerFor(t *testing.T) {
	tests := []struct {
		recordType string
		wantTable  string
		wantOK     bool
	}{
		{recordType: "INDI", wantTable: "individuals", wantOK: true},
		{recordType: "FAM", wantTable: "families", wantOK: true},
		{recordType: "SOUR", wantTable: "sources", wantOK: true},
		{recordType: "OBJE", wantTable: "media", wantOK: true},
		{recordType: "REPO", wantTable: "other", wantOK: true},
		{recordType: "NOTE", wantTable: "other", wantOK: true},
		{recordType: "HEAD", wantTable: "other", wantOK: true},
		{recordType: "_PLAC", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.recordType, func(t *testing.T) {
			h, ok := core.HandlerFor(tt.recordType)
			if ok != tt.wantOK {
				t.Fatalf("HandlerFor(%q) ok = %v, want %v", tt.recordType, ok, tt.wantOK)
			}
			if ok && h.Table != tt.wantTable {
				t.Errorf("Table = %q, want %q", h.Table, tt.wantTable)
			}
		})
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering INDI twice did not panic")
		}
	}()
	h, _ := core.HandlerFor("INDI")
	core.Register(h)
}

func TestRecordTypes(t *testing.T) {
	svc, _ := newService(t, nil)
	types := svc.RecordTypes()

	if len(types) != core.HandlerCount() {
		t.Fatalf("RecordTypes() returned %d, want %d", len(types), core.HandlerCount())
	}
	if last := types[len(types)-1]; last.Type != "*" {
		t.Errorf("last type = %q, want the fallback", last.Type)
	}
	for _, rt := range types {
		if rt.Type == "INDI" && len(rt.Indexes) != 4 {
			t.Errorf("INDI indexes = %v, want all four", rt.Indexes)
		}
	}
}

// ----------------------------------------------------------------------------
// Tree Tests
// ----------------------------------------------------------------------------

func TestTrees(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.TreeStats(ctx, "demo"); !errors.Is(err, core.ErrTreeNotFound) {
		t.Errorf("TreeStats() error = %v, want ErrTreeNotFound", err)
	}

	runImport(t, svc, "demo", smithGEDCOM, core.ImportOptions{})
	runImport(t, svc, "other", "0 @S1@ SOUR\n1 TITL X\n", core.ImportOptions{})

	trees, err := svc.ListTrees(ctx)
	if err != nil {
		t.Fatalf("ListTrees() error = %v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("ListTrees() = %+v, want two", trees)
	}

	stats, err := svc.TreeStats(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Individuals != 2 || stats.Families != 1 || stats.Sources != 0 || stats.Places != 2 {
		t.Errorf("demo stats = %+v", stats)
	}
}

func TestGetRecord(t *testing.T) {
	svc, _ := newService(t, nil)
	runImport(t, svc, "demo", smithGEDCOM, core.ImportOptions{})
	ctx := context.Background()

	rec, err := svc.GetRecord(ctx, "demo", "F1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if rec.Type != "FAM" || rec.Gedcom != "0 @F1@ FAM\n1 HUSB @I1@\n1 WIFE @I2@" {
		t.Errorf("GetRecord() = %+v", rec)
	}

	if _, err := svc.GetRecord(ctx, "demo", "X9"); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("GetRecord(missing) error = %v, want ErrNoRows", err)
	}
}

// ----------------------------------------------------------------------------
// Settings Tests
// ----------------------------------------------------------------------------

func TestTreeSettings(t *testing.T) {
	svc, _ := newService(t, &config.Config{Tree: config.TreeConfig{UseRIN: true, MediaIDPrefix: "OB"}})
	ctx := context.Background()

	if err := svc.SetTreeSetting(ctx, "demo", core.SettingGenerateUIDs, "true"); err != nil {
		t.Fatalf("SetTreeSetting() error = %v", err)
	}
	if err := svc.SetTreeSetting(ctx, "demo", "NOPE", "1"); !errors.Is(err, core.ErrInvalidSetting) {
		t.Errorf("SetTreeSetting(unknown) error = %v, want ErrInvalidSetting", err)
	}

	got, err := svc.TreeSettings(ctx, "demo")
	if err != nil {
		t.Fatalf("TreeSettings() error = %v", err)
	}
	if !got.GenerateUIDs || !got.UseRIN || got.MediaIDPrefix != "OB" {
		t.Errorf("TreeSettings() = %+v", got)
	}
}

func TestTreeSettings_AppliedToImport(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	if err := svc.SetTreeSetting(ctx, "demo", core.SettingMediaIDPrefix, "OB"); err != nil {
		t.Fatal(err)
	}
	runImport(t, svc, "demo", "0 @I1@ INDI\n1 OBJE\n2 FILE a.jpg\n", core.ImportOptions{})

	media := store.Media(1)
	if len(media) != 1 || media[0].ID != "OB1" {
		t.Errorf("media = %+v, want OB1", media)
	}
}

// ----------------------------------------------------------------------------
// Audit Tests
// ----------------------------------------------------------------------------

func TestAuditLog_RequestMeta(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := core.WithRequestMeta(context.Background(), core.RequestMeta{
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8",
		UserName:  "carol",
	})

	if err := svc.SetTreeSetting(ctx, "demo", core.SettingKeepMedia, "yes"); err == nil {
		t.Fatal("expected an invalid setting error")
	}
	if err := svc.SetTreeSetting(ctx, "demo", core.SettingKeepMedia, "1"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.GetAuditLog(context.Background(), core.AuditLogFilter{Action: core.ActionSettingChange})
	if err != nil {
		t.Fatalf("GetAuditLog() error = %v", err)
	}
	if res.TotalCount != 1 || len(res.Entries) != 1 {
		t.Fatalf("GetAuditLog() = %+v, want one entry", res)
	}
	e := res.Entries[0]
	if e.IPAddress != "10.0.0.1" || e.UserAgent != "curl/8" || e.UserName != "carol" {
		t.Errorf("request metadata not recorded: %+v", e)
	}
	if e.Reason != "keep_media=1" || e.TreeName != "demo" || e.Severity != core.SeverityLow {
		t.Errorf("entry = %+v", e)
	}

	byID, err := svc.GetAuditLogByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetAuditLogByID() error = %v", err)
	}
	if byID.Action != core.ActionSettingChange {
		t.Errorf("Action = %q", byID.Action)
	}
}

func TestAuditLog_ImportDetails(t *testing.T) {
	svc, _ := newService(t, nil)
	res := runImport(t, svc, "demo", smithGEDCOM, core.ImportOptions{UserName: "dave"})

	page, err := svc.GetAuditLog(context.Background(), core.AuditLogFilter{TreeName: "demo", Action: core.ActionImport})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("entries = %+v", page.Entries)
	}
	e := page.Entries[0]
	if e.ImportID != res.ImportID || e.UserName != "dave" || e.RowsAffected != res.Imported {
		t.Errorf("entry = %+v", e)
	}
	if e.Details["file"] != "test.ged" || e.Details["charset"] != "UTF-8" {
		t.Errorf("details = %v", e.Details)
	}
}

func TestAuditLog_Paging(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.LogAudit(ctx, core.AuditLogParams{Action: core.ActionChangeReject, TreeName: "demo", Xref: "I1"})
	}

	res, err := svc.GetAuditLog(ctx, core.AuditLogFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalCount != 5 || len(res.Entries) != 2 || res.Page != 2 || res.TotalPages != 3 {
		t.Errorf("page = %+v", res)
	}
}

func TestRunArchiveJob_KeepsRecentEntries(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	svc.LogAudit(ctx, core.AuditLogParams{Action: core.ActionTreeEmpty, TreeName: "demo"})

	svc.RunArchiveJob(ctx, config.ArchiveConfig{})

	res, _ := svc.GetAuditLog(ctx, core.AuditLogFilter{})
	if res.TotalCount != 1 {
		t.Errorf("hot entries = %d, want 1", res.TotalCount)
	}
	archived, err := svc.GetAuditLogArchive(ctx, core.AuditLogFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 0 {
		t.Errorf("archived = %+v, want none", archived)
	}
}

func TestShutdown_CancelsImports(t *testing.T) {
	svc, _ := newService(t, nil)
	runImport(t, svc, "demo", "0 TRLR\n", core.ImportOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
