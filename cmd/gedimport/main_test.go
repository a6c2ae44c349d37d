package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/gedimport/internal/config"
	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/core/memstore"
)

const smallGEDCOM = "0 HEAD\n1 CHAR UTF-8\n" +
	"0 @I1@ INDI\n1 NAME Ann /Lee/\n" +
	"0 @I1@ INDI\n1 NAME Duplicate /Lee/\n" +
	"0 TRLR\n"

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	svc := core.NewService(memstore.New(), cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	var out bytes.Buffer
	return &app{cfg: cfg, service: svc, out: &out}, &out
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTreeNameFromFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "smith.ged", want: "smith"},
		{path: "/data/Smith Family.GED", want: "Smith Family"},
		{path: "jones.ged.gz", want: "jones"},
		{path: "jones.ged.ZST", want: "jones"},
		{path: "plain", want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := treeNameFromFile(tt.path); got != tt.want {
				t.Errorf("treeNameFromFile(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.ged", "a.GED.gz", "c.ged.zst", "notes.txt", "d.gedcom"} {
		writeFile(t, dir, name, "0 TRLR\n")
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.ged"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := collectFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if strings.Join(names, ",") != "a.GED.gz,b.ged,c.ged.zst,d.gedcom" {
		t.Errorf("collectFiles() = %v", names)
	}

	if _, err := collectFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("collectFiles(missing) expected an error")
	}
}

func TestImportCommand(t *testing.T) {
	a, out := newTestApp(t)
	dir := t.TempDir()
	writeFile(t, dir, "lee.ged", smallGEDCOM)
	writeFile(t, dir, "park.ged", "0 HEAD\n0 @I1@ INDI\n1 NAME Jo /Park/\n0 TRLR\n")
	failures := filepath.Join(dir, "failed")

	if err := execute(t, a, "import", "--dir", dir, "--parallel", "2", "--failures-dir", failures); err != nil {
		t.Fatalf("import error = %v\n%s", err, out)
	}

	summary := out.String()
	for _, want := range []string{"lee.ged", "park.ged", "FILE"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	trees, err := a.service.ListTrees(context.Background())
	if err != nil || len(trees) != 2 {
		t.Fatalf("trees = %+v, err = %v", trees, err)
	}

	b, err := os.ReadFile(filepath.Join(failures, "lee.ged.failed.ged"))
	if err != nil {
		t.Fatalf("failures file: %v", err)
	}
	if !strings.Contains(string(b), "Duplicate /Lee/") {
		t.Errorf("failures file = %q", b)
	}
}

func TestImportCommand_Errors(t *testing.T) {
	a, _ := newTestApp(t)
	if err := execute(t, a, "import"); err == nil {
		t.Error("import without files should fail")
	}
	if err := execute(t, a, "import", filepath.Join(t.TempDir(), "missing.ged")); err == nil {
		t.Error("import of a missing file should fail")
	}
}

func TestChangeCommands(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "lee.ged", smallGEDCOM)
	if err := execute(t, a, "import", "--tree", "demo", path); err != nil {
		t.Fatalf("import error = %v", err)
	}

	if _, err := a.service.SubmitChange(ctx, "demo", "I1", "0 @I1@ INDI\n1 NAME Anne /Lee/", "tester"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := execute(t, a, "accept", "demo"); err != nil {
		t.Fatalf("accept error = %v", err)
	}
	if !strings.Contains(out.String(), "accepted 1 changes in 1 records of demo") {
		t.Errorf("accept output = %q", out)
	}

	if err := execute(t, a, "reject", "demo", "I1"); err == nil {
		t.Error("reject with nothing pending should fail")
	}

	out.Reset()
	if err := execute(t, a, "settings", "demo", core.SettingKeepMedia, "true"); err != nil {
		t.Fatalf("settings error = %v", err)
	}
	if !strings.Contains(out.String(), "keep_media") || !strings.Contains(out.String(), "true") {
		t.Errorf("settings output = %q", out)
	}

	out.Reset()
	if err := execute(t, a, "empty", "demo"); err != nil {
		t.Fatalf("empty error = %v", err)
	}
	if !strings.Contains(out.String(), "media kept: true") {
		t.Errorf("empty output = %q", out)
	}

	out.Reset()
	if err := execute(t, a, "trees"); err != nil {
		t.Fatalf("trees error = %v", err)
	}
	if !strings.Contains(out.String(), "demo") {
		t.Errorf("trees output = %q", out)
	}
}

func TestMigrateCommand_NeedsDatabase(t *testing.T) {
	a, _ := newTestApp(t)
	if err := execute(t, a, "migrate"); err == nil {
		t.Error("migrate without a pool should fail")
	}
}
