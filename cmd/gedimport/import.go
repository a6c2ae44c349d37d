package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/logging"
)

// gedcomSuffixes are the file names picked up from --dir.
var gedcomSuffixes = []string{".ged", ".gedcom", ".ged.gz", ".ged.zst"}

type importOptions struct {
	tree        string
	dir         string
	replace     bool
	parallel    int
	failuresDir string
}

// fileResult is the outcome of importing one file.
type fileResult struct {
	path   string
	tree   string
	result *core.ImportResult
	err    error
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import GEDCOM files",
		Long: `Import one or more GEDCOM files. Files may be gzip or zstd compressed.

Without --tree each file goes into a tree named after the file, and files
are imported in parallel. With --tree every file goes into that tree, one
after another.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := append([]string(nil), args...)
			if opts.dir != "" {
				found, err := collectFiles(opts.dir)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				return errors.New("no GEDCOM files given")
			}
			return runImport(a.context(cmd.Context()), a, opts, files)
		},
	}

	cmd.Flags().StringVar(&opts.tree, "tree", "", "Tree to import into (default: named after each file)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Also import every GEDCOM file in this directory")
	cmd.Flags().BoolVar(&opts.replace, "replace", false, "Empty the tree before importing")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "Files imported at once (default: IMPORT_MAX_CONCURRENT)")
	cmd.Flags().StringVar(&opts.failuresDir, "failures-dir", "", "Write records that failed to <dir>/<file>.failed.ged")
	return cmd
}

// collectFiles lists the GEDCOM files directly inside dir, sorted by name.
func collectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isGEDCOMFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isGEDCOMFile(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range gedcomSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// treeNameFromFile names a tree after a file: "smith.ged.gz" becomes "smith".
func treeNameFromFile(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, suffix := range []string{".gz", ".zst"} {
		if strings.HasSuffix(lower, suffix) {
			name, lower = name[:len(name)-len(suffix)], lower[:len(lower)-len(suffix)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func runImport(ctx context.Context, a *app, opts importOptions, files []string) error {
	limit := opts.parallel
	if limit <= 0 {
		limit = a.cfg.Import.MaxConcurrent
	}
	if limit <= 0 || opts.tree != "" {
		// Files sharing a tree would race on its xrefs.
		limit = 1
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range files {
		i, path := i, path // per-iteration copies for the goroutine (go < 1.22 loop semantics)
		tree := opts.tree
		if tree == "" {
			tree = treeNameFromFile(path)
		}
		results[i] = fileResult{path: path, tree: tree}

		g.Go(func() error {
			res, err := importFile(gctx, a.service, path, tree, core.ImportOptions{Replace: opts.replace, UserName: a.user})
			results[i].result, results[i].err = res, err
			if err == nil && opts.failuresDir != "" && len(res.FailedRecords) > 0 {
				results[i].err = writeFailures(opts.failuresDir, path, res.FailedRecords)
			}
			// Only an interrupt stops the other files.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	waitErr := g.Wait()

	failed := printSummary(a, results)
	if waitErr != nil {
		return waitErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(files))
	}
	return nil
}

// importFile runs one import to completion, logging its progress. An
// interrupt cancels the import and waits for it to roll back.
func importFile(ctx context.Context, svc *core.Service, path, tree string, opts core.ImportOptions) (*core.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	id, err := svc.StartImport(ctx, tree, filepath.Base(path), f, info.Size(), opts)
	if err != nil {
		return nil, err
	}
	log := logging.ForImport(ctx, id, tree, filepath.Base(path))

	if ch, err := svc.SubscribeProgress(id); err == nil {
		go logProgress(log, ch)
	}

	res, err := svc.GetImportResult(ctx, id)
	if err != nil {
		_ = svc.CancelImport(id)
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if res, werr := svc.GetImportResult(waitCtx, id); werr == nil {
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// logProgress logs every tenth percent until the channel closes.
func logProgress(log *slog.Logger, ch <-chan core.ImportProgress) {
	last := -1
	for p := range ch {
		pct := p.Percent()
		if pct/10 == last/10 && p.Phase != core.PhaseComplete {
			continue
		}
		last = pct
		log.Info("import progress",
			"phase", p.Phase,
			"percent", pct,
			"records", p.Records,
			"failed", p.Failed,
		)
	}
}

func writeFailures(dir, path string, failures []core.FailedRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, f := range failures {
		b.WriteString(strings.TrimRight(f.Record, "\n"))
		b.WriteByte('\n')
	}
	out := filepath.Join(dir, filepath.Base(path)+".failed.ged")
	return os.WriteFile(out, []byte(b.String()), 0o644)
}

// printSummary writes one line per file and returns how many failed.
func printSummary(a *app, results []fileResult) int {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTREE\tIMPORTED\tFAILED\tSKIPPED\tMEDIA\tDURATION\tERROR")

	failed := 0
	for _, r := range results {
		name := filepath.Base(r.path)
		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t%s\n", name, r.tree, core.FormatUserError(r.err))
		case r.result == nil:
			failed++
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\tnot started\n", name, r.tree)
		default:
			res := r.result
			if res.Error != "" {
				failed++
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
				name, r.tree, res.Imported, len(res.FailedRecords), res.Skipped,
				res.MediaHoisted, res.Duration.Round(time.Millisecond), res.Error)
		}
	}
	_ = tw.Flush()
	return failed
}
