package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	db "github.com/JonMunkholm/gedimport/internal/database"
	"github.com/JonMunkholm/gedimport/internal/gedcom"
	"github.com/JonMunkholm/gedimport/internal/logging"
	"github.com/JonMunkholm/gedimport/internal/metrics"
	"github.com/google/uuid"
)

// ContextCheckInterval is how many records pass between cancellation checks.
var ContextCheckInterval = 100

// importStatusRunning marks a gedcom_import row whose import has not finished.
const importStatusRunning = "running"

type activeImport struct {
	ID       string
	Tree     string
	FileName string
	Cancel   context.CancelFunc
	Result   *ImportResult
	Done     chan struct{}

	mu        sync.Mutex
	progress  ImportProgress
	listeners []chan ImportProgress
}

// update changes the progress and sends it to all listeners.
func (imp *activeImport) update(fn func(p *ImportProgress)) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	fn(&imp.progress)
	for _, ch := range imp.listeners {
		select {
		case ch <- imp.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (imp *activeImport) snapshot() ImportProgress {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.progress
}

// complete stores the result, closes all listener channels and marks the
// import done.
func (imp *activeImport) complete(result *ImportResult) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	imp.Result = result
	for _, ch := range imp.listeners {
		close(ch)
	}
	imp.listeners = nil
	close(imp.Done)
}

// finish publishes the result and schedules the import's removal.
func (s *Service) finish(imp *activeImport, result *ImportResult) {
	imp.complete(result)
	s.cleanup(imp.ID, s.cfg.ResultRetention)
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

// StartImport begins an asynchronous import of a GEDCOM file into the named
// tree, creating the tree if needed. It returns the import id immediately;
// use SubscribeProgress or GetImportResult to follow it.
//
// r may be gzip or zstd compressed. size is the byte length of r, or 0 if
// unknown. If r is an io.Closer it is closed when the import ends.
//
// Returns ErrTooManyImports if no import slot frees up within the
// configured wait time.
func (s *Service) StartImport(ctx context.Context, treeName, fileName string, r io.Reader, size int64, opts ImportOptions) (string, error) {
	closeReader := func() {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}

	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		closeReader()
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, size, s.cfg.MaxFileSize)
	}
	if strings.TrimSpace(treeName) == "" {
		closeReader()
		return "", fmt.Errorf("%w: empty tree name", ErrTreeNotFound)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		closeReader()
		return "", err
	}

	importID := uuid.New().String()

	// Request values (ip, user agent, request id) outlive the request.
	importCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)

	imp := &activeImport{
		ID:       importID,
		Tree:     treeName,
		FileName: fileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: ImportProgress{
			ImportID:   importID,
			Tree:       treeName,
			Phase:      PhaseStarting,
			FileName:   fileName,
			BytesTotal: size,
		},
	}

	s.mu.Lock()
	s.imports[importID] = imp
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer closeReader()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in import",
					"import_id", importID,
					"tree", treeName,
					"panic", rec,
				)
				msg := fmt.Sprintf("internal error: %v", rec)
				imp.update(func(p *ImportProgress) {
					p.Phase = PhaseFailed
					p.Error = msg
				})
				s.finish(imp, &ImportResult{ImportID: importID, Tree: treeName, FileName: fileName, Error: msg})
			}
		}()
		s.finish(imp, s.processImport(importCtx, imp, r, size, opts))
	}()

	return importID, nil
}

// processImport streams the file into the tree inside one transaction. Each
// record gets its own savepoint, so a failing record is rolled back and
// reported without aborting the import.
func (s *Service) processImport(ctx context.Context, imp *activeImport, r io.Reader, size int64, opts ImportOptions) *ImportResult {
	start := time.Now()
	log := logging.ForImport(ctx, imp.ID, imp.Tree, imp.FileName)
	log.Info("import started", "bytes", size, "replace", opts.Replace)

	result := &ImportResult{
		ImportID: imp.ID,
		Tree:     imp.Tree,
		FileName: imp.FileName,
		ByType:   make(map[string]int),
	}

	tree, err := s.ensureTree(ctx, imp.Tree)
	if err != nil {
		return s.failImport(ctx, imp, result, start, err)
	}

	if err := s.store.CreateImport(ctx, db.CreateImportParams{
		ID:       ToPgUUID(imp.ID),
		TreeID:   tree.ID,
		FileName: imp.FileName,
		Status:   importStatusRunning,
	}); err != nil {
		return s.failImport(ctx, imp, result, start, fmt.Errorf("record import: %w", err))
	}

	err = s.importStream(ctx, imp, tree.ID, r, size, opts, result)
	s.saveFailures(ctx, imp.ID, result.FailedRecords)
	if err != nil {
		s.failImport(ctx, imp, result, start, err)
		s.finishImportRow(ctx, imp.ID, result, importPhase(ctx, err))
		return result
	}

	result.Duration = time.Since(start)
	s.finishImportRow(ctx, imp.ID, result, PhaseComplete)
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseComplete
		p.Records = result.Records
		p.Imported = result.Imported
		p.Failed = len(result.FailedRecords)
		p.Skipped = result.Skipped
		p.MediaHoisted = result.MediaHoisted
	})

	s.LogAudit(ctx, AuditLogParams{
		Action:       ActionImport,
		TreeName:     imp.Tree,
		UserName:     opts.UserName,
		ImportID:     imp.ID,
		RowsAffected: result.Imported,
		Details: map[string]any{
			"file":         imp.FileName,
			"charset":      result.Charset,
			"records":      result.Records,
			"failed":       len(result.FailedRecords),
			"mediaHoisted": result.MediaHoisted,
			"replace":      opts.Replace,
		},
	})
	metrics.RecordImport(string(PhaseComplete), result.Duration)

	log.Info("import completed",
		"records", result.Records,
		"imported", result.Imported,
		"failed", len(result.FailedRecords),
		"skipped", result.Skipped,
		"media_hoisted", result.MediaHoisted,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result
}

// importStream runs the transactional part of an import and fills result.
func (s *Service) importStream(ctx context.Context, imp *activeImport, treeID int32, r io.Reader, size int64, opts ImportOptions, result *ImportResult) error {
	stream, err := OpenStream(r, size)
	if err != nil {
		return err
	}
	defer stream.Close()

	result.Charset = string(stream.Charset)
	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseReading
		p.Charset = result.Charset
	})

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	settings, err := s.loadSettings(ctx, tx, treeID)
	if err != nil {
		return err
	}

	if opts.Replace {
		if err := tx.EmptyTree(ctx, db.EmptyTreeParams{TreeID: treeID, KeepMedia: settings.KeepMedia}); err != nil {
			return fmt.Errorf("empty tree: %w", err)
		}
	}

	im := NewImporter(tx, treeID, settings)
	imp.update(func(p *ImportProgress) { p.Phase = PhaseImporting })

	n := 0
	for stream.Records.Scan() {
		raw := stream.Records.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n++

		if n%ContextCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}

		if n == 1 && strings.HasPrefix(raw, "0 HEAD") {
			raw = gedcom.MarkUTF8(raw)
		}

		if err := s.importOne(ctx, tx, im, n, raw, result); err != nil {
			return err
		}

		if n%s.cfg.ProgressInterval == 0 {
			s.reportProgress(imp, stream.Counter, result)
		}
	}
	if err := stream.Records.Err(); err != nil {
		return fmt.Errorf("read record %d: %w", n+1, err)
	}
	if n == 0 {
		return ErrEmptyFile
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.reportProgress(imp, stream.Counter, result)
	return nil
}

// importOne imports record number n under its own savepoint. Only errors
// that make the transaction unusable are returned.
func (s *Service) importOne(ctx context.Context, tx Tx, im *Importer, n int, raw string, result *ImportResult) error {
	result.Records++

	sp := fmt.Sprintf("sp_%d", n)
	if err := tx.Savepoint(ctx, sp); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	out, err := im.ImportRecord(ctx, raw, false)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if rbErr := tx.RollbackToSavepoint(ctx, sp); rbErr != nil {
			return fmt.Errorf("roll back record %d: %w", n, rbErr)
		}
		result.FailedRecords = append(result.FailedRecords, FailedRecord{
			Number: n,
			Xref:   out.Xref,
			Reason: err.Error(),
			Record: raw,
		})
		metrics.RecordsFailed.Inc()
		return nil
	}

	if err := tx.ReleaseSavepoint(ctx, sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	im.CommitCache()

	if out.Skipped {
		result.Skipped++
		metrics.RecordsSkipped.Inc()
		return nil
	}
	result.Imported++
	result.ByType[out.Type]++
	result.MediaHoisted += out.MediaHoisted
	metrics.RecordStored(out.Type, out.MediaHoisted)
	return nil
}

func (s *Service) reportProgress(imp *activeImport, counter *StreamingCountingReader, result *ImportResult) {
	imp.update(func(p *ImportProgress) {
		p.Records = result.Records
		p.Imported = result.Imported
		p.Failed = len(result.FailedRecords)
		p.Skipped = result.Skipped
		p.MediaHoisted = result.MediaHoisted
		p.BytesRead = counter.BytesRead()
	})
}

// failImport marks the import failed or cancelled and returns result.
func (s *Service) failImport(ctx context.Context, imp *activeImport, result *ImportResult, start time.Time, err error) *ImportResult {
	phase := importPhase(ctx, err)
	if phase == PhaseCancelled {
		err = ErrImportCancelled
	}
	result.Error = err.Error()
	result.Duration = time.Since(start)

	imp.update(func(p *ImportProgress) {
		p.Phase = phase
		p.Error = FormatUserError(err)
	})
	metrics.RecordImport(string(phase), result.Duration)

	logging.ForImport(ctx, imp.ID, imp.Tree, imp.FileName).Warn("import failed",
		"phase", phase,
		"error", err,
		"records", result.Records,
	)
	return result
}

// importPhase classifies the error that ended an import. An explicit
// cancel is "cancelled"; running out of time is a failure.
func importPhase(ctx context.Context, err error) ImportPhase {
	if errors.Is(err, ErrImportCancelled) ||
		(errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return PhaseCancelled
	}
	return PhaseFailed
}

// finishImportRow records the final counts in gedcom_import. The import
// context may be cancelled by now, so these writes use a detached one.
func (s *Service) finishImportRow(ctx context.Context, importID string, result *ImportResult, phase ImportPhase) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.FinishImport(ctx, db.FinishImportParams{
		ID:              ToPgUUID(importID),
		Charset:         result.Charset,
		Status:          string(phase),
		RecordsTotal:    int32(result.Records),
		RecordsImported: int32(result.Imported),
		RecordsFailed:   int32(len(result.FailedRecords)),
		MediaHoisted:    int32(result.MediaHoisted),
		Error:           ToPgText(result.Error),
	})
	if err != nil {
		logging.FromContext(ctx).Error("finish import row", "import_id", importID, "error", err)
	}
}

func (s *Service) saveFailures(ctx context.Context, importID string, failures []FailedRecord) {
	ctx = context.WithoutCancel(ctx)
	for _, f := range failures {
		err := s.store.InsertImportFailure(ctx, db.ImportFailure{
			ImportID:     ToPgUUID(importID),
			RecordNumber: int32(f.Number),
			Xref:         ToPgText(f.Xref),
			Reason:       f.Reason,
			Record:       f.Record,
		})
		if err != nil {
			logging.FromContext(ctx).Error("save import failure",
				"import_id", importID,
				"record", f.Number,
				"error", err,
			)
			return
		}
	}
}

func (s *Service) getImport(importID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[importID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return imp, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the import completes.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, err := s.getImport(importID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.mu.Lock()
	defer imp.mu.Unlock()
	select {
	case <-imp.Done:
		// Finished imports get the final state and a closed channel.
		ch <- imp.progress
		close(ch)
		return ch, nil
	default:
	}
	imp.listeners = append(imp.listeners, ch)
	// Send current progress immediately
	ch <- imp.progress

	return ch, nil
}

// CancelImport cancels an in-progress import. Nothing it wrote is kept.
func (s *Service) CancelImport(importID string) error {
	imp, err := s.getImport(importID)
	if err != nil {
		return err
	}
	imp.Cancel()
	return nil
}

// GetImportResult returns the result of an import, waiting for it to
// finish or for ctx to be done.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*ImportResult, error) {
	imp, err := s.getImport(importID)
	if err != nil {
		return nil, err
	}

	select {
	case <-imp.Done:
		return imp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, err := s.getImport(importID)
	if err != nil {
		return ImportProgress{}, err
	}
	return imp.snapshot(), nil
}

// ImportRecordInfo is a stored gedcom_import row.
type ImportRecordInfo struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	Charset      string     `json:"charset"`
	Status       string     `json:"status"`
	Records      int        `json:"records"`
	Imported     int        `json:"imported"`
	Failed       int        `json:"failed"`
	MediaHoisted int        `json:"mediaHoisted"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

func importRowToInfo(row db.GedcomImport) ImportRecordInfo {
	info := ImportRecordInfo{
		ID:           PgUUIDToString(row.ID),
		FileName:     row.FileName,
		Charset:      row.Charset,
		Status:       row.Status,
		Records:      int(row.RecordsTotal),
		Imported:     int(row.RecordsImported),
		Failed:       int(row.RecordsFailed),
		MediaHoisted: int(row.MediaHoisted),
		Error:        FromPgText(row.Error),
		StartedAt:    row.StartedAt.Time,
	}
	if row.FinishedAt.Valid {
		t := row.FinishedAt.Time
		info.FinishedAt = &t
	}
	return info
}

// ListImports returns the most recent imports of a tree, newest first.
func (s *Service) ListImports(ctx context.Context, treeName string, limit int) ([]ImportRecordInfo, error) {
	tree, err := s.lookupTree(ctx, treeName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.store.ListImports(ctx, db.ListImportsParams{TreeID: tree.ID, Limit: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	infos := make([]ImportRecordInfo, len(rows))
	for i, row := range rows {
		infos[i] = importRowToInfo(row)
	}
	return infos, nil
}

// ImportFailures returns the records an import could not store.
func (s *Service) ImportFailures(ctx context.Context, importID string) ([]FailedRecord, error) {
	id := ToPgUUID(importID)
	if !id.Valid {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	rows, err := s.store.ListImportFailures(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list import failures: %w", err)
	}
	out := make([]FailedRecord, len(rows))
	for i, row := range rows {
		out[i] = FailedRecord{
			Number: int(row.RecordNumber),
			Xref:   FromPgText(row.Xref),
			Reason: row.Reason,
			Record: row.Record,
		}
	}
	return out, nil
}
