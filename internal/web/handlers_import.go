package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/logging"
)

// formOverhead is allowed on top of the file size for multipart framing and
// form fields.
const formOverhead = 1 << 20

// spooledFile is an uploaded file copied to disk. The import runs after the
// request returns, so it cannot read from the request body. Close removes
// the file.
type spooledFile struct {
	*os.File
}

func (f *spooledFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// spool copies r to a temporary file positioned at its start.
func spool(r io.Reader) (*spooledFile, int64, error) {
	tmp, err := os.CreateTemp("", "gedimport-*.upload")
	if err != nil {
		return nil, 0, fmt.Errorf("spool upload: %w", err)
	}
	f := &spooledFile{File: tmp}

	n, err := io.Copy(tmp, r)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, n, nil
}

// importForm is what handleImport reads from the multipart body.
type importForm struct {
	file     *spooledFile
	fileName string
	size     int64
	replace  bool
}

// readImportForm streams the multipart body. The "file" part is spooled to
// disk; "replace" may come before or after it.
func readImportForm(r *http.Request) (*importForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	form := &importForm{replace: parseBool(r.URL.Query().Get("replace"))}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			form.close()
			return nil, err
		}

		switch part.FormName() {
		case "file":
			if form.file != nil {
				_ = part.Close()
				continue
			}
			form.fileName = part.FileName()
			form.file, form.size, err = spool(part)
		case "replace":
			form.replace, err = readBoolPart(part)
		}
		_ = part.Close()
		if err != nil {
			form.close()
			return nil, err
		}
	}
	return form, nil
}

func (f *importForm) close() {
	if f.file != nil {
		_ = f.file.Close()
	}
}

func readBoolPart(part *multipart.Part) (bool, error) {
	b, err := io.ReadAll(io.LimitReader(part, 16))
	if err != nil {
		return false, err
	}
	return parseBool(string(b)), nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

// handleImport starts a file import into a tree. The body is multipart with
// a "file" part and an optional "replace" field. Responds 202 with the
// import id; progress is streamed from /api/imports/{id}/progress.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	treeName := chi.URLParam(r, "tree")
	r = withRequestMeta(r)

	if max := s.cfg.Import.MaxFileSize; max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+formOverhead)
	}

	form, err := readImportForm(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize), http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, http.StatusBadRequest, "REQ001", "invalid multipart form")
		return
	}
	if form.file == nil {
		s.respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}

	// StartImport owns the file from here and closes it on every path.
	importID, err := s.service.StartImport(r.Context(), treeName, form.fileName, form.file, form.size, core.ImportOptions{
		Replace:  form.replace,
		UserName: userName(r),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("import accepted",
		"import_id", importID,
		"tree", treeName,
		"file", form.fileName,
		"bytes", form.size,
		"replace", form.replace,
	)

	w.Header().Set("Location", "/api/imports/"+importID)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"importId": importID})
}

// handleImportProgress streams import progress via Server-Sent Events.
// The event id is the percentage complete, so a reconnecting client passing
// lastEventId only receives newer events.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "ERR000", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.ImportProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Skip events a resuming client already has.
			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && progress.Phase != core.PhaseComplete {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportStatus returns the current progress without waiting.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetImportProgress(chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, progress)
}

// handleImportResult waits up to ?wait (default 30s) for the import to
// finish and returns its result. An import still running after the wait is
// answered with 202 and its progress.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	wait := 30 * time.Second
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, r, http.StatusBadRequest, "REQ002", "wait must be a duration such as 10s")
			return
		}
		wait = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	importID := chi.URLParam(r, "importID")
	result, err := s.service.GetImportResult(ctx, importID)
	if err != nil {
		if ctx.Err() != nil && r.Context().Err() == nil {
			// Still running; report progress instead.
			progress, perr := s.service.GetImportProgress(importID)
			if perr == nil {
				writeJSONStatus(w, http.StatusAccepted, progress)
				return
			}
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleCancelImport cancels an in-progress import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")
	if err := s.service.CancelImport(importID); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("import cancel requested", "import_id", importID)
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleListImports returns a tree's import history.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	imports, err := s.service.ListImports(r.Context(), chi.URLParam(r, "tree"), parseIntParam(r, "limit", 0))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, imports)
}

// handleImportFailures returns the records an import could not store. With
// ?format=ged they are returned as a GEDCOM file that can be fixed and
// imported again.
func (s *Server) handleImportFailures(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")
	failures, err := s.service.ImportFailures(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if r.URL.Query().Get("format") != "ged" {
		writeJSON(w, failures)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="failed_%s.ged"`, importID))
	for _, f := range failures {
		fmt.Fprintf(w, "%s\n", strings.TrimRight(f.Record, "\n"))
	}
}

// parseIntParam parses a non-negative integer query parameter with a
// default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
