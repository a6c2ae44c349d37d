package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gedimport/internal/core"
	"github.com/JonMunkholm/gedimport/internal/logging"
)

// exportPageSize is how many audit entries are fetched per page while
// exporting.
const exportPageSize = 1000

// parseAuditFilter reads the audit log query parameters. Dates are
// YYYY-MM-DD; "to" includes the whole day.
func parseAuditFilter(r *http.Request) core.AuditLogFilter {
	q := r.URL.Query()
	filter := core.AuditLogFilter{
		TreeName: q.Get("tree"),
		Action:   core.AuditAction(q.Get("action")),
		Limit:    parseIntParam(r, "limit", core.DefaultHistoryLimit),
		Offset:   parseIntParam(r, "offset", 0),
	}

	if page := parseIntParam(r, "page", 0); page > 0 {
		filter.Offset = (page - 1) * filter.Limit
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.StartTime = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.EndTime = t.Add(24*time.Hour - time.Second)
		}
	}
	return filter
}

// handleAuditLog returns one page of audit entries.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetAuditLog(r.Context(), parseAuditFilter(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleAuditLogArchive returns archived audit entries.
func (s *Server) handleAuditLogArchive(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.GetAuditLogArchive(r.Context(), parseAuditFilter(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, entries)
}

// handleAuditLogEntry returns a single audit entry.
func (s *Server) handleAuditLogEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.GetAuditLogByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, entry)
}

// handleAuditLogExport streams matching audit entries as CSV, one page at a
// time, so the export never holds the whole log in memory.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	filter := parseAuditFilter(r)
	filter.Limit = exportPageSize
	filter.Offset = 0

	// Fetch the first page before committing to a CSV response.
	page, err := s.service.GetAuditLog(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	csvWriter := csv.NewWriter(w)
	_ = csvWriter.Write([]string{
		"ID", "Timestamp", "Action", "Severity", "Tree", "Xref",
		"User Name", "IP Address", "Import ID", "Change ID",
		"Rows Affected", "Reason",
	})

	rows := 0
	for {
		for _, e := range page.Entries {
			changeID := ""
			if e.ChangeID != 0 {
				changeID = strconv.Itoa(e.ChangeID)
			}
			if err := csvWriter.Write([]string{
				e.ID,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				string(e.Action),
				string(e.Severity),
				e.TreeName,
				e.Xref,
				e.UserName,
				e.IPAddress,
				e.ImportID,
				changeID,
				strconv.Itoa(e.RowsAffected),
				e.Reason,
			}); err != nil {
				return
			}
			rows++
		}
		csvWriter.Flush()
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		if len(page.Entries) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
		if page, err = s.service.GetAuditLog(r.Context(), filter); err != nil {
			// Headers are sent; all that is left is to log it.
			logging.FromContext(r.Context()).Error("audit export failed", "rows", rows, "error", err)
			return
		}
	}
}
