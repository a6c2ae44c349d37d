package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	db "github.com/JonMunkholm/gedimport/internal/database"
)

// maxRecordBody bounds a submitted record, matching the import's record
// size limit.
const maxRecordBody = 16 << 20

// changeRequest is the JSON form of a submitted change. A raw GEDCOM body
// (text/plain or text/x-gedcom) is accepted too.
type changeRequest struct {
	Gedcom string `json:"gedcom"`
}

// readRecordText returns the record text of a change submission.
func readRecordText(r *http.Request) (string, error) {
	body := io.LimitReader(r.Body, maxRecordBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req changeRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return "", err
		}
		return req.Gedcom, nil
	}
	b, err := io.ReadAll(body)
	return string(b), err
}

// handleSubmitChange stores a pending edit of a record.
func (s *Server) handleSubmitChange(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	text, err := readRecordText(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "REQ003", "invalid change body")
		return
	}
	if text == "" {
		writeError(w, r, http.StatusBadRequest, "REQ004", "empty record; use DELETE to remove a record")
		return
	}

	change, err := s.service.SubmitChange(r.Context(), chi.URLParam(r, "tree"), chi.URLParam(r, "xref"), text, userName(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSONStatus(w, http.StatusCreated, change)
}

// handleDeleteRecord stores a pending deletion of a record.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	change, err := s.service.SubmitChange(r.Context(), chi.URLParam(r, "tree"), chi.URLParam(r, "xref"), "", userName(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSONStatus(w, http.StatusCreated, change)
}

// handleAcceptChanges applies a record's pending changes.
func (s *Server) handleAcceptChanges(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	result, err := s.service.AcceptAllChanges(r.Context(), chi.URLParam(r, "tree"), chi.URLParam(r, "xref"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleRejectChanges discards a record's pending changes.
func (s *Server) handleRejectChanges(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	result, err := s.service.RejectAllChanges(r.Context(), chi.URLParam(r, "tree"), chi.URLParam(r, "xref"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleAcceptTree applies every pending change in a tree. Records accepted
// before a failure stay accepted and are listed in the error response's
// partial result.
func (s *Server) handleAcceptTree(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	result, err := s.service.AcceptTree(r.Context(), chi.URLParam(r, "tree"))
	if err != nil {
		if result != nil && len(result.Xrefs) > 0 {
			s.respondPartial(w, r, err, result)
			return
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// respondPartial reports an error together with the work that succeeded.
func (s *Server) respondPartial(w http.ResponseWriter, r *http.Request, err error, partial any) {
	status := statusFor(err)
	msg := s.logError(r, err, status)
	writeJSONStatus(w, status, map[string]any{
		"error":   ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code},
		"partial": partial,
	})
}

// handleListChanges lists a tree's changes, newest first. ?status filters
// by pending, accepted or rejected.
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", db.ChangePending, db.ChangeAccepted, db.ChangeRejected:
	default:
		writeError(w, r, http.StatusBadRequest, "REQ005", "status must be pending, accepted or rejected")
		return
	}

	changes, err := s.service.ListChanges(r.Context(), chi.URLParam(r, "tree"), status,
		parseIntParam(r, "limit", 0), parseIntParam(r, "offset", 0))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, changes)
}

// emptyTreeRequest is the optional body of handleEmptyTree.
type emptyTreeRequest struct {
	KeepMedia *bool `json:"keepMedia"`
}

// handleEmptyTree deletes every record of a tree. keepMedia defaults to the
// tree's keep_media setting.
func (s *Server) handleEmptyTree(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)
	treeName := chi.URLParam(r, "tree")

	var req emptyTreeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "REQ006", "invalid request body")
		return
	}

	var keepMedia bool
	if req.KeepMedia != nil {
		keepMedia = *req.KeepMedia
	} else {
		settings, err := s.service.TreeSettings(r.Context(), treeName)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		keepMedia = settings.KeepMedia
	}

	if err := s.service.EmptyTree(r.Context(), treeName, keepMedia, userName(r)); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, map[string]any{"tree": treeName, "keepMedia": keepMedia})
}
