package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRecordTypes lists the record types the importer stores.
func (s *Server) handleRecordTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.RecordTypes())
}

// handleListTrees lists every tree.
func (s *Server) handleListTrees(w http.ResponseWriter, r *http.Request) {
	trees, err := s.service.ListTrees(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, trees)
}

// handleTreeStats returns a tree with its record counts.
func (s *Server) handleTreeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.TreeStats(r.Context(), chi.URLParam(r, "tree"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, stats)
}

// handleGetRecord returns the stored text of a record. ?format=ged returns
// the bare GEDCOM text.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "tree"), chi.URLParam(r, "xref"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if r.URL.Query().Get("format") == "ged" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, rec.Gedcom+"\n")
		return
	}
	writeJSON(w, rec)
}

// handleTreeSettings returns the effective settings of a tree.
func (s *Server) handleTreeSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.TreeSettings(r.Context(), chi.URLParam(r, "tree"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, settings)
}

// settingRequest is the body of handleSetTreeSetting.
type settingRequest struct {
	Value string `json:"value"`
}

// handleSetTreeSetting stores one tree setting, creating the tree if it
// does not exist yet.
func (s *Server) handleSetTreeSetting(w http.ResponseWriter, r *http.Request) {
	r = withRequestMeta(r)

	var req settingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "REQ007", `body must be {"value": "..."}`)
		return
	}

	treeName := chi.URLParam(r, "tree")
	if err := s.service.SetTreeSetting(r.Context(), treeName, chi.URLParam(r, "name"), req.Value); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	settings, err := s.service.TreeSettings(r.Context(), treeName)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, settings)
}
