package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/speclint/internal/classify"
	"github.com/dgallion1/speclint/internal/discover"
	"github.com/dgallion1/speclint/internal/parser"
	"github.com/dgallion1/speclint/internal/pipeline"
)

type validateRequest struct {
	// Files maps root-relative paths to content. Non-Markdown entries are
	// link targets only.
	Files            map[string]string `json:"files"`
	Excluded         []string          `json:"excluded"`
	Unmanaged        []string          `json:"unmanaged"`
	MaxErrors        int               `json:"max_errors"`
	Unmatched        string            `json:"unmatched"`
	WarningsAsErrors bool              `json:"warnings_as_errors"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if req.MaxErrors < 0 {
		jsonError(w, "max_errors must not be negative", http.StatusBadRequest)
		return
	}
	policy := s.cfg.Policy()
	if req.Unmatched != "" {
		p, err := classify.ParsePolicy(req.Unmatched)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		policy = p
	}
	excluded, err := discover.NewPatterns(req.Excluded)
	if err != nil {
		jsonError(w, "excluded: "+err.Error(), http.StatusBadRequest)
		return
	}
	unmanaged, err := discover.NewPatterns(req.Unmanaged)
	if err != nil {
		jsonError(w, "unmanaged: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := make(map[string][]byte, len(req.Files))
	var docs []string
	for name, body := range req.Files {
		clean, ok := cleanPath(name)
		if !ok {
			jsonError(w, fmt.Sprintf("invalid file path %q", name), http.StatusBadRequest)
			return
		}
		files[clean] = []byte(body)
		if parser.IsSupportedExtension(clean) {
			docs = append(docs, clean)
		}
	}
	if len(docs) == 0 {
		jsonError(w, "no markdown documents in request", http.StatusBadRequest)
		return
	}

	maxErrors := s.cfg.MaxErrors
	if req.MaxErrors > 0 {
		maxErrors = req.MaxErrors
	}
	v, err := pipeline.NewValidator(s.reg, pipeline.Options{
		Workers:    s.cfg.Workers,
		MaxErrors:  maxErrors,
		Policy:     policy,
		Excluded:   excluded.Predicate(),
		Unmanaged:  unmanaged.Predicate(),
		FileExists: func(p string) bool { return knownPath(files, p) },
		Links:      s.links,
	}, s.log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := v.Run(r.Context(), docs, func(p string) ([]byte, error) {
		data, ok := files[p]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return data, nil
	})
	if err != nil {
		jsonError(w, "validation cancelled: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	failed := res.Report.Failed(req.WarningsAsErrors || s.cfg.WarningsAsErrors)
	run := &pipeline.Run{
		ID:        uuid.NewString(),
		Report:    res.Report,
		Documents: res.Documents,
		CreatedAt: time.Now(),
		Duration:  res.Duration,
	}
	s.runs.Put(run)
	s.stats.Record(res.Duration, len(res.Documents), failed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":  run.ID,
		"failed":  failed,
		"report":  run.Report,
		"run_url": fmt.Sprintf("/api/runs/%s", run.ID),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.runs.Get(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// cleanPath normalizes a posted path to a root-relative slash path.
func cleanPath(name string) (string, bool) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

// knownPath reports whether p is a posted file or a directory holding one.
func knownPath(files map[string][]byte, p string) bool {
	if _, ok := files[p]; ok {
		return true
	}
	prefix := strings.TrimSuffix(p, "/") + "/"
	for name := range files {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
