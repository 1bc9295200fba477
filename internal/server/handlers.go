package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-catalog/internal/catalog"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/startup"
)

const defaultScanListLimit = 20

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status       string         `json:"status"`
	Version      string         `json:"version"`
	Uptime       string         `json:"uptime"`
	Scanner      indexer.Status `json:"scanner"`
	GoVersion    string         `json:"goVersion"`
	NumGoroutine int            `json:"numGoroutine"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "alive",
		Version:      startup.Version,
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Scanner:      s.scanner.Status(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for _, check := range s.cfg.ReadyChecks {
		if err := check.Fn(r.Context()); err != nil {
			failures[check.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, startup.GetBuildInfo())
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := defaultScanListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.store.ListScanSessions(r.Context(), limit)
	if err != nil {
		logging.Error("list scan sessions: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list scan sessions")
		return
	}
	if sessions == nil {
		sessions = []catalog.ScanSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		logging.Error("list groups: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []catalog.FaceGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// ScanRequest is the optional POST /api/scan body.
type ScanRequest struct {
	Root string `json:"root"`
	// Wait runs the scan inside the request and returns its stats.
	Wait bool `json:"wait"`
}

// ScanResult reports one root of a waited scan.
type ScanResult struct {
	Root  string            `json:"root"`
	Stats indexer.ScanStats `json:"stats"`
	Error string            `json:"error,omitempty"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if r.URL.Query().Get("wait") == "true" {
		req.Wait = true
	}

	roots := s.cfg.Roots
	if req.Root != "" {
		roots = []string{req.Root}
	}
	if len(roots) == 0 {
		writeJSONError(w, http.StatusBadRequest, "no root given and no scan roots configured")
		return
	}
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("%s is not a directory", root))
			return
		}
	}

	if req.Wait {
		results := make([]ScanResult, 0, len(roots))
		for _, root := range roots {
			stats, err := s.scanner.Scan(r.Context(), root)
			res := ScanResult{Root: root, Stats: stats}
			if err != nil {
				res.Error = err.Error()
			}
			results = append(results, res)
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	for _, root := range roots {
		s.scans.Add(1)
		go func(root string) {
			defer s.scans.Done()
			if _, err := s.scanner.Scan(s.scanCtx, root); err != nil {
				logging.Warn("Scan of %s requested via API ended: %v", root, err)
			}
		}(root)
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"roots":  roots,
	})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.scanner.Reprocess(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "media not found")
	case err != nil:
		logging.Error("reprocess %s: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "reprocessed", "id": id})
	}
}

// CreateGroupRequest is the POST /api/groups body. Name may be omitted.
type CreateGroupRequest struct {
	Name *string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name must not be blank")
		return
	}

	id, err := s.store.CreateGroup(r.Context(), req.Name)
	if err != nil {
		logging.Error("create group: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "name": req.Name})
}

func (s *Server) handleGroupFaces(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		logging.Error("list groups: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if !slices.ContainsFunc(groups, func(g catalog.FaceGroup) bool { return g.ID == id }) {
		writeJSONError(w, http.StatusNotFound, "group not found")
		return
	}

	all, err := s.store.ListMemberships(r.Context())
	if err != nil {
		logging.Error("list memberships: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list memberships")
		return
	}
	members := []catalog.Membership{}
	for _, m := range all {
		if m.GroupID == id {
			members = append(members, m)
		}
	}
	writeJSON(w, http.StatusOK, members)
}

// AssignFaceRequest is the POST /api/groups/{id}/faces body. Score
// defaults to 1.
type AssignFaceRequest struct {
	FaceID string   `json:"faceId"`
	Score  *float64 `json:"score"`
}

func (s *Server) handleAssignFace(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]

	var req AssignFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FaceID == "" {
		writeJSONError(w, http.StatusBadRequest, "faceId is required")
		return
	}
	score := 1.0
	if req.Score != nil {
		score = *req.Score
	}
	if score < -1 || score > 1 {
		writeJSONError(w, http.StatusBadRequest, "score must be within [-1, 1]")
		return
	}

	err := s.store.ReassignGroup(r.Context(), req.FaceID, groupID, score)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "group not found")
	case err != nil:
		logging.Error("assign face %s to %s: %v", req.FaceID, groupID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to assign face")
	default:
		writeJSON(w, http.StatusOK, catalog.Membership{FaceID: req.FaceID, GroupID: groupID, SimilarityScore: score})
	}
}

func (s *Server) handleMediaFaces(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.store.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "media not found")
			return
		}
		logging.Error("get media %s: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load media")
		return
	}
	faces, err := s.store.GetFaces(r.Context(), id)
	if err != nil {
		logging.Error("get faces of %s: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list faces")
		return
	}
	if faces == nil {
		faces = []catalog.Face{}
	}
	writeJSON(w, http.StatusOK, faces)
}

// ReprocessRequest is the POST /api/reprocess body.
type ReprocessRequest struct {
	IDs []string `json:"ids"`
}

// ReprocessResult reports one record of a batch reprocess.
type ReprocessResult struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// handleReprocessBatch reprocesses each id in order. Per-record failures
// are reported in the body; the response is 200 unless the request is bad.
func (s *Server) handleReprocessBatch(w http.ResponseWriter, r *http.Request) {
	var req ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	results := make([]ReprocessResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		res := ReprocessResult{ID: id}
		if err := s.scanner.Reprocess(r.Context(), id); err != nil {
			res.Error = err.Error()
			if errors.Is(err, catalog.ErrNotFound) {
				res.Error = "not found"
			}
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}
