package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/store"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const maxBodyBytes = 32 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.engine.Query(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req models.AddDocumentsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		s.respondErr(w, rserr.New(rserr.CodeInputEmptyDocument, "documents is required"))
		return
	}
	s.logger.Debug("add documents request", zap.Int("documents", len(req.Documents)))
	ids, err := s.engine.AddDocuments(r.Context(), req.Documents)
	if err != nil {
		s.logger.Error("adding documents failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.AddDocumentsResponse{
		IDs:       ids,
		Documents: len(req.Documents),
		Chunks:    len(ids),
	})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("delete all request")
	if err := s.engine.DeleteAll(r.Context()); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if s.indexer != nil {
		s.indexer.Reset()
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	backend := s.engine.Backend()
	resp := map[string]any{
		"store":      s.config.Store.Type,
		"hybrid":     s.engine.IsHybrid(),
		"dimensions": backend.Dimensions(),
	}
	if s.engine.IsHybrid() {
		resp["default_alpha"] = s.engine.DefaultAlpha()
	}
	if reporter, ok := backend.(store.StatsReporter); ok {
		stats, err := reporter.Stats(r.Context())
		if err != nil {
			s.logger.Error("status: stats failed", zap.Error(err))
			s.respondErr(w, err)
			return
		}
		resp["entries"] = stats.Entries
		if stats.DiskBytes > 0 {
			resp["disk_usage_bytes"] = stats.DiskBytes
		}
	}
	resp["config"] = map[string]any{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Chunking.ChunkSize,
		"chunk_overlap":        s.config.Chunking.OverlapOrDefault(),
		"top_k_candidates":     s.config.Store.TopKCandidates,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if !s.watchEnabled(w) {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if !s.watchEnabled(w) {
		return
	}
	var req watchRequest
	if !s.decode(w, r, &req) {
		return
	}
	dir, status, msg := resolveWatchDir(req.Path, true)
	if status != 0 {
		s.respondError(w, status, msg)
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	s.logger.Debug("watch add directory request", zap.String("path", dir), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(dir, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": dir, "status": "added"})
}

// handleWatchDirectoriesRemove takes the path from the query string or a JSON body.
func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if !s.watchEnabled(w) {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var req watchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			path = req.Path
		}
	}
	dir, status, msg := resolveWatchDir(path, false)
	if status != 0 {
		s.respondError(w, status, msg)
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", dir))
	if err := s.watch.RemoveDirectory(dir); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": dir, "status": "removed"})
}

func (s *Server) watchEnabled(w http.ResponseWriter) bool {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return false
	}
	return true
}

// resolveWatchDir returns the absolute form of path. When mustExist is set the
// path must name an existing directory. A non-zero status reports the failure.
func resolveWatchDir(path string, mustExist bool) (string, int, string) {
	if path == "" {
		return "", http.StatusBadRequest, "path is required"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", http.StatusBadRequest, "invalid path"
	}
	if !mustExist {
		return abs, 0, ""
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return "", http.StatusNotFound, "directory not found"
	case err != nil:
		return "", http.StatusInternalServerError, err.Error()
	case !info.IsDir():
		return "", http.StatusBadRequest, "path is not a directory"
	}
	return abs, 0, ""
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps an error's kind to its HTTP status and reports its code.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if code := rserr.CodeOf(err); code != "" {
		body["code"] = code
	}
	s.respondJSON(w, rserr.HTTPStatus(err), body)
}
