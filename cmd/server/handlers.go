package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/himanishpuri/PerfectPitch/internal/dataset"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
	"github.com/himanishpuri/PerfectPitch/pkg/logger"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/msgpack"

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	// mu serialises Get; a Store is not safe for concurrent use.
	mu     sync.Mutex
	store  *dataset.Store
	db     *storage.DBClient
	config *ServerConfig
	log    *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	Pipeline       perfectpitch.Config
	Augment        bool
	AllowedOrigins []string
}

// NewServer creates a new server instance. db must be the handle store reads
// from; it is used for metadata only.
func NewServer(store *dataset.Store, db *storage.DBClient, config *ServerConfig) *Server {
	return &Server{
		store:  store,
		db:     db,
		config: config,
		log:    logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondMsgpack(w http.ResponseWriter, statusCode int, data any) {
	body, err := msgpack.Marshal(data)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", msgpackContentType)
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		s.log.Errorf("Failed to write msgpack response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func wantsMsgpack(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "msgpack"
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, msgpackContentType) || strings.Contains(accept, "application/x-msgpack")
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "PerfectPitch dataset API",
		"version": "1.0.0",
		"views":   dataset.ViewNames,
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"listExamples": "GET /api/examples",
			"getExample":   "GET /api/examples/{index}?views=spec,pianoroll&format=json|msgpack",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.db.CountExamples()
	if err != nil {
		s.log.Errorf("Failed to count examples: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read store")
		return
	}

	cfg := s.config.Pipeline
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		ExampleCount: count,
		SampleRate:   cfg.SampleRate,
		HopLength:    cfg.HopLength,
		SpecDim:      cfg.SpecDim,
		NumPitches:   cfg.NumPitches(),
		Augment:      s.config.Augment,
	})
}

// handleListExamples handles GET /api/examples. Indices follow the store's
// snapshot taken at startup.
func (s *Server) handleListExamples(w http.ResponseWriter, r *http.Request) {
	keys := s.store.Keys()
	rate := s.config.Pipeline.SampleRate

	examples := make([]ExampleDTO, 0, len(keys))
	for i, key := range keys {
		info, err := s.db.ExampleInfo(key)
		if err != nil {
			s.log.Warnf("Failed to read %s: %v", key, err)
			continue
		}
		examples = append(examples, ExampleDTO{
			Index:       i,
			Key:         key,
			NumSamples:  info.NumSamples,
			DurationSec: float64(info.NumSamples) / float64(rate),
			NumNotes:    info.NumNotes,
			VelocityMin: info.VelocityMin,
			VelocityMax: info.VelocityMax,
		})
	}

	s.respondJSON(w, http.StatusOK, ListExamplesResponse{
		Examples: examples,
		Count:    len(examples),
	})
}

// handleGetExample handles GET /api/examples/{index}
func (s *Server) handleGetExample(w http.ResponseWriter, r *http.Request, index int) {
	views := dataset.AllViews()
	if raw := r.URL.Query().Get("views"); raw != "" {
		var unknown []string
		views, unknown = dataset.ParseViews(strings.Split(raw, ","))
		if len(unknown) > 0 {
			s.respondError(w, http.StatusBadRequest, "Unknown view(s): "+strings.Join(unknown, ", "))
			return
		}
	}
	if keep, err := strconv.ParseBool(r.URL.Query().Get("keep_length")); err == nil {
		views.KeepPianorollLength = keep
	}

	s.mu.Lock()
	key, err := s.store.Key(index)
	var item dataset.Item
	if err == nil {
		item, err = s.store.Get(index, views)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, perfectpitch.ErrIndexOutOfRange), errors.Is(err, perfectpitch.ErrExampleNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, perfectpitch.ErrPitchOutOfRange), errors.Is(err, perfectpitch.ErrMismatchedArrays):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.log.Errorf("Failed to materialise example %d: %v", index, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read example")
		return
	}

	resp := exampleResponse(index, key, item)
	if wantsMsgpack(r) {
		s.respondMsgpack(w, http.StatusOK, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleExamples routes /api/examples
func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListExamples(w, r)
}

// handleExample routes /api/examples/{index}
func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	indexStr := strings.TrimPrefix(r.URL.Path, "/api/examples/")
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid example index")
		return
	}
	s.handleGetExample(w, r, index)
}
