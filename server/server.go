package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"bedtime_story_generator/docx"
	"bedtime_story_generator/pipeline"
	"bedtime_story_generator/story"
)

// Runner produces one story document per call.
type Runner interface {
	Run(ctx context.Context, params story.Params) (*pipeline.Artifact, error)
}

type Server struct {
	runner  Runner
	verbose bool
	logger  *log.Logger
}

func New(runner Runner, verbose bool, logger *log.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("story pipeline required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, verbose: verbose, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/generate-story", s.handleGenerate).Methods(http.MethodPost)
	return s.logMiddleware(r)
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] [server] "+format, args...)
}

// --- Handlers ---

type rootResp struct {
	Message       string `json:"message"`
	Documentation string `json:"documentation"`
}

type errorResp struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResp{
		Message:       "Welcome to the Bedtime Story Generator API",
		Documentation: "POST /generate-story with the story parameters to receive a .docx document",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var params story.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Detail: "invalid request body: " + err.Error()})
		return
	}
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Detail: err.Error()})
		return
	}

	start := time.Now()
	art, err := s.runner.Run(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidParams) {
			status = http.StatusBadRequest
		}
		s.logger.Printf("[WARN] [server] generate story failed: %v", err)
		writeJSON(w, status, errorResp{Detail: fmt.Sprintf("failed to generate story: %v", err)})
		return
	}
	defer os.Remove(art.Path)

	data, err := os.ReadFile(art.Path)
	if err != nil {
		s.logger.Printf("[WARN] [server] read document %s: %v", art.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Detail: "failed to read generated document"})
		return
	}
	if art.Failures != nil {
		s.logger.Printf("[WARN] [server] story %s: %d section(s) without image: %v", art.ID, art.MissingImages(), art.Failures)
	}
	s.infof("story %s ready in %s sections=%d images=%d", art.ID, time.Since(start).Round(time.Millisecond), art.Sections, art.Images)

	w.Header().Set("Content-Type", docx.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(art.Path)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Story-Images", strconv.Itoa(art.Images))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
