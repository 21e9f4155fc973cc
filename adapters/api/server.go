// Package api exposes the analysis pipeline over HTTP: one endpoint to run
// an analysis from JSON and one to import a study table from an uploaded
// spreadsheet.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metareview/app"
	"metareview/domain/core"
	"metareview/ports"
)

// maxUploadBytes bounds spreadsheet uploads.
const maxUploadBytes = 16 << 20

// Server wires the analysis service and the study reader behind a chi router.
type Server struct {
	router  chi.Router
	service *app.AnalysisService
	reader  ports.StudyReader
}

func NewServer(service *app.AnalysisService, reader ports.StudyReader) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		reader:  reader,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/api/analysis", s.handleAnalysis)
	s.router.Post("/api/import", s.handleImport)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalysis runs the full pipeline on a JSON request body.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req app.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	report, err := s.service.Run(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleImport accepts a multipart spreadsheet upload and returns the parsed
// studies, ready to be edited client-side and submitted to /api/analysis.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "import-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("staging upload: %w", err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, fmt.Errorf("staging upload: %w", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("staging upload: %w", err))
		return
	}

	studies, err := s.reader.ReadStudies(r.Context(), tmp.Name())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"studies": studies})
}

func statusFor(err error) int {
	if core.IsInvalidInput(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Printf("[API] %d: %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
