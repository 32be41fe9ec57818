package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/quill-ocr/quill/internal/pipeline"
)

const formatText = "text"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// processHandler serves the process endpoint. POST accepts a multipart
// upload with the scan image and its PAGE XML layout and responds with
// the assembled result document. GET triggers the asynchronous
// directory-ingest flow.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.processUploadHandler(w, r)
	case http.MethodGet:
		s.ingestHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) processUploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	imageData, err := s.readFormFile(r, "image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	xmlData, err := s.readFormFile(r, "xml")
	if err != nil {
		s.writeErrorResponse(w, "No layout xml file provided", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(imageData) + len(xmlData)))

	if s.processor == nil {
		s.writeErrorResponse(w, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	res, err := s.processor.ProcessScan(r.Context(), pipeline.ScanRequest{
		ScanID:    r.FormValue("scan_id"),
		ImageData: imageData,
		XMLData:   xmlData,
	})
	if err != nil {
		scanRequestsTotal.WithLabelValues("upload", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Scan processing failed: %v", err), http.StatusInternalServerError)
		return
	}
	scanRequestsTotal.WithLabelValues("upload", "success").Inc()
	scanProcessingDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, region := range res.Document.Regions {
			if _, err := io.WriteString(w, region.Text()+"\n"); err != nil {
				slog.Error("Failed to write text response", "error", err)
				return
			}
		}
		return
	}

	s.writeJSON(w, http.StatusOK, res.Document)
}

// readFormFile reads one uploaded file from a parsed multipart form,
// enforcing the upload size limit per file.
func (s *Server) readFormFile(r *http.Request, field string) ([]byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	if header.Size > s.maxUploadMB*1024*1024 {
		return nil, fmt.Errorf("file %q too large", field)
	}
	return io.ReadAll(file)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
