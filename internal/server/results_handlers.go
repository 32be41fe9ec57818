package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/storage"
)

// StatusPatch is the body of a status update request.
type StatusPatch struct {
	Status string `json:"status"`
}

// resultsHandler routes the stored-result endpoints:
//
//	GET   /results/{scan_id}         stored result document
//	PUT   /results/{scan_id}         replace the stored document
//	GET   /results/{scan_id}/status  review status
//	PATCH /results/{scan_id}/status  update the review status
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/results/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.resultHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		s.statusHandler(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request, scanID string) {
	switch r.Method {
	case http.MethodGet:
		res, err := s.store.LoadResult(scanID)
		if errors.Is(err, fs.ErrNotExist) {
			s.writeErrorResponse(w, fmt.Sprintf("no result for scan %q", scanID), http.StatusNotFound)
			return
		}
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		scanRequestsTotal.WithLabelValues("result", "success").Inc()
		s.writeJSON(w, http.StatusOK, res)

	case http.MethodPut:
		var res document.Result
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("invalid result document: %v", err), http.StatusBadRequest)
			return
		}
		if res.Scan.ID == "" {
			res.Scan.ID = scanID
		}
		if storage.SanitizeScanID(res.Scan.ID) != storage.SanitizeScanID(scanID) {
			s.writeErrorResponse(w, "scan id in body does not match path", http.StatusBadRequest)
			return
		}
		if _, err := s.store.LoadResult(scanID); errors.Is(err, fs.ErrNotExist) {
			s.writeErrorResponse(w, fmt.Sprintf("no result for scan %q", scanID), http.StatusNotFound)
			return
		}
		if _, err := s.store.SaveResult(res); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, res)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request, scanID string) {
	if _, err := s.store.LoadResult(scanID); errors.Is(err, fs.ErrNotExist) {
		s.writeErrorResponse(w, fmt.Sprintf("no result for scan %q", scanID), http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		st, err := s.store.Status(scanID)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, st)

	case http.MethodPatch:
		var patch StatusPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("invalid status update: %v", err), http.StatusBadRequest)
			return
		}
		if !storage.KnownStatus(patch.Status) {
			s.writeErrorResponse(w, fmt.Sprintf("unknown status %q", patch.Status), http.StatusBadRequest)
			return
		}
		st, err := s.store.SetStatus(scanID, patch.Status)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, st)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
