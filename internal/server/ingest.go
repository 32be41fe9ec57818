package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quill-ocr/quill/internal/batch"
	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/queue"
	"github.com/quill-ocr/quill/internal/storage"
)

// ingestHandler accepts an asynchronous ingest request: source names a
// directory of scan images with sibling PAGE XML layouts, dst receives
// one result JSON per scan, and callback is POSTed after each scan so
// the upstream system can advance its file statuses.
//
// The request is acknowledged with 202 before processing starts;
// per-scan failures are logged and broadcast, never reported to the
// ingest caller.
func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	dst := r.URL.Query().Get("dst")
	callback := r.URL.Query().Get("callback")

	if source == "" {
		s.writeErrorResponse(w, "source query parameter is required", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(source); err != nil {
		scanRequestsTotal.WithLabelValues("ingest", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("source not accessible: %v", err), http.StatusInternalServerError)
		return
	}

	scans, err := batch.DiscoverScans([]string{source}, batch.DiscoverOptions{Recursive: true})
	if err != nil {
		scanRequestsTotal.WithLabelValues("ingest", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	groupID := groupUUIDFromPath(source)
	slog.Info("Ingest accepted",
		"source", source,
		"dst", dst,
		"group_id", groupID,
		"scans", len(scans))
	scanRequestsTotal.WithLabelValues("ingest", "success").Inc()

	if s.enqueuer != nil {
		s.enqueueScans(r.Context(), scans, dst, groupID, callback)
	} else {
		go s.ingestScans(context.Background(), scans, dst, groupID, callback)
	}

	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Scans: len(scans)})
}

// enqueueScans hands every discovered scan to the task queue. Workers
// deliver the completion callbacks.
func (s *Server) enqueueScans(ctx context.Context, scans []batch.Scan, dst, groupID, callback string) {
	for _, scan := range scans {
		_, err := s.enqueuer.EnqueueScan(ctx, queue.ScanTask{
			ScanID:         scan.ID,
			ImagePath:      scan.ImagePath,
			XMLPath:        scan.XMLPath,
			DestinationDir: dst,
			GroupID:        groupID,
			Callback:       callback,
		})
		if err != nil {
			slog.Error("Failed to enqueue scan", "scan_id", scan.ID, "error", err)
		}
	}
}

// ingestScans processes the discovered scans in this process, one at a
// time in discovery order, exporting each result and posting the
// completion callback before moving on.
func (s *Server) ingestScans(ctx context.Context, scans []batch.Scan, dst, groupID, callback string) {
	s.hub.Broadcast(ProgressEvent{Type: "start", GroupID: groupID, Total: len(scans)})

	for i, scan := range scans {
		if err := s.ingestOne(ctx, scan, dst); err != nil {
			slog.Warn("Ingest scan failed", "scan_id", scan.ID, "error", err)
			s.hub.Broadcast(ProgressEvent{
				Type:    "error",
				GroupID: groupID,
				ScanID:  scan.ID,
				Current: i + 1,
				Total:   len(scans),
				Error:   err.Error(),
			})
			continue
		}

		s.hub.Broadcast(ProgressEvent{
			Type:    "progress",
			GroupID: groupID,
			ScanID:  scan.ID,
			Current: i + 1,
			Total:   len(scans),
		})
		s.callback.Send(ctx, callback, groupID, filepath.Base(scan.ImagePath))
	}

	s.hub.Broadcast(ProgressEvent{Type: "complete", GroupID: groupID, Total: len(scans)})
	slog.Info("Ingest finished", "group_id", groupID, "scans", len(scans))
}

func (s *Server) ingestOne(ctx context.Context, scan batch.Scan, dst string) error {
	if scan.XMLPath == "" {
		return fmt.Errorf("scan %s: no sibling layout xml", scan.ImagePath)
	}

	start := time.Now()
	res, err := s.processor.ProcessScan(ctx, pipeline.ScanRequest{
		ScanID:    scan.ID,
		ImagePath: scan.ImagePath,
		XMLPath:   scan.XMLPath,
	})
	if err != nil {
		return err
	}
	scanProcessingDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds())

	if dst == "" {
		return nil
	}
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("create destination %q: %w", dst, err)
	}
	out := filepath.Join(dst, res.Document.Scan.ID+"_result.json")
	return storage.WriteResultFile(out, res.Document)
}

// groupUUIDFromPath extracts the group identifier from an ingest source
// path laid out as .../groups/{uuid}/..., or returns "" when the path
// carries none.
func groupUUIDFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i, part := range parts {
		if part == "groups" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
