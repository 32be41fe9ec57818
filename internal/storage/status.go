package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Review statuses a stored result moves through after processing.
const (
	StatusProgress  = "progress"
	StatusUpgrading = "upgrading"
	StatusDone      = "done"
)

// KnownStatus reports whether status is one of the recognized values.
func KnownStatus(status string) bool {
	switch status {
	case StatusProgress, StatusUpgrading, StatusDone:
		return true
	}
	return false
}

// ScanStatus is the review state of one stored result.
type ScanStatus struct {
	ScanID    string `json:"scan_id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// StatusPath returns the location of a scan's status sidecar.
func (s *Store) StatusPath(scanID string) string {
	return filepath.Join(s.base, statusDir, SanitizeScanID(scanID)+"_status.json")
}

// SetStatus records the review status for a scan.
func (s *Store) SetStatus(scanID, status string) (ScanStatus, error) {
	st := ScanStatus{
		ScanID:    SanitizeScanID(scanID),
		Status:    status,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return ScanStatus{}, fmt.Errorf("encode status %q: %w", scanID, err)
	}
	if err := os.WriteFile(s.StatusPath(scanID), data, 0o600); err != nil {
		return ScanStatus{}, fmt.Errorf("save status %q: %w", scanID, err)
	}
	return st, nil
}

// Status reads back a scan's review status. A scan that never had one
// set reports StatusProgress.
func (s *Store) Status(scanID string) (ScanStatus, error) {
	data, err := os.ReadFile(s.StatusPath(scanID)) //nolint:gosec // G304: path is derived from the sanitized scan id
	if errors.Is(err, fs.ErrNotExist) {
		return ScanStatus{ScanID: SanitizeScanID(scanID), Status: StatusProgress}, nil
	}
	if err != nil {
		return ScanStatus{}, fmt.Errorf("load status %q: %w", scanID, err)
	}
	var st ScanStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return ScanStatus{}, fmt.Errorf("decode status %q: %w", scanID, err)
	}
	return st, nil
}
