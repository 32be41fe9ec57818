// Package storage lays out the on-disk workspace for processed scans:
// input copies, line crops, intermediate PAGE XML, result documents and
// per-scan logs, each in its own subdirectory under a base path.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quill-ocr/quill/internal/document"
)

// Workspace subdirectories under the base path.
const (
	inputScansDir      = "input_scans"
	croppedImagesDir   = "cropped_images"
	resultsDir         = "results"
	xmlIntermediateDir = "xml_intermediate"
	logsDir            = "logs"
	statusDir          = "status"
)

// SanitizeScanID normalizes a scan identifier for use in filenames:
// spaces become underscores and letters are lowercased.
func SanitizeScanID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, " ", "_"))
}

// Store manages the scan workspace rooted at a base directory.
type Store struct {
	base string
}

// Open creates the workspace layout under base and returns the store.
func Open(base string) (*Store, error) {
	for _, dir := range []string{inputScansDir, croppedImagesDir, resultsDir, xmlIntermediateDir, logsDir, statusDir} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return &Store{base: base}, nil
}

// Base returns the workspace root.
func (s *Store) Base() string { return s.base }

// CroppedImagesDir returns the directory line crops are saved into.
func (s *Store) CroppedImagesDir() string { return filepath.Join(s.base, croppedImagesDir) }

// ResultsDir returns the directory result documents are saved into.
func (s *Store) ResultsDir() string { return filepath.Join(s.base, resultsDir) }

// InputScanPath returns the canonical location of a scan's input copy.
func (s *Store) InputScanPath(scanID string) string {
	return filepath.Join(s.base, inputScansDir, SanitizeScanID(scanID)+".jpg")
}

// ResultPath returns the canonical location of a scan's result document.
func (s *Store) ResultPath(scanID string) string {
	return filepath.Join(s.base, resultsDir, SanitizeScanID(scanID)+"_result.json")
}

// XMLPath returns the location of an intermediate PAGE XML file for the
// given processing stage (layout, ocr, ...).
func (s *Store) XMLPath(scanID, stage string) string {
	return filepath.Join(s.base, xmlIntermediateDir, fmt.Sprintf("%s_%s.xml", SanitizeScanID(scanID), stage))
}

// LogPath returns the location of a scan's processing log.
func (s *Store) LogPath(scanID string) string {
	return filepath.Join(s.base, logsDir, SanitizeScanID(scanID)+".log")
}

// SaveInputScan copies the original image into the workspace and
// returns the stored path.
func (s *Store) SaveInputScan(imagePath, scanID string) (string, error) {
	dst := s.InputScanPath(scanID)
	if err := copyFile(imagePath, dst); err != nil {
		return "", fmt.Errorf("save input scan %q: %w", scanID, err)
	}
	return dst, nil
}

// WriteInputScan stores an uploaded image payload as the scan's input
// copy and returns the stored path.
func (s *Store) WriteInputScan(data []byte, scanID string) (string, error) {
	dst := s.InputScanPath(scanID)
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return "", fmt.Errorf("write input scan %q: %w", scanID, err)
	}
	return dst, nil
}

// SaveXMLIntermediate stores intermediate PAGE XML for a stage.
func (s *Store) SaveXMLIntermediate(content []byte, scanID, stage string) (string, error) {
	dst := s.XMLPath(scanID, stage)
	if err := os.WriteFile(dst, content, 0o600); err != nil {
		return "", fmt.Errorf("save xml %s/%s: %w", scanID, stage, err)
	}
	return dst, nil
}

// LoadXMLIntermediate reads back a stage's PAGE XML.
func (s *Store) LoadXMLIntermediate(scanID, stage string) ([]byte, error) {
	return os.ReadFile(s.XMLPath(scanID, stage)) //nolint:gosec // G304: path is derived from the sanitized scan id
}

// SaveResult writes the assembled document as indented JSON and
// returns the stored path.
func (s *Store) SaveResult(res document.Result) (string, error) {
	dst := s.ResultPath(res.Scan.ID)
	if err := WriteResultFile(dst, res); err != nil {
		return "", err
	}
	return dst, nil
}

// WriteResultFile writes a result document as indented JSON to an
// arbitrary path, for copies outside the workspace such as a batch
// destination directory. Non-ASCII text is written as-is.
func WriteResultFile(path string, res document.Result) error {
	f, err := os.Create(path) //nolint:gosec // G304: destination chosen by the caller
	if err != nil {
		return fmt.Errorf("save result %q: %w", res.Scan.ID, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode result %q: %w", res.Scan.ID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save result %q: %w", res.Scan.ID, err)
	}
	return nil
}

// ReadResultFile reads a result document from an arbitrary path, the
// counterpart of WriteResultFile.
func ReadResultFile(path string) (document.Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path chosen by the caller
	if err != nil {
		return document.Result{}, fmt.Errorf("load result %q: %w", path, err)
	}
	var res document.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return document.Result{}, fmt.Errorf("decode result %q: %w", path, err)
	}
	return res, nil
}

// LoadResult reads back a scan's result document. A missing result
// reports fs.ErrNotExist.
func (s *Store) LoadResult(scanID string) (document.Result, error) {
	res, err := ReadResultFile(s.ResultPath(scanID))
	if err != nil {
		return document.Result{}, fmt.Errorf("scan %q: %w", scanID, err)
	}
	return res, nil
}

// SaveLog stores a scan's processing log.
func (s *Store) SaveLog(content []byte, scanID string) (string, error) {
	dst := s.LogPath(scanID)
	if err := os.WriteFile(dst, content, 0o600); err != nil {
		return "", fmt.Errorf("save log %q: %w", scanID, err)
	}
	return dst, nil
}

// ListScans returns the sorted IDs of all scans with a stored input copy.
func (s *Store) ListScans() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.base, inputScansDir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".jpg"))
	}
	sort.Strings(ids)
	return ids, nil
}

// CleanupScan removes every stored artifact of a scan: input copy,
// crops, intermediate XML, result and log. Missing files are ignored.
func (s *Store) CleanupScan(scanID string) error {
	id := SanitizeScanID(scanID)

	targets := []string{s.InputScanPath(id), s.ResultPath(id), s.LogPath(id), s.StatusPath(id)}
	for _, pattern := range []string{
		filepath.Join(s.base, croppedImagesDir, id+"_*.jpg"),
		filepath.Join(s.base, xmlIntermediateDir, id+"_*.xml"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		targets = append(targets, matches...)
	}

	for _, t := range targets {
		if err := os.Remove(t); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cleanup scan %q: %w", scanID, err)
		}
	}
	return nil
}

// Info summarizes workspace usage.
type Info struct {
	BasePath       string `json:"base_path"`
	InputScans     int    `json:"input_scans_count"`
	CroppedImages  int    `json:"cropped_images_count"`
	XMLFiles       int    `json:"xml_files_count"`
	ResultFiles    int    `json:"json_files_count"`
	LogFiles       int    `json:"log_files_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// Info counts stored files per subdirectory and sums their sizes.
func (s *Store) Info() (Info, error) {
	info := Info{BasePath: s.base}

	counts := []struct {
		dir     string
		pattern string
		count   *int
	}{
		{inputScansDir, "*.jpg", &info.InputScans},
		{croppedImagesDir, "*.jpg", &info.CroppedImages},
		{xmlIntermediateDir, "*.xml", &info.XMLFiles},
		{resultsDir, "*.json", &info.ResultFiles},
		{logsDir, "*.log", &info.LogFiles},
	}
	for _, c := range counts {
		matches, err := filepath.Glob(filepath.Join(s.base, c.dir, c.pattern))
		if err != nil {
			return info, err
		}
		*c.count = len(matches)
	}

	err := filepath.WalkDir(s.base, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		info.TotalSizeBytes += fi.Size()
		return nil
	})
	return info, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: copying the caller-provided scan image is expected
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) //nolint:gosec // G304: path is derived from the sanitized scan id
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
