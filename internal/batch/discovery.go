package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quill-ocr/quill/internal/storage"
	"github.com/quill-ocr/quill/internal/utils"
)

// Scan is one discovered work item: the scan image, its sibling PAGE
// XML layout when one exists, and the batch scan id derived from the
// filename stem and the position in the sorted discovery order.
type Scan struct {
	ID        string
	ImagePath string
	XMLPath   string
}

// DiscoverOptions controls scan discovery.
type DiscoverOptions struct {
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

// DiscoverScans finds scan images under the given files and
// directories, sorts them, and pairs each with its sibling {stem}.xml
// layout file. Scan ids follow {stem}_{index:03d} over the sorted
// order, sanitized for the storage layout.
func DiscoverScans(paths []string, opts DiscoverOptions) ([]Scan, error) {
	var imageFiles []string

	for _, arg := range paths {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, opts)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if includeFile(arg, opts) {
			imageFiles = append(imageFiles, arg)
		}
	}

	sort.Strings(imageFiles)

	scans := make([]Scan, 0, len(imageFiles))
	for i, path := range imageFiles {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		scans = append(scans, Scan{
			ID:        storage.SanitizeScanID(fmt.Sprintf("%s_%03d", stem, i)),
			ImagePath: path,
			XMLPath:   siblingXML(path),
		})
	}
	return scans, nil
}

// discoverInDirectory collects supported images under dir.
func discoverInDirectory(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if includeFile(path, opts) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// includeFile applies the extension check and the include and exclude
// patterns to a candidate file.
func includeFile(path string, opts DiscoverOptions) bool {
	if !utils.IsSupportedImage(path) {
		return false
	}
	if matchesAnyPattern(path, opts.ExcludePatterns) {
		return false
	}
	if len(opts.IncludePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, opts.IncludePatterns)
}

// matchesAnyPattern matches the file's base name against glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// siblingXML returns the {stem}.xml path next to the image, or empty
// when no layout file exists there.
func siblingXML(imagePath string) string {
	stem := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	xmlPath := stem + ".xml"
	if _, err := os.Stat(xmlPath); err != nil {
		return ""
	}
	return xmlPath
}
