package tesseract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Environment variable for the tessdata directory override.
const EnvDataDir = "QUILL_TESSDATA_DIR"

// traineddataExt is the suffix of Tesseract language data files.
const traineddataExt = ".traineddata"

// Well-known tessdata locations, checked in order.
var systemDataPaths = []string{
	"/usr/share/tesseract-ocr/5/tessdata",
	"/usr/share/tesseract-ocr/4.00/tessdata",
	"/usr/share/tessdata",
	"/usr/local/share/tessdata",
	"/opt/homebrew/share/tessdata",
}

// DataPath resolves the tessdata directory.
// Priority: 1. Explicit dataDir parameter, 2. QUILL_TESSDATA_DIR,
// 3. TESSDATA_PREFIX, 4. first existing well-known location. An empty
// result leaves the engine on its compiled-in default.
func DataPath(dataDir string) string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv(EnvDataDir); envDir != "" {
		return envDir
	}
	if envDir := os.Getenv("TESSDATA_PREFIX"); envDir != "" {
		return envDir
	}
	for _, p := range systemDataPaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

// ValidateLanguages checks that a traineddata file exists for every
// requested language under the resolved data path.
func ValidateLanguages(dataDir string, languages []string) error {
	base := DataPath(dataDir)
	if base == "" {
		return nil
	}
	for _, lang := range languages {
		if lang == "" {
			continue
		}
		p := filepath.Join(base, lang+traineddataExt)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("language data not found: %s", p)
		}
	}
	return nil
}

// AvailableLanguages lists the languages installed under the resolved
// data path, sorted and de-duplicated.
func AvailableLanguages(dataDir string) []string {
	base := DataPath(dataDir)
	if base == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(base, "*"+traineddataExt))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		lang := strings.TrimSuffix(filepath.Base(m), traineddataExt)
		if lang == "" || lang == "osd" || lang == "equ" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
