// Package pdf extracts embedded scan images from PDF files so the
// scan pipeline can process them like loose image files. Archival
// material often arrives as one PDF per archive item with one scanned
// page per PDF page.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImage is one scan image extracted from a PDF page.
type PageImage struct {
	Page  int
	Index int
	Path  string
}

// ExtractPageImages pulls the embedded images of the selected pages
// into dir, named {pdf_stem}_page_{nnn}.{ext}; an extra _{mm} suffix
// distinguishes multiple images on one page. pageRange selects pages
// ("3", "1-5", "2,4"); empty means every page. Results are ordered by
// page then image index.
func ExtractPageImages(filename, dir, pageRange string) ([]PageImage, error) {
	pages, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "quill-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, p := range pages {
		pageStrings = append(pageStrings, strconv.Itoa(p))
	}
	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", filename, err)
	}

	extracted, err := collectExtracted(tempDir)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return placeImages(extracted, stem, dir)
}

// PageCount returns the number of pages in a PDF.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("page count of %s: %w", filename, err)
	}
	return n, nil
}

// collectExtracted gathers pdfcpu's output files, which are named
// page_<num>_image_<idx>.<ext>, sorted by page then image index.
func collectExtracted(dir string) ([]PageImage, error) {
	var out []PageImage
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		page, index, perr := parsePageImageName(d.Name())
		if perr != nil {
			return nil
		}
		out = append(out, PageImage{Page: page, Index: index, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect extracted images: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// placeImages copies extracted files into dir under their canonical
// names and returns the final page image list.
func placeImages(extracted []PageImage, stem, dir string) ([]PageImage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	perPage := make(map[int]int)
	for _, e := range extracted {
		perPage[e.Page]++
	}

	out := make([]PageImage, 0, len(extracted))
	for _, e := range extracted {
		ext := filepath.Ext(e.Path)
		name := fmt.Sprintf("%s_page_%03d%s", stem, e.Page, ext)
		if perPage[e.Page] > 1 {
			name = fmt.Sprintf("%s_page_%03d_%02d%s", stem, e.Page, e.Index, ext)
		}
		dst := filepath.Join(dir, name)
		if err := copyFile(e.Path, dst); err != nil {
			return nil, err
		}
		out = append(out, PageImage{Page: e.Page, Index: e.Index, Path: dst})
	}
	return out, nil
}

// parsePageImageName splits a pdfcpu output name into page and image
// index.
func parsePageImageName(name string) (page, index int, err error) {
	if !strings.HasPrefix(name, "page_") {
		return 0, 0, errors.New("not a page image")
	}
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if len(parts) < 2 {
		return 0, 0, errors.New("malformed page image name")
	}
	page, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid page number in %q", name)
	}
	if len(parts) >= 4 {
		if i, aerr := strconv.Atoi(parts[3]); aerr == nil {
			index = i
		}
	}
	return page, index, nil
}

// parsePageRange parses selections like "3", "1-5" or "2,4,7-9" into
// an ordered page list. Empty selects all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil
	}

	var pages []int
	for _, token := range strings.Split(pageRange, ",") {
		token = strings.TrimSpace(token)
		parsed, err := parseRangeToken(token)
		if err != nil {
			return nil, err
		}
		pages = append(pages, parsed...)
	}
	return pages, nil
}

// parseRangeToken parses a single page ("3") or span ("1-5").
func parseRangeToken(token string) ([]int, error) {
	if from, to, found := strings.Cut(token, "-"); found {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid start page %q", from)
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("invalid end page %q", to)
		}
		if start < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", start)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			out = append(out, p)
		}
		return out, nil
	}

	page, err := strconv.Atoi(token)
	if err != nil {
		return nil, fmt.Errorf("invalid page number %q", token)
	}
	if page < 1 {
		return nil, fmt.Errorf("page numbers start at 1, got %d", page)
	}
	return []int{page}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: path comes from our own temp directory walk
	if err != nil {
		return fmt.Errorf("open extracted image: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) //nolint:gosec // G304: destination chosen by the caller
	if err != nil {
		return fmt.Errorf("create page image: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy page image: %w", err)
	}
	return out.Close()
}
