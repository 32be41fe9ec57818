// Package report renders assembled scan results as tabular exports for
// archive staff: one CSV row per region text block, expanded per named
// entity type, with archival reference columns.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/storage"
)

// Field identifiers for report columns. Selections and label overrides
// are keyed by these.
const (
	FieldScanNo      = "scan_no"
	FieldFond        = "fond"
	FieldOpis        = "opis"
	FieldDelo        = "delo"
	FieldText        = "text"
	FieldEntityType  = "entity_type"
	FieldEntityValue = "entity_value"
	FieldExtra       = "extra"
)

// DefaultFields is the column set and order used when the caller
// selects none.
var DefaultFields = []string{
	FieldScanNo, FieldFond, FieldOpis, FieldDelo,
	FieldText, FieldEntityType, FieldEntityValue, FieldExtra,
}

// Archive identifies the archival unit the reported scans belong to
// (fond / inventory / item in Russian archival practice).
type Archive struct {
	Fond string `yaml:"fond" json:"fond"`
	Opis string `yaml:"opis" json:"opis"`
	Delo string `yaml:"delo" json:"delo"`
}

// Options controls report assembly.
type Options struct {
	Archive Archive

	// Fields selects and orders the columns. Unknown identifiers are
	// dropped. Empty means DefaultFields.
	Fields []string

	// Labels overrides column headers per field identifier. Missing
	// entries fall back to the defaults.
	Labels map[string]string

	// EntityOrder lists entity types to report first; unlisted types
	// follow in order of appearance.
	EntityOrder []string

	// EntityJoiner separates multiple values of one entity type within
	// a single cell.
	EntityJoiner string

	// Deduplicate removes repeated values within one entity type.
	Deduplicate bool
}

// DefaultOptions returns report options with newline-joined,
// deduplicated entity values and the default columns.
func DefaultOptions() Options {
	return Options{
		EntityJoiner: "\n",
		Deduplicate:  true,
	}
}

// Report holds a rendered header and data rows.
type Report struct {
	Header []string
	Rows   [][]string
}

// Build assembles report rows from results in the given order. Scans
// are numbered from 1. A scan whose regions carry neither text nor
// entities still gets one row so the numbering stays visible.
func Build(results []document.Result, opts Options) *Report {
	fields := selectFields(opts.Fields)
	labels := mergeLabels(opts.Labels)
	joiner := opts.EntityJoiner
	if joiner == "" {
		joiner = "\n"
	}

	rep := &Report{Header: make([]string, len(fields))}
	for i, f := range fields {
		rep.Header[i] = labels[f]
	}

	for scanNo, res := range results {
		base := map[string]string{
			FieldScanNo: strconv.Itoa(scanNo + 1),
			FieldFond:   opts.Archive.Fond,
			FieldOpis:   opts.Archive.Opis,
			FieldDelo:   opts.Archive.Delo,
		}
		rows := resultRows(res, base, joiner, opts)
		if len(rows) == 0 {
			rows = [][]string{projectRow(base, fields)}
		}
		rep.Rows = append(rep.Rows, rows...)
	}
	return rep
}

// resultRows renders the rows for one scan: a row per region text
// block, multiplied per grouped entity type when entities are present.
func resultRows(res document.Result, base map[string]string, joiner string, opts Options) [][]string {
	fields := selectFields(opts.Fields)
	var rows [][]string

	for i := range res.Regions {
		reg := &res.Regions[i]
		text := strings.TrimSpace(reg.Text())
		groups := groupEntities(reg.NamedEntities, opts.EntityOrder, opts.Deduplicate)
		if text == "" && len(groups) == 0 {
			continue
		}

		if len(groups) == 0 {
			row := cloneRow(base)
			row[FieldText] = text
			rows = append(rows, projectRow(row, fields))
			continue
		}
		for _, g := range groups {
			row := cloneRow(base)
			row[FieldText] = text
			row[FieldEntityType] = g.Type
			row[FieldEntityValue] = strings.Join(g.Values, joiner)
			rows = append(rows, projectRow(row, fields))
		}
	}
	return rows
}

// BuildFromDir loads every result file under dir, sorted by filename,
// and builds the report from them.
func BuildFromDir(dir string, opts Options) (*Report, error) {
	results, err := loadResults(dir)
	if err != nil {
		return nil, err
	}
	return Build(results, opts), nil
}

// loadResults reads the {scan_id}_result.json files in dir in sorted
// filename order.
func loadResults(dir string) ([]document.Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read results directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_result.json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]document.Result, 0, len(names))
	for _, name := range names {
		res, err := storage.ReadResultFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// WriteCSV renders the report as UTF-8 CSV with a header row.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the report to path, creating parent directories.
func (r *Report) SaveCSV(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: destination chosen by the caller
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := r.WriteCSV(f); err != nil {
		return err
	}
	return f.Close()
}

// selectFields keeps known field identifiers in the requested order,
// falling back to the default set.
func selectFields(requested []string) []string {
	if len(requested) == 0 {
		return DefaultFields
	}
	var out []string
	for _, f := range requested {
		if _, ok := defaultLabels[f]; ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return DefaultFields
	}
	return out
}

func cloneRow(base map[string]string) map[string]string {
	row := make(map[string]string, len(base)+3)
	for k, v := range base {
		row[k] = v
	}
	return row
}

func projectRow(row map[string]string, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = row[f]
	}
	return out
}
