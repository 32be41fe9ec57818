package report

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultLabels are the column headers archive staff expect; the
// source material is Russian archival records.
var defaultLabels = map[string]string{
	FieldScanNo:      "№ скана",
	FieldFond:        "Фонд",
	FieldOpis:        "Опись",
	FieldDelo:        "Дело",
	FieldText:        "Расшифрованный текст",
	FieldEntityType:  "Тип предопределенный атрибут",
	FieldEntityValue: "Предопределенный атрибут",
	FieldExtra:       "Дополнительная информация",
}

// Labels returns a copy of the default column labels keyed by field
// identifier.
func Labels() map[string]string {
	out := make(map[string]string, len(defaultLabels))
	for k, v := range defaultLabels {
		out[k] = v
	}
	return out
}

// LoadLabels reads column header overrides from a YAML file mapping
// field identifiers to labels and merges them over the defaults. An
// unknown identifier is an error so typos surface instead of silently
// keeping the default header.
func LoadLabels(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: label file chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse label file %s: %w", path, err)
	}

	labels := Labels()
	for field, label := range overrides {
		if _, known := labels[field]; !known {
			return nil, fmt.Errorf("label file %s: unknown report field %q", path, field)
		}
		if strings.TrimSpace(label) == "" {
			continue
		}
		labels[field] = label
	}
	return labels, nil
}

// mergeLabels layers explicit overrides over the defaults, ignoring
// unknown or empty entries.
func mergeLabels(overrides map[string]string) map[string]string {
	labels := Labels()
	for field, label := range overrides {
		if _, known := labels[field]; !known || strings.TrimSpace(label) == "" {
			continue
		}
		labels[field] = label
	}
	return labels
}
