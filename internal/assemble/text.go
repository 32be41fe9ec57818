package assemble

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// TextOptions controls how line texts are joined into a region's
// concatenated_text.
type TextOptions struct {
	// Delimiter separates kept line texts. Defaults to a newline.
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter"`

	// MergeHyphenBreaks joins a fragment ending in "-" with the next
	// fragment when that fragment does not start a new sentence
	// (uppercase first letter). Off by default; archival review prefers
	// seeing the breaks.
	MergeHyphenBreaks bool `mapstructure:"merge_hyphen_breaks" yaml:"merge_hyphen_breaks" json:"merge_hyphen_breaks"`

	// NormalizeUnicode applies NFC normalization to recognized text,
	// folding combining sequences the OCR engine sometimes emits for
	// Cyrillic diacritics.
	NormalizeUnicode bool `mapstructure:"normalize_unicode" yaml:"normalize_unicode" json:"normalize_unicode"`
}

// DefaultTextOptions returns the production text settings.
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Delimiter:        "\n",
		NormalizeUnicode: true,
	}
}

// TextStats counts what concatenation did to a region's lines.
type TextStats struct {
	LineBreaksHandled int
	MergedWords       int
}

// normalizeText applies the configured unicode normalization.
func normalizeText(s string, opts TextOptions) string {
	if !opts.NormalizeUnicode {
		return s
	}
	return norm.NFC.String(s)
}

// isNoise reports whether a trimmed line text is a line-break artifact:
// empty, or a lone hyphen left behind by a wrapped word.
func isNoise(trimmed string) bool {
	return trimmed == "" || trimmed == "-"
}

// concatenate joins line texts in order, skipping noise lines and
// counting each skip. With MergeHyphenBreaks set, a kept fragment ending
// in "-" absorbs the following fragment unless it starts with an
// uppercase letter.
func concatenate(texts []string, opts TextOptions) (string, TextStats) {
	if opts.Delimiter == "" {
		opts.Delimiter = "\n"
	}

	var stats TextStats
	parts := make([]string, 0, len(texts))
	for _, raw := range texts {
		text := strings.TrimSpace(raw)
		if isNoise(text) {
			stats.LineBreaksHandled++
			continue
		}
		if opts.MergeHyphenBreaks && len(parts) > 0 {
			prev := parts[len(parts)-1]
			if strings.HasSuffix(prev, "-") && !startsUpper(text) {
				parts[len(parts)-1] = strings.TrimSuffix(prev, "-") + text
				stats.MergedWords++
				continue
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, opts.Delimiter), stats
}

func startsUpper(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return false
	}
	return unicode.IsUpper(r)
}
