// Package pagexml reads and writes PAGE (PcGts) layout XML, the
// interchange format produced by layout detection and consumed by the
// aggregation pipeline.
package pagexml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Namespace is the PAGE content schema the writer stamps on output.
const Namespace = "http://schema.primaresearch.org/PAGE/gts/pagecontent/2013-07-15"

// Document is a parsed PAGE file. Multi-page files contribute regions
// in page order; the image metadata comes from the first page.
type Document struct {
	ImageFilename string
	Width         int
	Height        int
	Regions       []Region
}

// Region is one TextRegion with its ordered text lines.
type Region struct {
	ID     string
	Type   string
	Coords string
	Lines  []Line
}

// Line is one TextLine. HasText reports whether the file carried a
// TextEquiv element; a line without one still has geometry but needs
// recognition before assembly.
type Line struct {
	ID         string
	Coords     string
	Text       string
	Confidence float64
	HasText    bool
}

type xmlPcGts struct {
	XMLName xml.Name  `xml:"PcGts"`
	Pages   []xmlPage `xml:"Page"`
}

type xmlPage struct {
	ImageFilename string      `xml:"imageFilename,attr"`
	ImageWidth    string      `xml:"imageWidth,attr"`
	ImageHeight   string      `xml:"imageHeight,attr"`
	Regions       []xmlRegion `xml:"TextRegion"`
}

type xmlRegion struct {
	ID     string        `xml:"id,attr"`
	Type   string        `xml:"type,attr"`
	Custom string        `xml:"custom,attr"`
	Coords xmlCoords     `xml:"Coords"`
	Lines  []xmlTextLine `xml:"TextLine"`
}

type xmlTextLine struct {
	ID        string        `xml:"id,attr"`
	Custom    string        `xml:"custom,attr"`
	Coords    xmlCoords     `xml:"Coords"`
	TextEquiv *xmlTextEquiv `xml:"TextEquiv"`
}

type xmlCoords struct {
	Points string `xml:"points,attr"`
}

type xmlTextEquiv struct {
	Conf    string `xml:"conf,attr"`
	Unicode string `xml:"Unicode"`
}

// Parse decodes a PAGE document from the reader.
func Parse(r io.Reader) (*Document, error) {
	var raw xmlPcGts
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode PAGE XML: %w", err)
	}
	if len(raw.Pages) == 0 {
		return nil, fmt.Errorf("PAGE XML has no Page element")
	}

	first := raw.Pages[0]
	doc := &Document{
		ImageFilename: first.ImageFilename,
		Width:         parseDimension(first.ImageWidth),
		Height:        parseDimension(first.ImageHeight),
	}

	for _, page := range raw.Pages {
		for _, reg := range page.Regions {
			region := Region{
				ID:     reg.ID,
				Type:   regionType(reg.Type, reg.Custom),
				Coords: reg.Coords.Points,
				Lines:  make([]Line, 0, len(reg.Lines)),
			}
			for _, ln := range reg.Lines {
				line := Line{
					ID:     ln.ID,
					Coords: ln.Coords.Points,
				}
				if ln.TextEquiv != nil {
					line.HasText = true
					line.Text = ln.TextEquiv.Unicode
					line.Confidence = parseConfidence(ln.TextEquiv.Conf)
				}
				region.Lines = append(region.Lines, line)
			}
			doc.Regions = append(doc.Regions, region)
		}
	}
	return doc, nil
}

// ParseFile decodes a PAGE document from disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path) //nolint:gosec // G304: layout files are caller-provided inputs
	if err != nil {
		return nil, fmt.Errorf("open PAGE XML: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// regionType resolves the region type from either the plain type
// attribute or the Transkribus-style custom attribute
// ("structure {type:paragraph;}").
func regionType(typeAttr, customAttr string) string {
	if typeAttr != "" {
		return typeAttr
	}
	idx := strings.Index(customAttr, "type:")
	if idx < 0 {
		return ""
	}
	rest := customAttr[idx+len("type:"):]
	if end := strings.IndexAny(rest, ";}"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// parseDimension reads an integer pixel attribute, tolerating float
// renderings; anything unparsable yields 0 and callers fall back to
// the decoded image dimensions.
func parseDimension(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseConfidence(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
