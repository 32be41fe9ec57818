package pagexml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
)

type outPcGts struct {
	XMLName xml.Name `xml:"PcGts"`
	Xmlns   string   `xml:"xmlns,attr"`
	Page    outPage  `xml:"Page"`
}

type outPage struct {
	ImageFilename string      `xml:"imageFilename,attr"`
	ImageWidth    int         `xml:"imageWidth,attr"`
	ImageHeight   int         `xml:"imageHeight,attr"`
	Regions       []outRegion `xml:"TextRegion"`
}

type outRegion struct {
	ID     string    `xml:"id,attr"`
	Type   string    `xml:"type,attr,omitempty"`
	Coords *outCoord `xml:"Coords,omitempty"`
	Lines  []outLine `xml:"TextLine"`
}

type outLine struct {
	ID        string       `xml:"id,attr"`
	Coords    *outCoord    `xml:"Coords,omitempty"`
	TextEquiv outTextEquiv `xml:"TextEquiv"`
}

type outCoord struct {
	Points string `xml:"points,attr"`
}

type outTextEquiv struct {
	Conf    string `xml:"conf,attr"`
	Unicode string `xml:"Unicode"`
}

// Write serializes the document as PAGE XML, the format saved as the
// recognition intermediate alongside the final JSON result.
func Write(w io.Writer, doc *Document) error {
	out := outPcGts{
		Xmlns: Namespace,
		Page: outPage{
			ImageFilename: doc.ImageFilename,
			ImageWidth:    doc.Width,
			ImageHeight:   doc.Height,
			Regions:       make([]outRegion, 0, len(doc.Regions)),
		},
	}

	for _, reg := range doc.Regions {
		region := outRegion{
			ID:    reg.ID,
			Type:  reg.Type,
			Lines: make([]outLine, 0, len(reg.Lines)),
		}
		if reg.Coords != "" {
			region.Coords = &outCoord{Points: reg.Coords}
		}
		for _, ln := range reg.Lines {
			line := outLine{
				ID: ln.ID,
				TextEquiv: outTextEquiv{
					Conf:    strconv.FormatFloat(ln.Confidence, 'f', -1, 64),
					Unicode: ln.Text,
				},
			}
			if ln.Coords != "" {
				line.Coords = &outCoord{Points: ln.Coords}
			}
			region.Lines = append(region.Lines, line)
		}
		out.Page.Regions = append(out.Page.Regions, region)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode PAGE XML: %w", err)
	}
	return enc.Close()
}

// WriteFile serializes the document to the given path.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path) //nolint:gosec // G304: destination inside the managed storage tree
	if err != nil {
		return fmt.Errorf("create PAGE XML: %w", err)
	}
	if err := Write(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
