package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/quill-ocr/quill/internal/pagexml"
	"github.com/quill-ocr/quill/internal/testutil"
)

// sampleRecords holds the line pairs cycled across the generated scans.
var sampleRecords = [][2]string{
	{"Metric book entry for 1878", "male line, born in January"},
	{"Confession list of the parish", "household of the peasant Ivan"},
	{"Revision tale of 1850", "eight male souls counted"},
	{"Marriage inquiry of the village", "groom of orthodox faith"},
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		dir     = flag.String("dir", "testdata/scans", "Directory receiving the generated fixtures")
		count   = flag.Int("count", 3, "Number of scan fixtures to generate")
		bare    = flag.Bool("bare", false, "Also generate one scan image without a layout file")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate scan fixtures (PNG and PAGE XML pairs) for quill testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # 3 fixtures under testdata/scans\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -dir /tmp/scans -count 10\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Generating scan fixtures", "dir", *dir, "count", *count)

	if err := testutil.EnsureDir(*dir); err != nil {
		slog.Error("Failed to create fixture directory", "error", err)
		os.Exit(1)
	}

	for i := 1; i <= *count; i++ {
		stem := fmt.Sprintf("delo_%03d", i)
		if err := writeScanFixture(*dir, stem, i); err != nil {
			slog.Error("Failed to generate fixture", "stem", stem, "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Generated fixture", "stem", stem)
		}
	}

	if *bare {
		if err := writeBareScan(*dir); err != nil {
			slog.Error("Failed to generate bare scan", "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Generated bare scan without layout")
		}
	}

	slog.Info("Scan fixture generation completed")
}

// writeScanFixture writes {stem}.png and its matching PAGE XML layout,
// cycling through the sample record texts.
func writeScanFixture(dir, stem string, n int) error {
	record := sampleRecords[(n-1)%len(sampleRecords)]

	img := testutil.GenerateScanImage(testutil.SampleScanWidth, testutil.SampleScanHeight, []testutil.TextLine{
		{Text: record[0], X: 42, Y: 62},
		{Text: record[1], X: 42, Y: 102},
	})
	if err := imaging.Save(img, filepath.Join(dir, stem+".png")); err != nil {
		return fmt.Errorf("failed to save scan image: %w", err)
	}

	page := &pagexml.Document{
		ImageFilename: stem + ".png",
		Width:         testutil.SampleScanWidth,
		Height:        testutil.SampleScanHeight,
		Regions: []pagexml.Region{
			{
				ID:   "r1",
				Type: "paragraph",
				Lines: []pagexml.Line{
					{ID: "r1l1", Coords: "40,45 360,45 360,70 40,70", Text: record[0], Confidence: 0.96, HasText: true},
					{ID: "r1l2", Coords: "40,85 360,85 360,110 40,110", Text: record[1], Confidence: 0.94, HasText: true},
				},
			},
			{
				ID:    "r2",
				Type:  "heading",
				Lines: []pagexml.Line{{ID: "r2l1", Coords: "120,160 280,160 280,185 120,185"}},
			},
		},
	}
	if err := pagexml.WriteFile(filepath.Join(dir, stem+".xml"), page); err != nil {
		return fmt.Errorf("failed to save layout: %w", err)
	}
	return nil
}

// writeBareScan writes a scan image with no layout next to it, for
// exercising the missing-layout error paths.
func writeBareScan(dir string) error {
	img := testutil.GenerateScanImage(testutil.SampleScanWidth, testutil.SampleScanHeight, []testutil.TextLine{
		{Text: "Scan without a layout", X: 42, Y: 62},
	})
	if err := imaging.Save(img, filepath.Join(dir, "delo_bare.png")); err != nil {
		return fmt.Errorf("failed to save bare scan image: %w", err)
	}
	return nil
}
