package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/pagexml"
	"github.com/quill-ocr/quill/internal/storage"
	"github.com/quill-ocr/quill/internal/testutil"
)

// writeScanFixture writes {stem}.png and its matching PAGE XML layout
// into dir.
func writeScanFixture(dir, stem string) (imgPath, xmlPath string, err error) {
	imgPath = filepath.Join(dir, stem+".png")
	xmlPath = filepath.Join(dir, stem+".xml")

	if err = imaging.Save(testutil.GenerateSampleScan(), imgPath); err != nil {
		return "", "", fmt.Errorf("failed to write scan image: %w", err)
	}
	if err = pagexml.WriteFile(xmlPath, testutil.SamplePage(stem+".png")); err != nil {
		return "", "", fmt.Errorf("failed to write layout file: %w", err)
	}
	return imgPath, xmlPath, nil
}

// aScannedPageWithItsLayout creates one scan fixture and exposes
// {scan_image}, {scan_xml} and {scan_dir} to later steps.
func (testCtx *TestContext) aScannedPageWithItsLayout() error {
	scanDir := filepath.Join(testCtx.TempDir, "scans")
	if err := os.MkdirAll(scanDir, 0o750); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	imgPath, xmlPath, err := writeScanFixture(scanDir, "delo_001")
	if err != nil {
		return err
	}

	testCtx.Vars["scan_dir"] = scanDir
	testCtx.Vars["scan_image"] = imgPath
	testCtx.Vars["scan_xml"] = xmlPath
	return nil
}

// aDirectoryOfScannedPages creates count scan fixtures in {scan_dir}.
func (testCtx *TestContext) aDirectoryOfScannedPages(count int) error {
	scanDir := filepath.Join(testCtx.TempDir, "scans")
	if err := os.MkdirAll(scanDir, 0o750); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	for i := 1; i <= count; i++ {
		stem := fmt.Sprintf("delo_%03d", i)
		if _, _, err := writeScanFixture(scanDir, stem); err != nil {
			return err
		}
	}

	testCtx.Vars["scan_dir"] = scanDir
	return nil
}

// aScanImageWithoutALayoutFile creates a scan image with no PAGE XML
// next to it.
func (testCtx *TestContext) aScanImageWithoutALayoutFile() error {
	scanDir := filepath.Join(testCtx.TempDir, "bare")
	if err := os.MkdirAll(scanDir, 0o750); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	imgPath := filepath.Join(scanDir, "delo_bare.png")
	if err := imaging.Save(testutil.GenerateSampleScan(), imgPath); err != nil {
		return fmt.Errorf("failed to write scan image: %w", err)
	}

	testCtx.Vars["scan_dir"] = scanDir
	testCtx.Vars["scan_image"] = imgPath
	return nil
}

// anEmptySourceDirectory creates a directory with no scans in it.
func (testCtx *TestContext) anEmptySourceDirectory() error {
	dir := filepath.Join(testCtx.TempDir, "empty")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	testCtx.Vars["scan_dir"] = dir
	return nil
}

// aResultsDirectoryWithAssembledDocuments writes count result files in
// the layout the report command reads, exposing {results_dir}.
func (testCtx *TestContext) aResultsDirectoryWithAssembledDocuments(count int) error {
	resultsDir := filepath.Join(testCtx.TempDir, "results")
	if err := os.MkdirAll(resultsDir, 0o750); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("delo_%03d", i)
		res := document.Result{
			Scan: document.Scan{
				ID:                  id,
				ImagePath:           id + ".png",
				ProcessingTimestamp: time.Now().UTC().Format(time.RFC3339),
			},
			Regions: []document.Region{
				{
					ID:               "r1",
					Type:             "paragraph",
					ConcatenatedText: fmt.Sprintf("Запись %d из метрической книги", i),
				},
			},
		}

		path := filepath.Join(resultsDir, id+"_result.json")
		if err := storage.WriteResultFile(path, res); err != nil {
			return fmt.Errorf("failed to write result file: %w", err)
		}
	}

	testCtx.Vars["results_dir"] = resultsDir
	return nil
}

// RegisterScanSteps registers scan and result fixture steps.
func (testCtx *TestContext) RegisterScanSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a scanned page with its PAGE XML layout$`, testCtx.aScannedPageWithItsLayout)
	sc.Step(`^a directory of (\d+) scanned pages with layouts$`, testCtx.aDirectoryOfScannedPages)
	sc.Step(`^a scan image without a layout file$`, testCtx.aScanImageWithoutALayoutFile)
	sc.Step(`^an empty source directory$`, testCtx.anEmptySourceDirectory)
	sc.Step(`^a results directory with (\d+) assembled documents$`, testCtx.aResultsDirectoryWithAssembledDocuments)
}
