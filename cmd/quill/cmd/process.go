package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quill-ocr/quill/internal/batch"
	"github.com/quill-ocr/quill/internal/pdf"
	"github.com/quill-ocr/quill/internal/pipeline"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// processCmd represents the process command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single scan or a PDF of scans",
	Long: `Process one scanned page together with its PAGE XML layout and print
the assembled result document.

With --pdf, the embedded page images are extracted first; extracted
pages that have a sibling layout XML (same stem, .xml) are then
processed like loose scans.

Examples:
  quill process --image scan.jpg --xml scan.xml
  quill process --image scan.jpg --xml scan.xml --format text
  quill process --image scan.jpg --xml scan.xml --output result.json
  quill process --pdf delo_042.pdf --output-dir pages/
  quill process --pdf protected.pdf --pdf-password secret --pages 1-5`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)",
				format, outputFormatJSON, outputFormatText)
		}

		pdfPath, _ := cmd.Flags().GetString("pdf")
		imagePath, _ := cmd.Flags().GetString("image")
		if pdfPath == "" && imagePath == "" {
			return errors.New("either --image or --pdf is required")
		}
		if pdfPath != "" && imagePath != "" {
			return errors.New("--image and --pdf are mutually exclusive")
		}

		builder := cfg.PipelineBuilder()
		pl, err := builder.Build()
		if err != nil {
			return fmt.Errorf("failed to build scan pipeline: %w", err)
		}

		if pdfPath != "" {
			return runProcessPDF(cmd, pl, pdfPath)
		}
		return runProcessScan(cmd, pl, imagePath, format)
	},
}

// runProcessScan processes one image+layout pair and prints the result.
func runProcessScan(cmd *cobra.Command, pl *pipeline.Pipeline, imagePath, format string) error {
	xmlPath, _ := cmd.Flags().GetString("xml")
	if xmlPath == "" {
		return errors.New("a scan image needs its PAGE XML layout (--xml)")
	}
	scanID, _ := cmd.Flags().GetString("scan-id")

	res, err := pl.ProcessScan(ensureContext(cmd), pipeline.ScanRequest{
		ScanID:    scanID,
		ImagePath: imagePath,
		XMLPath:   xmlPath,
	})
	if err != nil {
		return fmt.Errorf("processing failed for %s: %w", imagePath, err)
	}

	for _, ierr := range res.Issues.Errors() {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", ierr)
	}
	for _, rerr := range res.RecognitionFailures {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: recognition: %v\n", rerr)
	}

	var rendered string
	switch format {
	case outputFormatText:
		var sb strings.Builder
		for _, region := range res.Document.Regions {
			sb.WriteString(region.Text())
			sb.WriteString("\n")
		}
		rendered = sb.String()
	default:
		bts, err := json.MarshalIndent(res.Document, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		rendered = string(bts) + "\n"
	}

	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Result written to %s\n", outputFile)
	} else {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), rendered)
	}

	if res.OverlayPath != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved overlay: %s\n", res.OverlayPath)
	}
	return nil
}

// runProcessPDF extracts the page images of a PDF and processes every
// extracted page that has a sibling layout XML.
func runProcessPDF(cmd *cobra.Command, pl *pipeline.Pipeline, pdfPath string) error {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
		outputDir = filepath.Join(filepath.Dir(pdfPath), stem+"_pages")
	}
	pages, _ := cmd.Flags().GetString("pages")
	password, _ := cmd.Flags().GetString("pdf-password")

	encrypted, err := pdf.IsEncrypted(pdfPath)
	if err != nil {
		return err
	}
	source := pdfPath
	if encrypted {
		if password == "" {
			return fmt.Errorf("%s is password protected; supply --pdf-password", pdfPath)
		}
		source, err = pdf.Decrypt(pdfPath, password, password)
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(source) }()
	}

	images, err := pdf.ExtractPageImages(source, outputDir, pages)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d page image(s) to %s\n", len(images), outputDir)

	scans, err := batch.DiscoverScans([]string{outputDir}, batch.DiscoverOptions{})
	if err != nil {
		return err
	}
	withLayout := make([]batch.Scan, 0, len(scans))
	for _, scan := range scans {
		if scan.XMLPath != "" {
			withLayout = append(withLayout, scan)
		}
	}
	if len(withLayout) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No page layouts found; extraction only")
		return nil
	}

	runner := batch.New(pl, batch.Config{DestinationDir: outputDir})
	summary, err := runner.RunScans(ensureContext(cmd), withLayout)
	if err != nil {
		return fmt.Errorf("processing extracted pages failed: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	if !summary.Succeeded() {
		return fmt.Errorf("%d page(s) failed", summary.Failed)
	}
	return nil
}

// ensureContext returns the command context, falling back to Background
// for commands constructed outside cobra's Execute path.
func ensureContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func addProcessFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("image", "i", "", "scan image file (JPEG, PNG, TIFF, BMP, WebP)")
	cmd.Flags().StringP("xml", "x", "", "PAGE XML layout file for the scan")
	cmd.Flags().String("scan-id", "", "scan identifier (default: image filename stem)")
	cmd.Flags().StringP("format", "f", "json", "output format (json, text)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	// PDF extraction flags
	cmd.Flags().String("pdf", "", "PDF file to extract page images from")
	cmd.Flags().String("pages", "", "page selection for --pdf (e.g. 3, 1-5, 2,4,7-9; default: all)")
	cmd.Flags().String("pdf-password", "", "password for encrypted PDFs")
	cmd.Flags().String("output-dir", "", "directory for extracted page images (default: {pdf_stem}_pages)")

	// Pipeline tuning flags
	cmd.Flags().Int("crop-padding", 0, "pixel padding around line crops")
	cmd.Flags().Int("region-padding", 0, "padding reported in region coordinates")
	cmd.Flags().Int("crop-quality", 0, "JPEG quality for saved crops (1-100)")
	cmd.Flags().String("delimiter", "", "delimiter joining line texts within a region")
	cmd.Flags().Bool("merge-hyphens", false, "merge hyphenated line breaks into single words")
	cmd.Flags().Bool("require-regions", false, "fail scans whose layout has no regions")
	cmd.Flags().Int("region-workers", 0, "parallel per-region recognition workers (0 = CPUs)")

	// Recognition flags
	cmd.Flags().Bool("recognize", true, "recognize text for lines the layout left empty")
	cmd.Flags().Bool("force-recognize", false, "re-recognize every line, replacing layout text")
	cmd.Flags().StringSlice("languages", nil, "recognition language hints (e.g. rus,ukr)")
	cmd.Flags().Int("dpi", 0, "scan resolution hint forwarded to the OCR engine")

	// Overlay flags
	cmd.Flags().Bool("overlay", false, "render a review overlay image")
	cmd.Flags().String("overlay-dir", "", "directory for overlay images (default: workspace overlays/)")
}

// bindProcessFlags binds pipeline flags to viper configuration keys.
func bindProcessFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"pipeline.crop_padding", "crop-padding"},
		{"pipeline.region_padding", "region-padding"},
		{"pipeline.crop_quality", "crop-quality"},
		{"pipeline.text_delimiter", "delimiter"},
		{"pipeline.merge_hyphens", "merge-hyphens"},
		{"pipeline.require_regions", "require-regions"},
		{"pipeline.region_workers", "region-workers"},
		{"pipeline.recognition.enabled", "recognize"},
		{"pipeline.recognition.force", "force-recognize"},
		{"pipeline.recognition.languages", "languages"},
		{"pipeline.recognition.dpi", "dpi"},
		{"pipeline.overlay.enabled", "overlay"},
		{"pipeline.overlay.dir", "overlay-dir"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(processCmd)

	addProcessFlags(processCmd)
	bindProcessFlags(processCmd)
}

// GetProcessCommand returns the process command for testing purposes.
func GetProcessCommand() *cobra.Command {
	return processCmd
}
