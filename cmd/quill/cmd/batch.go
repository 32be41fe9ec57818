package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/quill-ocr/quill/internal/batch"
	"github.com/quill-ocr/quill/internal/config"
	"github.com/quill-ocr/quill/internal/pipeline"
)

// batchCmd represents the batch command for parallel scan processing.
var batchCmd = &cobra.Command{
	Use:   "batch [paths...]",
	Short: "Process directories of scans in parallel",
	Long: `Process every scan image found under the given files and directories.
Each image is paired with its sibling PAGE XML layout ({stem}.xml);
results are written to the workspace and optionally copied to a
destination directory.

Examples:
  quill batch ./scans
  quill batch ./scans --recursive --workers 8
  quill batch ./fond102/opis1 --dst ./results --progress
  quill batch scan1.jpg scan2.jpg --dst ./results`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
// CLI flags override config file values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command, args []string) batch.Config {
	batchConfig := batch.Config{Paths: args}

	batchConfig.Workers = cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		batchConfig.Workers, _ = cmd.Flags().GetInt("workers")
	}

	batchConfig.Discover.Recursive = cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		batchConfig.Discover.Recursive, _ = cmd.Flags().GetBool("recursive")
	}

	batchConfig.DestinationDir = cfg.Batch.DestinationDir
	if cmd.Flags().Changed("dst") {
		batchConfig.DestinationDir, _ = cmd.Flags().GetString("dst")
	}

	// File discovery patterns are CLI-only
	batchConfig.Discover.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	batchConfig.Discover.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

	return batchConfig
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	batchConfig := configToBatchConfig(cfg, cmd, args)

	quiet, _ := cmd.Flags().GetBool("quiet")
	showProgress, _ := cmd.Flags().GetBool("progress")
	switch {
	case quiet:
	case showProgress:
		batchConfig.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "scans ")
	default:
		batchConfig.Progress = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelInfo, "Batch ", 10)
	}

	pl, err := cfg.PipelineBuilder().Build()
	if err != nil {
		return fmt.Errorf("failed to build scan pipeline: %w", err)
	}

	runner := batch.New(pl, batchConfig)
	summary, err := runner.Run(ensureContext(cmd))
	if err != nil {
		if errors.Is(err, batch.ErrNoScans) {
			return fmt.Errorf("no scan images found under %v", args)
		}
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if !quiet {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	}
	if !summary.Succeeded() {
		for _, item := range summary.FailedScans() {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", item.Scan.ID, item.Err)
		}
		return fmt.Errorf("batch completed with %d failure(s)", summary.Failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("workers", "w", 0,
		fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().String("dst", "", "directory receiving a copy of every {scan_id}_result.json")
	batchCmd.Flags().StringSlice("include", nil, "file patterns to include (e.g. *.jpg)")
	batchCmd.Flags().StringSlice("exclude", nil, "file patterns to exclude")
	batchCmd.Flags().Bool("progress", false, "show progress bar")
	batchCmd.Flags().Bool("quiet", false, "suppress progress and summary output")
}
