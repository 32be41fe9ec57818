package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quill-ocr/quill/internal/report"
)

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report [results-dir]",
	Short: "Export assembled results to a CSV report",
	Long: `Build a tabular report over a directory of result documents.

Each scan contributes one row per region text block; recognized named
entities are grouped per type and multiply the rows. The fond/opis/delo
columns identify the archival unit the scans belong to.

Without a results directory argument the report covers the workspace
results (requires --storage-dir or storage_dir in config).

Examples:
  quill report ./results --fond 102 --opis 71 --delo 9 -o report.csv
  quill report --storage-dir ./quill-data --fond 102
  quill report ./results --fields scan_no,text --labels labels.yaml`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		var resultsDir string
		if len(args) > 0 {
			resultsDir = args[0]
		} else {
			if cfg.StorageDir == "" {
				return errors.New("no results directory given and no storage directory configured")
			}
			resultsDir = filepath.Join(cfg.StorageDir, "results")
		}

		opts := report.DefaultOptions()
		opts.Archive.Fond, _ = cmd.Flags().GetString("fond")
		opts.Archive.Opis, _ = cmd.Flags().GetString("opis")
		opts.Archive.Delo, _ = cmd.Flags().GetString("delo")
		opts.Fields, _ = cmd.Flags().GetStringSlice("fields")
		opts.EntityOrder, _ = cmd.Flags().GetStringSlice("entity-order")
		if cmd.Flags().Changed("entity-joiner") {
			opts.EntityJoiner, _ = cmd.Flags().GetString("entity-joiner")
		}
		if noDedupe, _ := cmd.Flags().GetBool("no-dedupe"); noDedupe {
			opts.Deduplicate = false
		}

		if labelsFile, _ := cmd.Flags().GetString("labels"); labelsFile != "" {
			labels, err := report.LoadLabels(labelsFile)
			if err != nil {
				return fmt.Errorf("failed to load labels: %w", err)
			}
			opts.Labels = labels
		}

		rep, err := report.BuildFromDir(resultsDir, opts)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile == "" {
			return rep.WriteCSV(cmd.OutOrStdout())
		}
		if err := rep.SaveCSV(outputFile); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s (%d rows)\n", outputFile, len(rep.Rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("fond", "", "fond (collection) number for the report")
	reportCmd.Flags().String("opis", "", "opis (inventory) number for the report")
	reportCmd.Flags().String("delo", "", "delo (item) number for the report")
	reportCmd.Flags().StringP("output", "o", "", "CSV output file (default: stdout)")
	reportCmd.Flags().StringSlice("fields", nil,
		"columns to include, in order (scan_no, fond, opis, delo, text, entity_type, entity_value, extra)")
	reportCmd.Flags().String("labels", "", "YAML file overriding column headers per field")
	reportCmd.Flags().StringSlice("entity-order", nil, "entity types to report first")
	reportCmd.Flags().String("entity-joiner", "", "separator for multiple values of one entity type")
	reportCmd.Flags().Bool("no-dedupe", false, "keep repeated values within one entity type")
}
