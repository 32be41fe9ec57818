package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quill-ocr/quill/internal/version"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v, commit, date := version.Info()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "quill version %s\n", v)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
