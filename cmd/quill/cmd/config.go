package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quill-ocr/quill/internal/config"
)

// configCmd groups configuration management subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage quill configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// configInitCmd writes a default configuration file.
var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with the default settings.

Examples:
  quill config init
  quill config init /etc/quill/quill.yaml`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := "quill.yaml"
		if len(args) > 0 {
			filename = args[0]
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
		return nil
	},
}

// configShowCmd prints the resolved configuration.
var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Show the resolved configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved := GetConfigLoader().GetResolvedConfig()
		out, err := yaml.Marshal(resolved)
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", used)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// configPathsCmd lists the configuration search paths.
var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List configuration search paths",
	Run: func(cmd *cobra.Command, args []string) {
		for _, path := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathsCmd)
}
