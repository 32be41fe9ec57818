package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "quill", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	cmd := rootCmd

	// Capture output
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	// Set help flag and execute
	cmd.SetArgs([]string{"--help"})
	err := cmd.Execute()

	// Help should not return an error
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "PAGE XML")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	cmd := rootCmd

	// Capture output
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	// Set version flag and execute
	cmd.SetArgs([]string{"--version"})
	err := cmd.Execute()

	// Version should not return an error
	require.NoError(t, err)

	output := buf.String()
	// The output should contain version information
	assert.NotEmpty(t, output)
	assert.Contains(t, output, "quill")
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := rootCmd

	// Check that expected subcommands are present
	subcommands := cmd.Commands()
	commandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		commandNames[i] = subcmd.Name()
	}

	expectedCommands := []string{"process", "batch", "serve", "worker", "report", "version", "config"}
	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	cmd := rootCmd

	// Capture output
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	// Set invalid flag and execute
	cmd.SetArgs([]string{"--invalid-flag"})
	err := cmd.Execute()

	// Should return an error for invalid flag
	require.Error(t, err)

	output := buf.String()
	assert.Contains(t, output, "unknown flag")
}

// Helper function to execute command and capture output.
func executeCommandAndCaptureOutput(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(buf.String()), err
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"version"})
	require.NoError(t, err)

	assert.Contains(t, output, "quill version")
	assert.Contains(t, output, "Commit:")
}

func TestConfigPathsCommand(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "paths"})
	require.NoError(t, err)

	// Current directory and the system-wide path are always searched.
	assert.Contains(t, output, ".")
	assert.Contains(t, output, "/etc/quill")
}

// Test command configuration.
func TestRootCommandConfiguration(t *testing.T) {
	cmd := rootCmd

	// Test that command has proper configuration
	assert.True(t, cmd.HasSubCommands())
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("storage-dir"))
}
