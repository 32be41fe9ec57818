package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/testutil"
)

func TestProcessCommand(t *testing.T) {
	assert.NotNil(t, processCmd)
	assert.Equal(t, "process", processCmd.Use)
	assert.NotEmpty(t, processCmd.Short)
	assert.NotEmpty(t, processCmd.Long)
}

func TestProcessCommandHelp(t *testing.T) {
	command := processCmd
	buf := new(bytes.Buffer)
	command.SetOut(buf)
	command.SetErr(buf)
	// Call help directly to avoid cobra root execution differences
	err := command.Help()
	require.NoError(t, err)
	output := strings.TrimSpace(buf.String())
	assert.Contains(t, output, "PAGE XML")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Flags:")
}

func TestProcessCommandFlags(t *testing.T) {
	flags := processCmd.Flags()

	expectedFlags := []string{"image", "xml", "format", "output", "pdf", "pages", "recognize", "languages"}
	for _, name := range expectedFlags {
		assert.NotNil(t, flags.Lookup(name), "Expected flag '%s' not found", name)
	}
}

// restoreFlagAfterTest resets a flag to its default when the test ends.
// Command flags are package globals, so tests that set them must not
// leak values into later tests.
func restoreFlagAfterTest(t *testing.T, flags *pflag.FlagSet, name string) {
	t.Helper()
	flag := flags.Lookup(name)
	require.NotNil(t, flag, "flag %s not registered", name)
	def := flag.DefValue
	t.Cleanup(func() {
		_ = flag.Value.Set(def)
		flag.Changed = false
	})
}

// setProcessFlag sets a process command flag for the duration of the test.
func setProcessFlag(t *testing.T, name, value string) {
	t.Helper()
	restoreFlagAfterTest(t, processCmd.Flags(), name)
	require.NoError(t, processCmd.Flags().Set(name, value))
}

func TestProcessCommandRequiresInput(t *testing.T) {
	err := processCmd.RunE(processCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --image or --pdf is required")
}

func TestProcessCommandRejectsBothInputs(t *testing.T) {
	setProcessFlag(t, "image", "scan.png")
	setProcessFlag(t, "pdf", "delo.pdf")

	err := processCmd.RunE(processCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestProcessCommandRejectsBadFormat(t *testing.T) {
	setProcessFlag(t, "format", "xml")

	err := processCmd.RunE(processCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestProcessCommandRequiresLayout(t *testing.T) {
	setProcessFlag(t, "image", "scan.png")

	err := processCmd.RunE(processCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--xml")
}

func TestProcessCommandTextOutput(t *testing.T) {
	dir := t.TempDir()
	imgPath, xmlPath := testutil.WriteScanFixture(t, dir, "delo_001")

	for _, name := range []string{"image", "xml", "format"} {
		restoreFlagAfterTest(t, processCmd.Flags(), name)
	}
	restoreFlagAfterTest(t, rootCmd.PersistentFlags(), "storage-dir")

	// Route subcommand output back through the root buffer.
	processCmd.SetOut(nil)
	processCmd.SetErr(nil)

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{
		"process",
		"--image", imgPath,
		"--xml", xmlPath,
		"--format", "text",
		"--storage-dir", filepath.Join(dir, "workspace"),
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Opening line of the record")
	assert.Contains(t, output, "continued on the second line")
}

func TestProcessCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	imgPath, xmlPath := testutil.WriteScanFixture(t, dir, "delo_002")
	outPath := filepath.Join(dir, "result.json")

	for _, name := range []string{"image", "xml", "output"} {
		restoreFlagAfterTest(t, processCmd.Flags(), name)
	}
	restoreFlagAfterTest(t, rootCmd.PersistentFlags(), "storage-dir")

	processCmd.SetOut(nil)
	processCmd.SetErr(nil)

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{
		"process",
		"--image", imgPath,
		"--xml", xmlPath,
		"--output", outPath,
		"--storage-dir", filepath.Join(dir, "workspace"),
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Result written to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "delo_002")
	assert.Contains(t, string(data), "concatenated_text")
	assert.Contains(t, string(data), "Opening line of the record")
}
