package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/config"
	"github.com/quill-ocr/quill/internal/testutil"
)

// setBatchFlag sets a batch command flag for the duration of the test.
func setBatchFlag(t *testing.T, name, value string) {
	t.Helper()
	restoreFlagAfterTest(t, batchCmd.Flags(), name)
	require.NoError(t, batchCmd.Flags().Set(name, value))
}

func TestBatchCommand(t *testing.T) {
	assert.NotNil(t, batchCmd)
	assert.True(t, strings.HasPrefix(batchCmd.Use, "batch"))
	assert.NotEmpty(t, batchCmd.Short)
	assert.NotEmpty(t, batchCmd.Long)
}

func TestBatchCommandHelp(t *testing.T) {
	command := batchCmd
	buf := new(bytes.Buffer)
	command.SetOut(buf)
	command.SetErr(buf)
	err := command.Help()
	require.NoError(t, err)
	output := strings.TrimSpace(buf.String())
	assert.Contains(t, output, "PAGE XML")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Flags:")
}

func TestBatchCommandRequiresArgs(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"batch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestConfigToBatchConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 6
	cfg.Batch.DestinationDir = "/data/results"

	batchConfig := configToBatchConfig(&cfg, batchCmd, []string{"./scans"})

	assert.Equal(t, []string{"./scans"}, batchConfig.Paths)
	assert.Equal(t, 6, batchConfig.Workers)
	assert.Equal(t, "/data/results", batchConfig.DestinationDir)
	assert.False(t, batchConfig.Discover.Recursive)
}

func TestConfigToBatchConfigFlagOverrides(t *testing.T) {
	setBatchFlag(t, "workers", "2")
	setBatchFlag(t, "recursive", "true")
	setBatchFlag(t, "dst", "/tmp/override")

	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 6

	batchConfig := configToBatchConfig(&cfg, batchCmd, nil)

	assert.Equal(t, 2, batchConfig.Workers)
	assert.True(t, batchConfig.Discover.Recursive)
	assert.Equal(t, "/tmp/override", batchConfig.DestinationDir)
}

func TestBatchCommandNoScans(t *testing.T) {
	setBatchFlag(t, "quiet", "true")

	err := runBatchCommand(batchCmd, []string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scan images found")
}

func TestBatchCommandProcessesDirectory(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteScanFixture(t, dir, "delo_001")
	testutil.WriteScanFixture(t, dir, "delo_002")
	dst := filepath.Join(t.TempDir(), "results")

	setBatchFlag(t, "quiet", "true")
	setBatchFlag(t, "dst", dst)

	err := runBatchCommand(batchCmd, []string{dir})
	require.NoError(t, err)

	// Scan ids follow {stem}_{index:03d} over the sorted discovery order.
	assert.FileExists(t, filepath.Join(dst, "delo_001_000_result.json"))
	assert.FileExists(t, filepath.Join(dst, "delo_002_001_result.json"))
}
