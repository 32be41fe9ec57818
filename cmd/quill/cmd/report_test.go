package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/storage"
)

// setReportFlag sets a report command flag for the duration of the test.
func setReportFlag(t *testing.T, name, value string) {
	t.Helper()
	restoreFlagAfterTest(t, reportCmd.Flags(), name)
	require.NoError(t, reportCmd.Flags().Set(name, value))
}

func TestReportCommand(t *testing.T) {
	assert.NotNil(t, reportCmd)
	assert.True(t, strings.HasPrefix(reportCmd.Use, "report"))
	assert.NotEmpty(t, reportCmd.Short)
	assert.NotEmpty(t, reportCmd.Long)
}

func TestReportCommandHelp(t *testing.T) {
	command := reportCmd
	buf := new(bytes.Buffer)
	command.SetOut(buf)
	command.SetErr(buf)
	err := command.Help()
	require.NoError(t, err)
	output := strings.TrimSpace(buf.String())
	assert.Contains(t, output, "CSV")
	assert.Contains(t, output, "Usage:")
}

func TestReportCommandNoResultsDir(t *testing.T) {
	err := reportCmd.RunE(reportCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results directory")
}

func TestReportCommandWritesCSV(t *testing.T) {
	resultsDir := t.TempDir()
	res := document.Result{
		Scan: document.Scan{ID: "delo_001_000"},
		Regions: []document.Region{
			{ID: "r1", ConcatenatedText: "Метрическая книга за 1878 год"},
		},
	}
	require.NoError(t, storage.WriteResultFile(
		filepath.Join(resultsDir, "delo_001_000_result.json"), res))

	outPath := filepath.Join(t.TempDir(), "report.csv")
	setReportFlag(t, "output", outPath)
	setReportFlag(t, "fond", "102")

	buf := new(bytes.Buffer)
	reportCmd.SetOut(buf)
	reportCmd.SetErr(buf)

	err := reportCmd.RunE(reportCmd, []string{resultsDir})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Report written to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	csv := string(data)
	assert.Contains(t, csv, "№ скана")
	assert.Contains(t, csv, "Расшифрованный текст")
	assert.Contains(t, csv, "Метрическая книга за 1878 год")
	assert.Contains(t, csv, "102")
}

func TestReportCommandStdout(t *testing.T) {
	resultsDir := t.TempDir()
	res := document.Result{
		Scan:    document.Scan{ID: "scan_000"},
		Regions: []document.Region{{ID: "r1", ConcatenatedText: "запись"}},
	}
	require.NoError(t, storage.WriteResultFile(
		filepath.Join(resultsDir, "scan_000_result.json"), res))

	buf := new(bytes.Buffer)
	reportCmd.SetOut(buf)
	reportCmd.SetErr(buf)

	err := reportCmd.RunE(reportCmd, []string{resultsDir})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "№ скана")
	assert.Contains(t, output, "запись")
}
