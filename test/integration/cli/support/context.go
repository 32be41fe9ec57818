// Package support carries the shared state and step definitions for
// the CLI feature tests. Commands run in-process through the root
// command, so the suite needs no prebuilt binary and no external
// services.
package support

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quill-ocr/quill/cmd/quill/cmd"
)

// TestContext holds the state shared by the steps of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	Vars    map[string]string

	// Server state
	HTTPServer *httptest.Server
	ScanServer interface{ Close() error }

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
}

// NewTestContext creates a fresh context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "quill-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		TempDir: tempDir,
		Vars:    make(map[string]string),
	}, nil
}

// Cleanup stops any running server and removes the scenario's temp
// directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.ScanServer != nil {
		_ = testCtx.ScanServer.Close()
		testCtx.ScanServer = nil
	}

	if testCtx.TempDir != "" {
		if err := os.RemoveAll(testCtx.TempDir); err != nil {
			return fmt.Errorf("failed to remove temp directory: %w", err)
		}
		testCtx.TempDir = ""
	}
	return nil
}

// substituteCommandVariables replaces {placeholder} tokens in command
// strings with paths created by earlier steps.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{temp_dir}", testCtx.TempDir)
	for name, value := range testCtx.Vars {
		command = strings.ReplaceAll(command, "{"+name+"}", value)
	}
	return command
}

// runRootCommand executes the CLI in-process and captures its combined
// output. Flag state is reset first so one scenario's flags do not
// leak into the next.
func (testCtx *TestContext) runRootCommand(args []string) {
	root := cmd.GetRootCommand()
	resetCommandFlags(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	testCtx.LastStartTime = time.Now()
	err := root.Execute()
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastOutput = buf.String()
	testCtx.LastError = err
	if err != nil {
		testCtx.LastExitCode = 1
	} else {
		testCtx.LastExitCode = 0
	}
}

// resetCommandFlags restores changed flags to their defaults across the
// whole command tree. Slice flags are skipped because pflag appends on
// repeated Set calls; scenarios pass those explicitly every time.
func resetCommandFlags(c *cobra.Command) {
	for _, set := range []*pflag.FlagSet{c.PersistentFlags(), c.Flags()} {
		set.VisitAll(func(f *pflag.Flag) {
			if !f.Changed || strings.Contains(f.Value.Type(), "Slice") {
				return
			}
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetCommandFlags(sub)
	}
}
