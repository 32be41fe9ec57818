package support

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
)

// iRunCommand runs a quill CLI command in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	// Perform command substitution
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "quill" {
		return fmt.Errorf("only quill commands are supported, got %q", parts[0])
	}

	testCtx.runRootCommand(parts[1:])
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains the given text.
func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substituteCommandVariables(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q\nOutput: %s", expected, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output omits the given text.
func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output contains %q when it should not\nOutput: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	// Skip any preceding text and start at the first brace or bracket.
	output := strings.TrimSpace(testCtx.LastOutput)
	jsonStart := strings.IndexAny(output, "{[")
	if jsonStart == -1 {
		return fmt.Errorf("no JSON found in output: %s", testCtx.LastOutput)
	}

	var payload any
	if err := json.Unmarshal([]byte(output[jsonStart:]), &payload); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONShouldContain verifies a dotted field path exists somewhere in
// the JSON output. Array elements are searched in turn.
func (testCtx *TestContext) theJSONShouldContain(fieldPath string) error {
	output := strings.TrimSpace(testCtx.LastOutput)
	jsonStart := strings.IndexAny(output, "{[")
	if jsonStart == -1 {
		return fmt.Errorf("no JSON found in output: %s", testCtx.LastOutput)
	}

	var payload any
	if err := json.Unmarshal([]byte(output[jsonStart:]), &payload); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}

	if !jsonFieldExists(payload, strings.Split(fieldPath, ".")) {
		return fmt.Errorf("JSON does not contain field %q\nOutput: %s", fieldPath, testCtx.LastOutput)
	}
	return nil
}

func jsonFieldExists(node any, path []string) bool {
	if len(path) == 0 {
		return true
	}
	switch v := node.(type) {
	case map[string]any:
		child, ok := v[path[0]]
		if !ok {
			return false
		}
		return jsonFieldExists(child, path[1:])
	case []any:
		for _, item := range v {
			if jsonFieldExists(item, path) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// theOutputShouldBeValidCSV verifies the output parses as CSV.
func (testCtx *TestContext) theOutputShouldBeValidCSV() error {
	reader := csv.NewReader(strings.NewReader(testCtx.LastOutput))
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(records) == 0 {
		return errors.New("CSV output is empty")
	}
	return nil
}

// theErrorShouldMention verifies the failure output mentions the given
// text, case-insensitively.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	combined := testCtx.LastOutput
	if testCtx.LastError != nil {
		combined += "\n" + testCtx.LastError.Error()
	}
	if !strings.Contains(strings.ToLower(combined), strings.ToLower(text)) {
		return fmt.Errorf("error output does not mention %q\nOutput: %s", text, combined)
	}
	return nil
}

// theFileShouldExist verifies a file exists after substitution.
func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.substituteCommandVariables(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %q does not exist: %w", path, err)
	}
	return nil
}

// theFileShouldContain verifies a file contains the given text.
func (testCtx *TestContext) theFileShouldContain(path, content string) error {
	path = testCtx.substituteCommandVariables(path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: test file with controlled path
	if err != nil {
		return fmt.Errorf("failed to read file %q: %w", path, err)
	}
	if !strings.Contains(string(data), content) {
		return fmt.Errorf("file %q does not contain %q\nContent: %s", path, content, string(data))
	}
	return nil
}

// RegisterCommonSteps registers command execution and assertion steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output assertions
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV$`, testCtx.theOutputShouldBeValidCSV)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// File assertions
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
