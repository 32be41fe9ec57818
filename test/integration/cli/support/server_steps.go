package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/server"
)

// theScanServerIsRunning boots the HTTP server on an httptest listener
// backed by a pipeline storing into the scenario's temp directory.
func (testCtx *TestContext) theScanServerIsRunning() error {
	if testCtx.HTTPServer != nil {
		return nil
	}

	storageDir := filepath.Join(testCtx.TempDir, "storage")
	p, err := pipeline.NewBuilder().WithStorageDir(storageDir).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		MaxUploadMB: 50,
		TimeoutSec:  30,
		Pipeline:    p,
		Store:       p.Store(),
		Version:     "test",
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.ScanServer = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	testCtx.Vars["server_url"] = testCtx.HTTPServer.URL
	return nil
}

// iUploadTheScanForProcessing sends the prepared scan fixture to the
// process endpoint as a multipart upload.
func (testCtx *TestContext) iUploadTheScanForProcessing() error {
	return testCtx.uploadScan(nil)
}

// iUploadTheScanForProcessingAs uploads the fixture under an explicit
// scan id so later steps can fetch the stored result.
func (testCtx *TestContext) iUploadTheScanForProcessingAs(scanID string) error {
	return testCtx.uploadScan(map[string]string{"scan_id": scanID})
}

// iUploadTheScanForProcessingWithFormat uploads the fixture requesting
// a specific response format.
func (testCtx *TestContext) iUploadTheScanForProcessingWithFormat(format string) error {
	return testCtx.uploadScan(map[string]string{"format": format})
}

func (testCtx *TestContext) uploadScan(fields map[string]string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	imgPath := testCtx.Vars["scan_image"]
	xmlPath := testCtx.Vars["scan_xml"]
	if imgPath == "" || xmlPath == "" {
		return errors.New("no scan fixture prepared")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := addFormFile(writer, "image", imgPath); err != nil {
		return err
	}
	if err := addFormFile(writer, "xml", xmlPath); err != nil {
		return err
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write form field %q: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+"/process", writer.FormDataContentType(), &body) //nolint:noctx // test request against a local listener
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return testCtx.recordResponse(resp)
}

// addFormFile attaches one file to a multipart upload.
func addFormFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: test fixture with controlled path
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file %q: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy %q into form: %w", path, err)
	}
	return nil
}

// iGETFromTheServer issues a GET against the running server.
func (testCtx *TestContext) iGETFromTheServer(path string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	path = testCtx.substituteCommandVariables(path)

	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:gosec,noctx // test request against a local listener
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	return nil
}

// theResponseStatusShouldBe verifies the last HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nResponse: %s",
			status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain verifies the last HTTP response body.
func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !bytes.Contains([]byte(testCtx.LastHTTPResponse), []byte(expected)) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeValidJSON verifies the response parses as JSON.
func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var payload any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &payload); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers HTTP server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^I upload the scan for processing$`, testCtx.iUploadTheScanForProcessing)
	sc.Step(`^I upload the scan for processing as "([^"]*)"$`, testCtx.iUploadTheScanForProcessingAs)
	sc.Step(`^I upload the scan for processing with format "([^"]*)"$`, testCtx.iUploadTheScanForProcessingWithFormat)
	sc.Step(`^I GET "([^"]*)" from the server$`, testCtx.iGETFromTheServer)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
}
