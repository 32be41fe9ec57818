package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/queue"
)

// mockProcessor is a canned scanProcessor for handler tests.
type mockProcessor struct {
	mu   sync.Mutex
	reqs []pipeline.ScanRequest
	res  *pipeline.ProcessResult
	err  error
}

func (m *mockProcessor) ProcessScan(_ context.Context, req pipeline.ScanRequest) (*pipeline.ProcessResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

func (m *mockProcessor) requests() []pipeline.ScanRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.ScanRequest(nil), m.reqs...)
}

// mockEnqueuer captures enqueued scan tasks.
type mockEnqueuer struct {
	mu    sync.Mutex
	tasks []queue.ScanTask
	err   error
}

func (m *mockEnqueuer) EnqueueScan(_ context.Context, t queue.ScanTask) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.tasks = append(m.tasks, t)
	return "task-1", nil
}

func (m *mockEnqueuer) enqueued() []queue.ScanTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.ScanTask(nil), m.tasks...)
}

// mockResult builds a minimal assembled document for canned responses.
func mockResult(scanID string) *pipeline.ProcessResult {
	return &pipeline.ProcessResult{
		Document: document.Result{
			Scan: document.Scan{
				ID:                  scanID,
				Dimensions:          document.Dimensions{Width: 640, Height: 480},
				ProcessingTimestamp: "2026-01-02T03:04:05Z",
			},
			Regions: []document.Region{
				{
					ID:               "region_001",
					Type:             "paragraph",
					Index:            0,
					ConcatenatedText: "Запись о рождении",
				},
			},
			CroppedImages: []document.CroppedImage{},
		},
	}
}

// createScanUploadRequest builds a multipart request carrying an image
// and a layout XML upload. Nil data skips the respective part.
func createScanUploadRequest(
	imageData, xmlData []byte,
	extraFields map[string]string,
) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "scan.png")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(imageData); err != nil {
			return nil, err
		}
	}
	if xmlData != nil {
		part, err := writer.CreateFormFile("xml", "scan.xml")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(xmlData); err != nil {
			return nil, err
		}
	}
	for key, value := range extraFields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
