package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sheetscribe/api/internal/artifact"
	"github.com/sheetscribe/api/internal/handler"
	"github.com/sheetscribe/api/internal/notation"
	"github.com/sheetscribe/api/internal/pipeline"
	"github.com/sheetscribe/api/internal/service"
	"github.com/sheetscribe/api/internal/services/homr"
	"github.com/sheetscribe/api/internal/store"
	"github.com/sheetscribe/api/internal/worker"
)

const testMusicXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <key><fifths>0</fifths></key>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration></note>
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>1</duration></note>
      <note><pitch><step>G</step><octave>4</octave></pitch><duration>2</duration></note>
    </measure>
  </part>
</score-partwise>
`

// fakeRecognizer stands in for the homr CLI so e2e tests run without poetry.
type fakeRecognizer struct {
	available bool
	err       error
	output    string
}

func (f *fakeRecognizer) Recognize(ctx context.Context, imagePath, outputDir string) (homr.Result, error) {
	if f.err != nil {
		return homr.Result{}, f.err
	}
	path := filepath.Join(outputDir, "score.musicxml")
	if err := os.WriteFile(path, []byte(testMusicXML), 0o644); err != nil {
		return homr.Result{}, err
	}
	return homr.Result{MusicXMLPath: path, Output: f.output}, nil
}

func (f *fakeRecognizer) Available(ctx context.Context) bool {
	return f.available
}

// fakeRasterizer renders a stub first page without poppler installed.
type fakeRasterizer struct {
	pages int
}

func (f *fakeRasterizer) FirstPage(ctx context.Context, pdfPath, outputDir string) (string, error) {
	path := filepath.Join(outputDir, "page_1.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeRasterizer) PageCount(ctx context.Context, pdfPath string) (int, error) {
	return f.pages, nil
}

type testOptions struct {
	recognizer homr.Client
	maxBytes   int64
	queueSize  int
	startPool  bool
}

func defaultOptions() testOptions {
	return testOptions{
		recognizer: &fakeRecognizer{available: true, output: "Found 2 staffs\nRecognition complete"},
		maxBytes:   1 << 20,
		queueSize:  8,
		startPool:  true,
	}
}

type testApp struct {
	app *fiber.App
}

// setupApp wires the same components as main.go, with the external tools
// replaced by fakes and artifacts kept in a temp directory.
func setupApp(t *testing.T, opts testOptions) *testApp {
	t.Helper()

	artifacts, err := artifact.NewStore(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}

	jobs := store.New()
	rasterizer := &fakeRasterizer{pages: 1}
	converter := notation.NewLibrary()

	pipe := pipeline.New(jobs, artifacts, opts.recognizer, rasterizer, converter, opts.maxBytes, nil)
	pool := worker.NewPool(2, opts.queueSize, pipe.Run)
	if opts.startPool {
		pool.Start()
		t.Cleanup(pool.Stop)
	}

	jobService := service.NewJobService(jobs, artifacts, pool, opts.maxBytes, 12*time.Hour)
	jobHandler := handler.NewJobHandler(jobService, 40)
	healthHandler := handler.NewHealthHandler(jobService, opts.recognizer, 40)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	api.Post("/jobs", jobHandler.Create)
	api.Get("/jobs/:id", jobHandler.Get)
	api.Get("/jobs/:id/files/:kind", jobHandler.File)

	return &testApp{app: app}
}

// createMultipartRequest builds a POST /api/jobs upload request.
func createMultipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/jobs", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// doRequest performs an HTTP request against the test app.
func doRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// parseJob extracts the job object from a {"job": {...}} response.
func parseJob(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	result := parseJSON(t, resp)
	job, ok := result["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'job' object in response, got: %v", result)
	}
	return job
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// pollUntilTerminal polls GET /api/jobs/:id until the job reaches complete or
// error, failing the test on timeout.
func pollUntilTerminal(t *testing.T, app *fiber.App, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp := doRequest(t, app, http.MethodGet, "/api/jobs/"+jobID)
		assertStatus(t, resp, http.StatusOK)
		job := parseJob(t, resp)
		status, _ := job["status"].(string)
		if status == "complete" || status == "error" {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}
