package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/sheetscribe/api/internal/services/homr"
)

func TestSubmitJob_ReturnsQueuedImmediately(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req := createMultipartRequest(t, "score.png", []byte("image-bytes"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	job := parseJob(t, resp)
	if job["id"] == nil || job["id"] == "" {
		t.Error("expected 'id' in response")
	}
	if job["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", job["status"])
	}
	if job["filename"] != "score.png" {
		t.Errorf("expected sanitized filename 'score.png', got %v", job["filename"])
	}
}

func TestJobLifecycle_ImageToArtifacts(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req := createMultipartRequest(t, "sonata.png", []byte("image-bytes"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	jobID := parseJob(t, resp)["id"].(string)

	job := pollUntilTerminal(t, ta.app, jobID)

	if job["status"] != "complete" {
		t.Fatalf("expected status 'complete', got %v (error: %v)", job["status"], job["error"])
	}
	if job["stage"] != "complete" {
		t.Errorf("expected stage 'complete', got %v", job["stage"])
	}
	if job["progress"] != float64(1) {
		t.Errorf("expected progress 1, got %v", job["progress"])
	}

	abc, _ := job["abc_text"].(string)
	if !strings.Contains(abc, "X:1") {
		t.Errorf("expected ABC text, got %q", abc)
	}
	concise, _ := job["concise_notes_text"].(string)
	if !strings.Contains(concise, "C4:1/4") {
		t.Errorf("expected concise notes, got %q", concise)
	}

	downloads, ok := job["downloads"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected downloads map, got %v", job["downloads"])
	}
	for _, kind := range []string{"midi", "musicxml", "preview"} {
		if downloads[kind] == nil {
			t.Errorf("expected downloads entry for %s", kind)
		}
	}
	if job["preview_url"] == nil {
		t.Error("expected preview_url")
	}

	logLines, _ := job["log"].([]interface{})
	if len(logLines) == 0 {
		t.Fatal("expected log lines")
	}
	logText := ""
	for _, line := range logLines {
		logText += line.(string) + "\n"
	}
	if !strings.Contains(logText, "Found 2 staffs") {
		t.Errorf("expected recognizer output in log, got:\n%s", logText)
	}
}

func TestJobLifecycle_ArtifactDownloads(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req := createMultipartRequest(t, "sonata.png", []byte("image-bytes"))
	resp, _ := ta.app.Test(req, -1)
	jobID := parseJob(t, resp)["id"].(string)
	pollUntilTerminal(t, ta.app, jobID)

	// MIDI downloads as an attachment named after the upload.
	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/midi")
	assertStatus(t, resp, http.StatusOK)
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "sonata.mid") {
		t.Errorf("expected attachment named sonata.mid, got %q", disposition)
	}
	body := readBody(t, resp)
	if !strings.HasPrefix(body, "MThd") {
		t.Error("expected a MIDI file body")
	}

	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/musicxml")
	assertStatus(t, resp, http.StatusOK)
	if !strings.Contains(readBody(t, resp), "score-partwise") {
		t.Error("expected MusicXML body")
	}

	// Preview is served inline.
	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/preview")
	assertStatus(t, resp, http.StatusOK)
	if strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Error("preview should not be an attachment")
	}

	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/bogus")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestSubmitJob_UnsupportedType(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req := createMultipartRequest(t, "notes.txt", []byte("not a score"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	result := parseJSON(t, resp)
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "Unsupported file format") {
		t.Errorf("expected unsupported-format error, got %q", msg)
	}
}

func TestSubmitJob_MissingFile(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req, _ := http.NewRequest(http.MethodPost, "/api/jobs", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	result := parseJSON(t, resp)
	if result["error"] != "File is required" {
		t.Errorf("expected 'File is required', got %v", result["error"])
	}
}

func TestSubmitJob_TooLarge(t *testing.T) {
	opts := defaultOptions()
	opts.maxBytes = 16
	ta := setupApp(t, opts)

	req := createMultipartRequest(t, "score.png", []byte("this body is longer than sixteen bytes"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusRequestEntityTooLarge)
	result := parseJSON(t, resp)
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "File too large") {
		t.Errorf("expected size error, got %q", msg)
	}
}

func TestSubmitJob_QueueFull(t *testing.T) {
	opts := defaultOptions()
	opts.queueSize = 0
	opts.startPool = false
	ta := setupApp(t, opts)

	req := createMultipartRequest(t, "score.png", []byte("image-bytes"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)
	result := parseJSON(t, resp)
	if result["error"] != "Server is busy. Try again shortly." {
		t.Errorf("expected busy error, got %v", result["error"])
	}
}

func TestJobLifecycle_RecognizerTimeout(t *testing.T) {
	opts := defaultOptions()
	opts.recognizer = &fakeRecognizer{
		available: true,
		err: &homr.Error{
			Kind:    homr.FailureTimeout,
			Summary: "timed out after 3m0s",
			Output:  "partial recognizer output",
		},
	}
	ta := setupApp(t, opts)

	req := createMultipartRequest(t, "score.png", []byte("image-bytes"))
	resp, _ := ta.app.Test(req, -1)
	jobID := parseJob(t, resp)["id"].(string)

	job := pollUntilTerminal(t, ta.app, jobID)

	if job["status"] != "error" {
		t.Fatalf("expected status 'error', got %v", job["status"])
	}
	if job["stage"] != "recognizing" {
		t.Errorf("expected job to fail at stage 'recognizing', got %v", job["stage"])
	}
	errMsg, _ := job["error"].(string)
	if !strings.Contains(errMsg, "homr timed out") {
		t.Errorf("expected timeout error, got %q", errMsg)
	}
	if downloads, ok := job["downloads"].(map[string]interface{}); ok && len(downloads) > 0 {
		t.Errorf("expected no downloads on failure, got %v", downloads)
	}

	// Conversion stages must never have run.
	logLines, _ := job["log"].([]interface{})
	for _, line := range logLines {
		if s, ok := line.(string); ok && strings.Contains(s, "Converting MusicXML") {
			t.Errorf("unexpected conversion log entry: %q", s)
		}
	}

	// Download endpoints stay 404 for a failed job.
	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/midi")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetJob_NotFound(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	resp := doRequest(t, ta.app, http.MethodGet, "/api/jobs/does-not-exist")
	assertStatus(t, resp, http.StatusNotFound)
	result := parseJSON(t, resp)
	if result["error"] != "Job not found" {
		t.Errorf("expected 'Job not found', got %v", result["error"])
	}
}

func TestDownloadBeforeCompletion(t *testing.T) {
	opts := defaultOptions()
	opts.startPool = false // job stays queued
	opts.queueSize = 1
	ta := setupApp(t, opts)

	req := createMultipartRequest(t, "score.png", []byte("image-bytes"))
	resp, _ := ta.app.Test(req, -1)
	assertStatus(t, resp, http.StatusCreated)
	jobID := parseJob(t, resp)["id"].(string)

	resp = doRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/files/midi")
	assertStatus(t, resp, http.StatusNotFound)
	result := parseJSON(t, resp)
	if result["error"] != "Artifact not available" {
		t.Errorf("expected 'Artifact not available', got %v", result["error"])
	}
}

func TestJobLifecycle_PDFUpload(t *testing.T) {
	ta := setupApp(t, defaultOptions())

	req := createMultipartRequest(t, "score.pdf", []byte("%PDF-1.4 fake"))
	resp, _ := ta.app.Test(req, -1)
	assertStatus(t, resp, http.StatusCreated)
	jobID := parseJob(t, resp)["id"].(string)

	job := pollUntilTerminal(t, ta.app, jobID)
	if job["status"] != "complete" {
		t.Fatalf("expected status 'complete', got %v (error: %v)", job["status"], job["error"])
	}
	if job["preview_url"] == nil {
		t.Error("expected a preview rendered from the PDF's first page")
	}
}
