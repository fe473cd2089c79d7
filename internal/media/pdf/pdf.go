// Package pdf rasterizes uploaded PDFs through the poppler command-line
// tools. Only the first page is rendered: multi-page scores are an explicit
// non-goal, and the truncation is surfaced in the job log instead of being
// silent.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Rasterizer converts the first PDF page into an image the recognizer can
// consume.
type Rasterizer interface {
	FirstPage(ctx context.Context, pdfPath, outputDir string) (string, error)
	PageCount(ctx context.Context, pdfPath string) (int, error)
}

// Option configures the poppler client.
type Option func(*Poppler)

// WithBinary overrides the pdftoppm binary path.
func WithBinary(binary string) Option {
	return func(p *Poppler) {
		if binary != "" {
			p.binary = binary
		}
	}
}

// WithDPI overrides the render resolution.
func WithDPI(dpi int) Option {
	return func(p *Poppler) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// Poppler shells out to pdftoppm/pdfinfo.
type Poppler struct {
	binary string
	dpi    int
}

func NewPoppler(opts ...Option) *Poppler {
	p := &Poppler{binary: "pdftoppm", dpi: 300}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FirstPage renders page 1 as a JPEG named page_1.jpg in outputDir.
func (p *Poppler) FirstPage(ctx context.Context, pdfPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	// pdftoppm appends the page number to the prefix: "page-1.jpg".
	prefix := filepath.Join(outputDir, "page")
	args := []string{
		"-jpeg",
		"-r", strconv.Itoa(p.dpi),
		"-f", "1",
		"-l", "1",
		pdfPath,
		prefix,
	}

	var stderr bytes.Buffer
	cmd := commandContext(ctx, p.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("PDF conversion failed: %s", detail)
	}

	for _, candidate := range []string{prefix + "-1.jpg", prefix + "-01.jpg", prefix + "-001.jpg"} {
		if _, err := os.Stat(candidate); err == nil {
			dest := filepath.Join(outputDir, "page_1.jpg")
			if err := os.Rename(candidate, dest); err != nil {
				return "", fmt.Errorf("move rendered page: %w", err)
			}
			return dest, nil
		}
	}
	return "", fmt.Errorf("no pages were found in the uploaded PDF")
}

// PageCount asks pdfinfo for the page count. Best effort: callers only use
// it for a log line, so any failure is reported as an error and ignored.
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	var stdout bytes.Buffer
	cmd := commandContext(ctx, "pdfinfo", pdfPath)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count: %w", err)
		}
		return count, nil
	}
	return 0, fmt.Errorf("pdfinfo output had no page count")
}

var _ Rasterizer = (*Poppler)(nil)
