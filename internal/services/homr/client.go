// Package homr wraps the homr optical music recognition engine, which runs
// as an external poetry-managed process. The server treats it as an opaque,
// slow, possibly failing tool: invocations are time-bounded, combined output
// is captured for the job log, and failures are summarized for display.
package homr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Result is a successful recognition: the generated MusicXML moved into the
// job's output directory, plus everything the tool printed.
type Result struct {
	MusicXMLPath string
	Output       string
}

// Error classifications for a failed invocation.
const (
	FailureTimeout     = "timeout"
	FailureExitNonZero = "exit"
	FailureIO          = "io"
)

// Error describes a failed homr invocation. Summary is a single displayable
// line; Output carries the full captured stdout/stderr for the job log.
type Error struct {
	Kind    string
	Summary string
	Output  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case FailureTimeout:
		return "homr timed out while processing the score"
	case FailureIO:
		return "homr could not be started: " + e.Summary
	default:
		return "homr processing failed: " + e.Summary
	}
}

// Client defines recognizer behaviour so the pipeline can be tested against
// a fake.
type Client interface {
	Recognize(ctx context.Context, imagePath, outputDir string) (Result, error)
	Available(ctx context.Context) bool
}

// Option configures the CLI client.
type Option func(*CLI)

// WithDir overrides the homr working directory.
func WithDir(dir string) Option {
	return func(c *CLI) {
		if dir != "" {
			c.dir = dir
		}
	}
}

// WithTimeout bounds each recognition run.
func WithTimeout(d time.Duration) Option {
	return func(c *CLI) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// CLI invokes homr through "poetry run homr" in its checkout directory.
type CLI struct {
	dir     string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{timeout: 180 * time.Second}
	for _, opt := range opts {
		opt(cli)
	}
	if cli.dir == "" {
		cli.dir = defaultDir()
	}
	return cli
}

// Dir returns the resolved homr directory.
func (c *CLI) Dir() string {
	return c.dir
}

// Available probes whether homr is callable from the configured directory.
func (c *CLI) Available(ctx context.Context) bool {
	if _, err := os.Stat(c.dir); err != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := commandContext(probeCtx, "poetry", "run", "homr", "--help")
	cmd.Dir = c.dir
	return cmd.Run() == nil
}

// Recognize runs homr on one image and moves the generated MusicXML into
// outputDir. homr writes its output next to the source image.
func (c *CLI) Recognize(ctx context.Context, imagePath, outputDir string) (Result, error) {
	if _, err := os.Stat(c.dir); err != nil {
		return Result{}, &Error{Kind: FailureIO, Summary: "homr directory not found: " + c.dir}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var combined bytes.Buffer
	cmd := commandContext(runCtx, "poetry", "run", "homr", imagePath)
	cmd.Dir = c.dir
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	output := combined.String()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, &Error{Kind: FailureTimeout, Summary: "timed out after " + c.timeout.String(), Output: output}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, &Error{Kind: FailureExitNonZero, Summary: SummarizeOutput(output), Output: output}
		}
		return Result{}, &Error{Kind: FailureIO, Summary: err.Error(), Output: output}
	}

	generated := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".musicxml"
	if _, statErr := os.Stat(generated); statErr != nil {
		return Result{}, &Error{
			Kind:    FailureExitNonZero,
			Summary: "homr finished but no MusicXML file was generated",
			Output:  output,
		}
	}

	dest := filepath.Join(outputDir, "score.musicxml")
	if err := copyFile(generated, dest); err != nil {
		return Result{}, &Error{Kind: FailureIO, Summary: err.Error(), Output: output}
	}

	return Result{MusicXMLPath: dest, Output: output}, nil
}

// SummarizeOutput reduces captured tool output to one displayable line:
// the last "Exception:" line when present, otherwise the last non-empty
// line.
func SummarizeOutput(output string) string {
	lines := strings.Split(output, "\n")
	var nonEmpty []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}
	for i := len(nonEmpty) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.ToLower(nonEmpty[i]), "exception:") {
			return nonEmpty[i]
		}
	}
	if len(nonEmpty) > 0 {
		return nonEmpty[len(nonEmpty)-1]
	}
	return "Unknown homr error"
}

// IsStaffDetectionFailure reports whether the output indicates homr could
// not find notation structure, which usually means a low-contrast or
// low-resolution upload rather than a broken installation.
func IsStaffDetectionFailure(output string) bool {
	lower := strings.ToLower(output)
	markers := []string{
		"no staffs found",
		"no noteheads found",
		"found 0 staffs",
		"found 0 staff anchors",
	}
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func defaultDir() string {
	if env := os.Getenv("HOMR_DIR"); env != "" {
		return env
	}
	if wd, err := os.Getwd(); err == nil {
		sibling := filepath.Join(filepath.Dir(wd), "homr")
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling
		}
	}
	return "homr"
}

func copyFile(src, dest string) error {
	if sa, err := filepath.Abs(src); err == nil {
		if da, err := filepath.Abs(dest); err == nil && sa == da {
			return nil
		}
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

var _ Client = (*CLI)(nil)
