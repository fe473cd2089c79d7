// Package pipeline drives one job through the ordered transcription stages,
// translating adapter results and failures into job-state transitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sheetscribe/api/internal/artifact"
	"github.com/sheetscribe/api/internal/media/pdf"
	"github.com/sheetscribe/api/internal/model"
	"github.com/sheetscribe/api/internal/notation"
	"github.com/sheetscribe/api/internal/services/homr"
	"github.com/sheetscribe/api/internal/store"
)

// AllowedExtensions lists the accepted upload types (lowercase, with dot).
var AllowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// Pipeline owns the stage sequence. One Run per job, ever; stage
// transitions are atomic store updates and strictly forward.
type Pipeline struct {
	store      *store.Store
	artifacts  *artifact.Store
	recognizer homr.Client
	rasterizer pdf.Rasterizer
	converter  notation.Converter
	maxBytes   int64
	notify     func(model.Job)
}

func New(
	jobs *store.Store,
	artifacts *artifact.Store,
	recognizer homr.Client,
	rasterizer pdf.Rasterizer,
	converter notation.Converter,
	maxBytes int64,
	notify func(model.Job),
) *Pipeline {
	return &Pipeline{
		store:      jobs,
		artifacts:  artifacts,
		recognizer: recognizer,
		rasterizer: rasterizer,
		converter:  converter,
		maxBytes:   maxBytes,
		notify:     notify,
	}
}

// Run executes the full stage sequence for one job. Failures at any stage
// terminate the job with an error state; they never escape to the worker
// pool.
func (p *Pipeline) Run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: panic in job %s: %v", jobID, r)
			p.fail(jobID, &InternalError{Err: fmt.Errorf("%v", r)})
		}
	}()

	if err := p.run(ctx, jobID); err != nil {
		p.fail(jobID, err)
	}
}

func (p *Pipeline) run(ctx context.Context, jobID string) error {
	workdir := p.artifacts.Dir(jobID)

	// validating
	p.transition(jobID, model.StageValidating, 0.04, "Validating input file")
	inputPath, err := p.validate(ctx, jobID, workdir)
	if err != nil {
		return err
	}
	p.transition(jobID, model.StageValidating, 0.08, "Runtime dependencies ready")

	// preparing
	p.transition(jobID, model.StagePreparing, 0.1, "Preparing input file")
	processImage, previewSource, err := p.prepare(ctx, jobID, inputPath, workdir)
	if err != nil {
		return err
	}
	p.transition(jobID, model.StagePreparing, 0.3, "Input prepared")

	// recognizing
	p.transition(jobID, model.StageRecognizing, 0.34, "Running optical music recognition")
	p.store.AppendLog(jobID, "Running optical music recognition")
	result, err := p.recognize(ctx, jobID, processImage, workdir)
	if err != nil {
		return err
	}
	p.transition(jobID, model.StageRecognizing, 0.62, "Recognition finished")

	// converting_notation
	p.transition(jobID, model.StageConvertingNotation, 0.68, "Converting MusicXML to ABC")
	p.store.AppendLog(jobID, "Converting MusicXML to ABC")
	abcText, conciseText, err := p.converter.Notation(result.MusicXMLPath)
	if err != nil {
		return &ConversionError{Err: err}
	}
	if err := p.store.Update(jobID, func(j *model.Job) {
		j.Stage = model.StageConvertingNotation
		j.Progress = 0.82
		j.Message = "Generating concise note sequence"
		j.ABCText = abcText
		j.ConciseNotesText = conciseText
	}); err != nil {
		return &InternalError{Err: err}
	}
	p.publish(jobID)
	p.store.AppendLog(jobID, "Generating concise note sequence")

	// converting_audio
	p.transition(jobID, model.StageConvertingAudio, 0.83, "Converting MusicXML to MIDI")
	p.store.AppendLog(jobID, "Converting MusicXML to MIDI")
	if err := p.converter.MIDI(result.MusicXMLPath, p.artifacts.MIDIPath(jobID)); err != nil {
		return &ConversionError{Err: err}
	}
	p.transition(jobID, model.StageConvertingAudio, 0.9, "Audio score ready")

	// packaging
	p.transition(jobID, model.StagePackaging, 0.94, "Packaging output files")
	p.store.AppendLog(jobID, "Packaging output files")
	if err := p.pack(jobID, result.MusicXMLPath, previewSource); err != nil {
		return err
	}

	if err := p.store.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusComplete
		j.Stage = model.StageComplete
		j.Progress = 1
		j.Message = "Transcription complete"
		for _, kind := range model.ValidArtifactKinds {
			if p.artifacts.Has(jobID, kind) {
				j.Downloads[kind] = downloadURL(jobID, kind)
			}
		}
		if p.artifacts.Has(jobID, model.ArtifactPreview) {
			url := downloadURL(jobID, model.ArtifactPreview)
			j.PreviewURL = &url
		}
		j.Log = append(j.Log, model.LogLine("Outputs are ready for download"))
	}); err != nil {
		return &InternalError{Err: err}
	}
	p.publish(jobID)
	return nil
}

func (p *Pipeline) validate(ctx context.Context, jobID, workdir string) (string, error) {
	inputPath, err := findInput(workdir)
	if err != nil {
		return "", &InternalError{Err: err}
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if !AllowedExtensions[ext] {
		return "", &ValidationError{Reason: "Unsupported file format. Upload JPG, PNG, or PDF."}
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return "", &InternalError{Err: err}
	}
	if info.Size() > p.maxBytes {
		return "", &ValidationError{Reason: fmt.Sprintf("File too large. Max upload size is %dMB.", p.maxBytes/(1024*1024))}
	}

	p.store.AppendLog(jobID, "Checking homr availability")
	if !p.recognizer.Available(ctx) {
		return "", &ValidationError{
			Reason: "homr is not installed or not accessible. Set HOMR_DIR to your homr folder " +
				"or install homr with: poetry install --only main && poetry run homr --init",
		}
	}
	return inputPath, nil
}

func (p *Pipeline) prepare(ctx context.Context, jobID, inputPath, workdir string) (processImage, previewSource string, err error) {
	if strings.ToLower(filepath.Ext(inputPath)) != ".pdf" {
		return inputPath, inputPath, nil
	}

	p.transition(jobID, model.StagePreparing, 0.22, "Converting PDF pages")
	if count, countErr := p.rasterizer.PageCount(ctx, inputPath); countErr == nil {
		p.store.AppendLog(jobID, fmt.Sprintf("Detected %d PDF page(s); processing page 1", count))
	}

	page, err := p.rasterizer.FirstPage(ctx, inputPath, workdir)
	if err != nil {
		return "", "", &ValidationError{Reason: err.Error()}
	}
	return page, page, nil
}

func (p *Pipeline) recognize(ctx context.Context, jobID, imagePath, workdir string) (homr.Result, error) {
	result, err := p.recognizer.Recognize(ctx, imagePath, workdir)

	// Captured tool output goes to the job log whether or not the run
	// succeeded; it is the only diagnostic surface the client sees.
	output := result.Output
	var homrErr *homr.Error
	if errors.As(err, &homrErr) {
		output = homrErr.Output
	}
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			p.store.AppendLog(jobID, trimmed)
		}
	}

	if err != nil {
		if homrErr != nil {
			wrapped := error(homrErr)
			if homr.IsStaffDetectionFailure(homrErr.Output) {
				wrapped = fmt.Errorf(
					"homr could not detect enough notation structure. "+
						"Try a straighter, higher-resolution crop where staff lines and noteheads are clear. Details: %s",
					homrErr.Summary,
				)
			}
			return homr.Result{}, &ToolInvocationError{Kind: homrErr.Kind, Err: wrapped}
		}
		return homr.Result{}, &ToolInvocationError{Kind: homr.FailureIO, Err: err}
	}
	return result, nil
}

func (p *Pipeline) pack(jobID, musicxmlPath, previewSource string) error {
	if _, err := p.artifacts.CopyIn(jobID, musicxmlPath, "output.musicxml"); err != nil {
		return &InternalError{Err: err}
	}

	if previewSource != "" {
		ext := strings.ToLower(filepath.Ext(previewSource))
		if ext == "" {
			ext = ".jpg"
		}
		if ext != ".pdf" {
			if _, err := p.artifacts.CopyIn(jobID, previewSource, "preview"+ext); err != nil {
				return &InternalError{Err: err}
			}
		}
	}
	return nil
}

// transition advances stage/progress/message in one atomic update.
func (p *Pipeline) transition(jobID string, stage model.Stage, progress float64, message string) {
	err := p.store.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
		j.Stage = stage
		j.Progress = progress
		j.Message = message
	})
	if err != nil {
		log.Printf("pipeline: transition for job %s rejected: %v", jobID, err)
		return
	}
	p.publish(jobID)
}

func (p *Pipeline) fail(jobID string, cause error) {
	message := "Transcription failed"
	if errors.Is(cause, context.Canceled) {
		message = "Transcription aborted"
	}
	err := p.store.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusError
		j.Progress = 1
		j.Message = message
		msg := cause.Error()
		j.Error = &msg
		j.Log = append(j.Log, model.LogLine("ERROR: "+cause.Error()))
	})
	if err != nil {
		log.Printf("pipeline: could not fail job %s: %v", jobID, err)
		return
	}
	p.publish(jobID)
}

func (p *Pipeline) publish(jobID string) {
	if p.notify == nil {
		return
	}
	if job, ok := p.store.Get(jobID); ok {
		p.notify(job)
	}
}

func downloadURL(jobID string, kind model.ArtifactKind) string {
	return fmt.Sprintf("/api/jobs/%s/files/%s", jobID, kind)
}

func findInput(workdir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(workdir, "input.*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("uploaded input missing from %s", workdir)
	}
	return matches[0], nil
}
