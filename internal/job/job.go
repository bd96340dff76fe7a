package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/domain"
	"github.com/jaki95/audio-converter/internal/tagging"
)

// Tagger copies tags from a source file onto an output file.
type Tagger interface {
	Apply(ctx context.Context, source, output string, md domain.Metadata) tagging.Result
}

// Env holds the collaborators shared by every job of a run.
type Env struct {
	Chooser *OutputPathChooser
	Tagger  Tagger
	// OnTransition, when set, is called after every state change.
	OnTransition func(j *Job, from State)
}

// New returns a job converting a whole source file.
func New(source string, format audio.Format, encoder audio.Encoder, quality float64) *Job {
	return &Job{
		ID:         uuid.NewString(),
		SourcePath: source,
		TagSource:  source,
		Format:     format,
		Encoder:    encoder,
		Quality:    quality,
	}
}

// NewFragment returns a job converting an already extracted fragment of
// tagSource. The job owns the fragment and removes it when done.
func NewFragment(fragment, tagSource string, encoder audio.Encoder, quality float64, md domain.Metadata) *Job {
	return &Job{
		ID:               uuid.NewString(),
		SourcePath:       fragment,
		TagSource:        tagSource,
		Encoder:          encoder,
		Quality:          quality,
		Metadata:         md,
		IntermediatePath: fragment,
		OwnsIntermediate: true,
	}
}

// Run executes the job: extract, choose the output path, encode, tag and
// clean up. Tagging problems are recorded in TagResult and never fail the
// job. External tools are not interrupted when ctx is cancelled; they are
// left to react to the terminal's signal themselves.
func (j *Job) Run(ctx context.Context, env Env) error {
	if j.State != StatePending {
		return fmt.Errorf("%w: %s", ErrInvalidState, j.State)
	}
	if env.Chooser == nil {
		env.Chooser = NewOutputPathChooser()
	}

	toolCtx := context.WithoutCancel(ctx)
	log := slog.With("job_id", j.ID, "source", j.SourcePath)

	if j.IntermediatePath == "" {
		log.Debug("Extracting", "format", j.Format.Name)
		path, err := j.Format.Extract(toolCtx, j.SourcePath)
		if err != nil {
			return j.fail(env, fmt.Errorf("failed to extract %s: %w", j.SourcePath, err))
		}
		j.IntermediatePath = path
		j.OwnsIntermediate = !j.Format.PassThrough()
	}
	j.transition(env, StateExtracted)

	base := strings.TrimSuffix(filepath.Base(j.SourcePath), filepath.Ext(j.SourcePath))
	output, err := env.Chooser.Choose(filepath.Dir(j.SourcePath), base, j.Encoder.Extension)
	if err != nil {
		return j.fail(env, err)
	}
	j.OutputPath = output

	log.Debug("Encoding", "encoder", j.Encoder.Name, "quality", j.Quality, "output", output)
	if err := j.Encoder.Encode(toolCtx, j.IntermediatePath, output, j.Quality); err != nil {
		audio.RemoveIfEmpty(output)
		return j.fail(env, fmt.Errorf("failed to encode %s: %w", j.IntermediatePath, err))
	}
	j.transition(env, StateEncoded)

	if env.Tagger != nil {
		j.TagResult = env.Tagger.Apply(toolCtx, j.TagSource, output, j.Metadata)
		if j.TagResult.OK() {
			log.Debug("Tagged", "output", output, "written", len(j.TagResult.Written), "skipped", len(j.TagResult.Skipped))
		} else {
			log.Warn("Tagging incomplete", "output", output, "error", j.TagResult.Err)
		}
	}
	j.transition(env, StateTagged)

	if j.OwnsIntermediate {
		if err := os.Remove(j.IntermediatePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to remove intermediate file", "path", j.IntermediatePath, "error", err)
		}
	}
	j.transition(env, StateCleanedUp)

	log.Info("Converted", "output", output)
	return nil
}

func (j *Job) transition(env Env, to State) {
	from := j.State
	j.State = to
	if env.OnTransition != nil {
		env.OnTransition(j, from)
	}
}

func (j *Job) fail(env Env, err error) error {
	j.Err = err
	j.transition(env, StateFailed)
	return err
}
