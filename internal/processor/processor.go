// Package processor discovers source files, turns them into conversion
// jobs and runs the jobs on a bounded worker pool.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/deps"
	"github.com/jaki95/audio-converter/internal/job"
	"github.com/jaki95/audio-converter/internal/progress"
	"github.com/jaki95/audio-converter/internal/splitter"
	"github.com/jaki95/audio-converter/internal/storage"
	"github.com/jaki95/audio-converter/internal/tagging"
)

var (
	ErrUsage       = errors.New("usage error")
	ErrPreflight   = errors.New("preflight check failed")
	ErrMissingTool = errors.New("required tool not found")
	ErrJobsFailed  = errors.New("conversion failed")
)

// Config holds the collaborators of a Processor, built once at startup.
type Config struct {
	Registry *audio.Registry
	Tools    audio.Tools
	Encoder  audio.Encoder
	Quality  float64
	Workers  int

	// Optional collaborators.
	Tagger  job.Tagger
	Storage storage.Storage
	Tracker *progress.ProgressTracker
}

// Processor handles conversion runs
type Processor struct {
	registry *audio.Registry
	tools    audio.Tools
	encoder  audio.Encoder
	quality  float64
	workers  int
	tagger   job.Tagger
	storage  storage.Storage
	tracker  *progress.ProgressTracker
	splitter *splitter.Splitter
}

// New creates a new processor
func New(cfg Config) *Processor {
	tools := cfg.Tools.WithDefaults()

	registry := cfg.Registry
	if registry == nil {
		registry = audio.NewRegistry(tools)
	}
	tagger := cfg.Tagger
	if tagger == nil {
		tagger = tagging.NewStore(tools.VorbisComment)
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.NewProgressTracker()
	}

	return &Processor{
		registry: registry,
		tools:    tools,
		encoder:  cfg.Encoder,
		quality:  cfg.Quality,
		workers:  job.ValidateWorkers(cfg.Workers),
		tagger:   tagger,
		storage:  cfg.Storage,
		tracker:  tracker,
		splitter: splitter.New(audio.NewSplitTool(tools)),
	}
}

// FileError is a source that produced no jobs.
type FileError struct {
	Path string
	Err  error
}

// JobResult is the outcome of one dispatched job.
type JobResult struct {
	Job       *job.Job
	Published string
	Err       error
}

// Summary reports a whole run.
type Summary struct {
	Results []JobResult
	// Skipped holds sources left alone on purpose, such as a source with
	// no cue sheet in split mode. They do not fail the run.
	Skipped []FileError
	// Errors holds sources that failed before any job was built for them.
	Errors []FileError
	// NotRun counts jobs never dispatched because the run was cancelled.
	NotRun    int
	Cancelled bool
}

// Failed returns the results of the jobs that failed.
func (s Summary) Failed() []JobResult {
	var failed []JobResult
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err reports whether any source or dispatched job failed.
func (s Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 && len(s.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Errors)+len(failed))
	for _, e := range s.Errors {
		errs = append(errs, fmt.Errorf("%s: %w", e.Path, e.Err))
	}
	for _, r := range failed {
		errs = append(errs, r.Err)
	}
	return fmt.Errorf("%w: %d of %d jobs, %d sources: %w",
		ErrJobsFailed, len(failed), len(s.Results), len(s.Errors), errors.Join(errs...))
}

// Process discovers the files selected by opts, checks the external tools
// they need, builds their jobs and runs them. Job failures are reported in
// the Summary; the returned error is reserved for problems that stop the
// run before any conversion starts.
func (p *Processor) Process(ctx context.Context, opts Options) (Summary, error) {
	files, err := Discover(opts)
	if err != nil {
		return Summary{}, err
	}

	usable, unusable, err := p.Preflight(files, opts.Split)
	if err != nil {
		return Summary{}, err
	}

	jobs, skipped, failed := p.BuildJobs(ctx, usable, opts.Split)
	summary := p.Run(ctx, jobs)
	summary.Skipped = skipped
	summary.Errors = append(unusable, failed...)
	if ctx.Err() != nil {
		summary.Cancelled = true
	}

	switch {
	case summary.Cancelled:
		p.tracker.UpdateProgress(progress.StageCancelled, p.tracker.GetCurrentState().Progress, "Cancelled")
	case summary.Err() != nil:
		p.tracker.SetError(summary.Err())
	default:
		p.tracker.UpdateProgress(progress.StageComplete, 100, "Done")
	}
	return summary, nil
}

// Preflight checks what the selected files need before anything runs. A
// missing encoder or split tool, or an output directory that is not
// writable, stops the whole run with ErrUsage. A missing decoder only
// fails the sources of its format, returned as unusable.
func (p *Processor) Preflight(files []string, split bool) (usable []string, unusable []FileError, err error) {
	dirs := map[string]bool{}
	decoders := map[string]deps.Status{}
	for _, f := range files {
		format, ok := p.registry.Lookup(f)
		if !ok {
			usable = append(usable, f)
			continue
		}
		dirs[filepath.Dir(f)] = true

		req, needed := deps.ForFormat(format)
		if !needed {
			usable = append(usable, f)
			continue
		}
		status, checked := decoders[req.Command]
		if !checked {
			status = deps.CheckBinaries([]deps.Requirement{req})[0]
			decoders[req.Command] = status
		}
		if status.Available {
			usable = append(usable, f)
			continue
		}
		slog.Error("Decoder unavailable", "path", f, "tool", req.Command)
		unusable = append(unusable, FileError{Path: f, Err: fmt.Errorf("%w: %s", ErrMissingTool, status.Detail)})
	}

	statuses := deps.CheckBinaries(deps.ForRun(p.tools, p.encoder, split))
	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		statuses = append(statuses, deps.CheckWritable(dir))
	}

	missing := deps.Missing(statuses)
	if len(missing) == 0 {
		return usable, unusable, nil
	}

	details := make([]string, 0, len(missing))
	for _, m := range missing {
		details = append(details, m.Detail)
	}
	return nil, nil, fmt.Errorf("%w: %w: %s", ErrUsage, ErrPreflight, strings.Join(details, ", "))
}

// BuildJobs turns files into jobs. Files of unknown types are ignored.
// Sources without a cue sheet are skipped; any other split error fails the
// source.
func (p *Processor) BuildJobs(ctx context.Context, files []string, split bool) (jobs []*job.Job, skipped, failed []FileError) {
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}

		format, ok := p.registry.Lookup(file)
		if !ok {
			slog.Debug("Ignoring unsupported file", "path", file, "supported", p.registry.Extensions())
			continue
		}

		if !split {
			jobs = append(jobs, job.New(file, format, p.encoder, p.quality))
			continue
		}

		p.tracker.UpdateProgress(progress.StageSplitting, float64(i)/float64(len(files))*100, "Splitting "+file)
		fragments, err := p.splitter.Split(ctx, splitter.Request{
			Source:  file,
			Format:  format,
			Encoder: p.encoder,
			Quality: p.quality,
		})
		switch {
		case err == nil:
			jobs = append(jobs, fragments...)
		case errors.Is(err, splitter.ErrMissingCueFile):
			slog.Warn("Skipping file", "path", file, "error", err)
			skipped = append(skipped, FileError{Path: file, Err: err})
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			// Cancelled before extraction; the run reports the cancellation.
		default:
			slog.Error("Split failed", "path", file, "error", err)
			failed = append(failed, FileError{Path: file, Err: err})
		}
	}

	return jobs, skipped, failed
}

// Run executes jobs on the worker pool. Once ctx is cancelled no further
// job is dispatched; jobs already running finish on their own.
func (p *Processor) Run(ctx context.Context, jobs []*job.Job) Summary {
	env := job.Env{
		Chooser: job.NewOutputPathChooser(),
		Tagger:  p.tagger,
		OnTransition: func(j *job.Job, _ job.State) {
			// Terminal states are reported by runJob once publishing is done.
			if !j.State.Terminal() {
				p.tracker.JobUpdate(j.SourcePath, j.State.String())
			}
		},
	}

	p.tracker.Start(len(jobs))

	results := make([]JobResult, len(jobs))
	dispatched := make([]bool, len(jobs))
	work := make(chan int)

	var g errgroup.Group
	for range min(p.workers, max(len(jobs), 1)) {
		g.Go(func() error {
			for i := range work {
				results[i] = p.runJob(ctx, jobs[i], env)
			}
			return nil
		})
	}

dispatch:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case work <- i:
			dispatched[i] = true
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)
	_ = g.Wait()

	var summary Summary
	for i := range jobs {
		if dispatched[i] {
			summary.Results = append(summary.Results, results[i])
		} else {
			summary.NotRun++
		}
	}
	if summary.NotRun > 0 {
		summary.Cancelled = true
		slog.Warn("Run cancelled", "not_run", summary.NotRun)
	}
	return summary
}

func (p *Processor) runJob(ctx context.Context, j *job.Job, env job.Env) JobResult {
	result := JobResult{Job: j}

	if err := j.Run(ctx, env); err != nil {
		slog.Error("Conversion failed", "source", j.SourcePath, "error", err)
		result.Err = err
		p.tracker.JobFinished(j.SourcePath, "", err)
		return result
	}

	if p.storage != nil {
		published, err := p.storage.Publish(context.WithoutCancel(ctx), j.OutputPath)
		if err != nil {
			result.Err = fmt.Errorf("failed to publish %s: %w", j.OutputPath, err)
			slog.Error("Publish failed", "output", j.OutputPath, "error", err)
			p.tracker.JobFinished(j.SourcePath, j.OutputPath, result.Err)
			return result
		}
		result.Published = published
	}

	p.tracker.JobFinished(j.SourcePath, j.OutputPath, nil)
	return result
}
