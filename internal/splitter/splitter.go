// Package splitter turns a whole-album source file and its cue sheet into
// one conversion job per track.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/cue"
	"github.com/jaki95/audio-converter/internal/job"
)

var (
	ErrMissingCueFile = errors.New("no cue file found")
	ErrFragmentsExist = errors.New("split fragments already exist")
)

// cueSuffixes lists the cue sheet names probed for a source, in order.
var cueSuffixes = []string{".cue", ".wav.cue", ".flac.cue", ".wv.cue", ".ape.cue"}

// FindCueFile returns the first existing cue sheet named after source.
func FindCueFile(source string) (string, error) {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	for _, suffix := range cueSuffixes {
		path := base + suffix
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrMissingCueFile, source)
}

// FindFragments returns the <base>_<digits>.wav files in dir, sorted by name.
func FindFragments(dir, base string) ([]string, error) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_\d+` + regexp.QuoteMeta(audio.IntermediateExtension) + `$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}

	var fragments []string
	for _, e := range entries {
		if e.Type().IsRegular() && pattern.MatchString(e.Name()) {
			fragments = append(fragments, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(fragments)
	return fragments, nil
}

// Request describes one source file to split.
type Request struct {
	Source  string
	Format  audio.Format
	Encoder audio.Encoder
	Quality float64
}

// Splitter cuts sources into per-track fragments.
type Splitter struct {
	tool audio.SplitTool
}

func New(tool audio.SplitTool) *Splitter {
	return &Splitter{tool: tool}
}

// Split extracts req.Source, cuts it at its cue sheet's breakpoints and
// returns one job per fragment. Track metadata is assigned by position;
// fragments beyond the sheet's tracks only carry album data. The whole-file
// intermediate is removed before returning when it was created here.
//
// Split refuses a source whose fragment names are already taken, by an
// earlier run or by another source with the same base name, so that every
// fragment belongs to exactly one job.
func (s *Splitter) Split(ctx context.Context, req Request) ([]*job.Job, error) {
	cuePath, err := FindCueFile(req.Source)
	if err != nil {
		return nil, err
	}

	sheet, err := cue.Load(cuePath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(req.Source)
	base := strings.TrimSuffix(filepath.Base(req.Source), filepath.Ext(req.Source))
	existing, err := FindFragments(dir, base)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrFragmentsExist, existing[0])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toolCtx := context.WithoutCancel(ctx)

	wav, err := req.Format.Extract(toolCtx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", req.Source, err)
	}
	if !req.Format.PassThrough() {
		defer func() {
			if err := os.Remove(wav); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Failed to remove intermediate file", "path", wav, "error", err)
			}
		}()
	}

	if err := s.tool.Split(toolCtx, cuePath, wav, dir, base+"_"); err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", req.Source, err)
	}

	fragments, err := FindFragments(dir, base)
	if err != nil {
		return nil, err
	}
	if expected := cue.ExpectedFragments(sheet); len(fragments) != expected {
		slog.Warn("Fragment count does not match cue sheet",
			"source", req.Source,
			"fragments", len(fragments),
			"expected", expected,
			"tracks", len(sheet.Tracks))
	}

	jobs := make([]*job.Job, 0, len(fragments))
	for i, fragment := range fragments {
		jobs = append(jobs, job.NewFragment(fragment, req.Source, req.Encoder, req.Quality, sheet.Metadata(i)))
	}

	slog.Info("Split source", "source", req.Source, "cue", cuePath, "tracks", len(jobs))
	return jobs, nil
}
