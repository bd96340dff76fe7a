package processor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/job"
	"github.com/jaki95/audio-converter/internal/processor"
	"github.com/jaki95/audio-converter/internal/progress"
	"github.com/jaki95/audio-converter/internal/splitter"
	"github.com/jaki95/audio-converter/internal/storage"
	"github.com/jaki95/audio-converter/internal/testsupport"
)

const albumCue = `PERFORMER "A"
TITLE "Album"
  TRACK 01 AUDIO
    TITLE "Intro"
  TRACK 02 AUDIO
    TITLE "Back on Track"
`

// failOnCorrupt decodes like flac but fails for sources containing "corrupt".
const failOnCorrupt = `if grep -q corrupt "$5"; then echo 'lost sync' >&2; exit 1; fi; cp "$5" "$4"`

func newProcessor(t *testing.T, tools audio.Tools, mutate func(*processor.Config)) *processor.Processor {
	t.Helper()

	encoder, err := audio.NewEncoder(audio.EncoderOgg, tools)
	require.NoError(t, err)

	cfg := processor.Config{
		Registry: audio.NewRegistry(tools),
		Tools:    tools,
		Encoder:  encoder,
		Quality:  encoder.DefaultQuality,
		Workers:  2,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return processor.New(cfg)
}

func TestProcessSingleFile(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "song.flac")
	testsupport.WriteFile(t, source, "flac-audio")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{source}})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, filepath.Join(dir, "song.ogg"), result.Job.OutputPath)
	assert.Equal(t, job.StateCleanedUp, result.Job.State)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, []string{"song.flac", "song.ogg"}, testsupport.ListDir(t, dir))
}

func TestProcessRecursive(t *testing.T) {
	tools := testsupport.FakeTools(t)
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.flac"), "a")
	testsupport.WriteFile(t, filepath.Join(root, "sub", "b.flac"), "b")
	testsupport.WriteFile(t, filepath.Join(root, "sub", "c.ape"), "c")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{
		Files:     []string{"*.flac"},
		Recursive: true,
		Root:      root,
	})
	require.NoError(t, err)
	require.NoError(t, summary.Err())
	assert.Len(t, summary.Results, 2)

	assert.Equal(t, []string{"a.flac", "a.ogg", "sub"}, testsupport.ListDir(t, root))
	assert.Equal(t, []string{"b.flac", "b.ogg", "c.ape"}, testsupport.ListDir(t, filepath.Join(root, "sub")))
}

func TestProcessIgnoresUnsupportedFiles(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, notes, "text")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{notes}})
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Empty(t, summary.Skipped)
	assert.NoError(t, summary.Err())
}

func TestProcessSkipsSourceWithoutCue(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	withCue := filepath.Join(dir, "album.flac")
	withoutCue := filepath.Join(dir, "lonely.flac")
	testsupport.WriteFile(t, withCue, "album")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)
	testsupport.WriteFile(t, withoutCue, "lonely")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{
		Files: []string{withoutCue, withCue},
		Split: true,
	})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, withoutCue, summary.Skipped[0].Path)
	assert.ErrorIs(t, summary.Skipped[0].Err, splitter.ErrMissingCueFile)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, []string{"album.cue", "album.flac", "album_01.ogg", "album_02.ogg", "lonely.flac"}, testsupport.ListDir(t, dir))
}

func TestProcessIsolatesFailures(t *testing.T) {
	tools := testsupport.FakeTools(t)
	tools.Flac = testsupport.FakeTool(t, filepath.Join(t.TempDir(), "bin"), "flac", failOnCorrupt)

	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "one.flac"),
		filepath.Join(dir, "two.flac"),
		filepath.Join(dir, "three.flac"),
	}
	testsupport.WriteFile(t, files[0], "fine")
	testsupport.WriteFile(t, files[1], "corrupt")
	testsupport.WriteFile(t, files[2], "fine too")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: files})
	require.NoError(t, err)

	assert.ErrorIs(t, summary.Err(), processor.ErrJobsFailed)
	assert.ErrorIs(t, summary.Err(), audio.ErrExternalTool)
	assert.Len(t, summary.Results, 3)

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, files[1], failed[0].Job.SourcePath)
	assert.Equal(t, job.StateFailed, failed[0].Job.State)

	assert.FileExists(t, filepath.Join(dir, "one.ogg"))
	assert.FileExists(t, filepath.Join(dir, "three.ogg"))
	assert.NoFileExists(t, filepath.Join(dir, "two.ogg"))
}

func TestProcessDisambiguatesExistingOutput(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "track.flac")
	testsupport.WriteFile(t, source, "new")
	testsupport.WriteFile(t, filepath.Join(dir, "track.ogg"), "old")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{source}})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.Equal(t, filepath.Join(dir, "track_encoded_.ogg"), summary.Results[0].Job.OutputPath)
	old, err := os.ReadFile(filepath.Join(dir, "track.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestProcessMissingEncoderIsUsageError(t *testing.T) {
	tools := testsupport.FakeTools(t)
	tools.OggEnc = filepath.Join(t.TempDir(), "no-such-oggenc")

	dir := t.TempDir()
	source := filepath.Join(dir, "song.flac")
	testsupport.WriteFile(t, source, "flac-audio")

	_, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{source}})
	assert.ErrorIs(t, err, processor.ErrUsage)
	assert.ErrorIs(t, err, processor.ErrPreflight)
	assert.Equal(t, []string{"song.flac"}, testsupport.ListDir(t, dir))
}

func TestProcessMissingDecoderFailsOnlyItsSources(t *testing.T) {
	tools := testsupport.FakeTools(t)
	tools.MPlayer = filepath.Join(t.TempDir(), "no-such-mplayer")

	dir := t.TempDir()
	flac := filepath.Join(dir, "song.flac")
	m4a := filepath.Join(dir, "other.m4a")
	testsupport.WriteFile(t, flac, "flac-audio")
	testsupport.WriteFile(t, m4a, "m4a-audio")

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{flac, m4a}})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.NoError(t, summary.Results[0].Err)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, m4a, summary.Errors[0].Path)
	assert.ErrorIs(t, summary.Errors[0].Err, processor.ErrMissingTool)
	assert.ErrorIs(t, summary.Err(), processor.ErrJobsFailed)
	assert.Equal(t, []string{"other.m4a", "song.flac", "song.ogg"}, testsupport.ListDir(t, dir))
}

func TestProcessKeepsWavSourceNextToFlac(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	flac := filepath.Join(dir, "song.flac")
	wav := filepath.Join(dir, "song.wav")
	testsupport.WriteFile(t, flac, "flac-audio")
	testsupport.WriteFile(t, wav, "user pcm")

	p := newProcessor(t, tools, func(cfg *processor.Config) { cfg.Workers = 1 })
	summary, err := p.Process(context.Background(), processor.Options{Files: []string{flac, wav}})
	require.NoError(t, err)

	data, err := os.ReadFile(wav)
	require.NoError(t, err)
	assert.Equal(t, "user pcm", string(data))

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, flac, failed[0].Job.SourcePath)
	assert.ErrorIs(t, failed[0].Err, audio.ErrIntermediateExists)
	assert.Equal(t, []string{"song.flac", "song.ogg", "song.wav"}, testsupport.ListDir(t, dir))
}

func TestProcessSameBaseNamesNeverShareIntermediate(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	sources := map[string]string{
		filepath.Join(dir, "a.flac"): "flac-audio",
		filepath.Join(dir, "a.ape"):  "ape-audio",
	}
	files := make([]string, 0, len(sources))
	for path, content := range sources {
		testsupport.WriteFile(t, path, content)
		files = append(files, path)
	}

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: files})
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)

	// Either both jobs convert one after the other, or the later one finds
	// the intermediate taken; no output ever carries the other's audio.
	for _, r := range summary.Results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, audio.ErrIntermediateExists)
			continue
		}
		data, err := os.ReadFile(r.Job.OutputPath)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), sources[r.Job.SourcePath]), r.Job.OutputPath)
	}
	assert.NoFileExists(t, filepath.Join(dir, "a.wav"))
}

func TestProcessSplitToolFailureFailsRun(t *testing.T) {
	tools := testsupport.FakeTools(t)
	tools.ShnSplit = testsupport.FakeTool(t, filepath.Join(t.TempDir(), "bin"), "shnsplit", "cat >/dev/null; exit 1")

	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "album")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	summary, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{
		Files: []string{source},
		Split: true,
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, source, summary.Errors[0].Path)
	assert.ErrorIs(t, summary.Err(), processor.ErrJobsFailed)
	assert.ErrorIs(t, summary.Err(), audio.ErrExternalTool)
}

func TestProcessSplitSameBaseNames(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	flac := filepath.Join(dir, "album.flac")
	ape := filepath.Join(dir, "album.ape")
	testsupport.WriteFile(t, flac, "flac-audio")
	testsupport.WriteFile(t, ape, "ape-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	p := newProcessor(t, tools, nil)
	jobs, skipped, failed := p.BuildJobs(context.Background(), []string{flac, ape}, true)
	assert.Empty(t, skipped)
	require.Len(t, jobs, 2)

	owners := map[string]int{}
	for _, j := range jobs {
		owners[j.IntermediatePath]++
	}
	for fragment, n := range owners {
		assert.Equal(t, 1, n, fragment)
	}

	require.Len(t, failed, 1)
	assert.Equal(t, ape, failed[0].Path)
	assert.ErrorIs(t, failed[0].Err, splitter.ErrFragmentsExist)
}

func TestProcessBadPatternDoesNothing(t *testing.T) {
	tools := testsupport.FakeTools(t)
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.flac"), "a")

	_, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{
		Files:     []string{"a.flac"},
		Recursive: true,
		Root:      root,
	})
	assert.ErrorIs(t, err, processor.ErrUsage)
	assert.Equal(t, []string{"a.flac"}, testsupport.ListDir(t, root))
}

func TestProcessPublishesOutputs(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	library := t.TempDir()
	source := filepath.Join(dir, "song.flac")
	testsupport.WriteFile(t, source, "flac-audio")

	store, err := storage.NewLocalFileStorage(library, dir)
	require.NoError(t, err)

	p := newProcessor(t, tools, func(cfg *processor.Config) { cfg.Storage = store })
	summary, err := p.Process(context.Background(), processor.Options{Files: []string{source}})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.Equal(t, filepath.Join(library, "song.ogg"), summary.Results[0].Published)
	assert.FileExists(t, filepath.Join(library, "song.ogg"))
}

func TestProcessReportsProgress(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.flac"), filepath.Join(dir, "b.flac")}
	for _, f := range files {
		testsupport.WriteFile(t, f, "audio")
	}

	tracker := progress.NewProgressTracker()
	var mu sync.Mutex
	finished, terminal := 0, 0
	tracker.AddListener(func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.JobDetails == nil {
			return
		}
		switch e.JobDetails.State {
		case "done", "failed":
			finished++
		case job.StateCleanedUp.String():
			terminal++
		}
	})

	p := newProcessor(t, tools, func(cfg *processor.Config) { cfg.Tracker = tracker })
	_, err := p.Process(context.Background(), processor.Options{Files: files})
	require.NoError(t, err)

	assert.Equal(t, 2, finished)
	assert.Zero(t, terminal)
	state := tracker.GetCurrentState()
	assert.Equal(t, progress.StageComplete, state.Stage)
	assert.Equal(t, 2, state.JobDetails.Completed)
}

func TestRunAfterCancellationDispatchesNothing(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "song.flac")
	testsupport.WriteFile(t, source, "flac-audio")

	p := newProcessor(t, tools, nil)
	jobs, skipped, failed := p.BuildJobs(context.Background(), []string{source}, false)
	require.Len(t, jobs, 1)
	require.Empty(t, skipped)
	require.Empty(t, failed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := p.Run(ctx, jobs)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.NotRun)
	assert.Empty(t, summary.Results)
	assert.NoError(t, summary.Err())
	assert.Equal(t, job.StatePending, jobs[0].State)
	assert.Equal(t, []string{"song.flac"}, testsupport.ListDir(t, dir))
}

func TestProcessMissingDirectoryIsUsageError(t *testing.T) {
	tools := testsupport.FakeTools(t)
	source := filepath.Join(t.TempDir(), "gone", "song.flac")

	_, err := newProcessor(t, tools, nil).Process(context.Background(), processor.Options{Files: []string{source}})
	assert.ErrorIs(t, err, processor.ErrUsage)
	assert.ErrorIs(t, err, processor.ErrPreflight)
}
