package splitter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/cue"
	"github.com/jaki95/audio-converter/internal/domain"
	"github.com/jaki95/audio-converter/internal/job"
	"github.com/jaki95/audio-converter/internal/splitter"
	"github.com/jaki95/audio-converter/internal/testsupport"
)

const albumCue = `PERFORMER "A"
TITLE "Album"
  TRACK 01 AUDIO
    TITLE "Intro"
    PERFORMER "A"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Back on Track"
    PERFORMER "B"
    INDEX 01 03:12:40
`

func TestFindCueFileProbeOrder(t *testing.T) {
	testCases := []struct {
		name     string
		existing []string
		expected string
	}{
		{name: "plain cue", existing: []string{"album.cue", "album.flac.cue"}, expected: "album.cue"},
		{name: "wav cue before flac cue", existing: []string{"album.flac.cue", "album.wav.cue"}, expected: "album.wav.cue"},
		{name: "ape cue last", existing: []string{"album.ape.cue"}, expected: "album.ape.cue"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tc.existing {
				testsupport.WriteFile(t, filepath.Join(dir, name), albumCue)
			}

			path, err := splitter.FindCueFile(filepath.Join(dir, "album.flac"))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tc.expected), path)
		})
	}
}

func TestFindCueFileMissing(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "other.cue"), albumCue)

	_, err := splitter.FindCueFile(filepath.Join(dir, "album.flac"))
	assert.ErrorIs(t, err, splitter.ErrMissingCueFile)
}

func TestFindFragments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"album_02.wav", "album_01.wav", "album_10.wav", "album.wav", "album_x.wav", "album_01.ogg", "other_01.wav"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), "pcm")
	}

	fragments, err := splitter.FindFragments(dir, "album")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "album_01.wav"),
		filepath.Join(dir, "album_02.wav"),
		filepath.Join(dir, "album_10.wav"),
	}, fragments)
}

func newRequest(t *testing.T, tools audio.Tools, source string) splitter.Request {
	t.Helper()

	format, ok := audio.NewRegistry(tools).Lookup(source)
	require.True(t, ok)
	encoder, err := audio.NewEncoder(audio.EncoderOgg, tools)
	require.NoError(t, err)

	return splitter.Request{Source: source, Format: format, Encoder: encoder, Quality: 5}
}

func TestSplitAlbum(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	jobs, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	// The whole-file intermediate is gone, the fragments remain for the jobs.
	assert.Equal(t, []string{"album.cue", "album.flac", "album_01.wav", "album_02.wav"}, testsupport.ListDir(t, dir))

	second := jobs[1]
	assert.Equal(t, filepath.Join(dir, "album_02.wav"), second.SourcePath)
	assert.Equal(t, second.SourcePath, second.IntermediatePath)
	assert.Equal(t, source, second.TagSource)
	assert.True(t, second.OwnsIntermediate)
	assert.Equal(t, job.StatePending, second.State)
	assert.Equal(t, 5.0, second.Quality)
	assert.Equal(t, domain.Metadata{
		Album:       "Album",
		AlbumArtist: "A",
		Title:       "Back on Track",
		Performer:   "B",
		TrackNumber: 2,
	}, second.Metadata)
}

func TestSplitPassThroughKeepsSource(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.wav")
	testsupport.WriteFile(t, source, "pcm")
	testsupport.WriteFile(t, filepath.Join(dir, "album.wav.cue"), albumCue)

	jobs, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, []string{"album.wav", "album.wav.cue", "album_01.wav", "album_02.wav"}, testsupport.ListDir(t, dir))
}

func TestSplitClampsExtraFragments(t *testing.T) {
	tools := testsupport.FakeTools(t)
	// Always produce three fragments regardless of breakpoints.
	tools.ShnSplit = testsupport.FakeTool(t, filepath.Join(t.TempDir(), "bin"), "shnsplit",
		`cat >/dev/null; for i in 01 02 03; do cp "$7" "$2/$4$i.wav"; done`)

	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	jobs, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, domain.Metadata{Album: "Album", AlbumArtist: "A", TrackNumber: 3}, jobs[2].Metadata)
}

func TestSplitMissingCue(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")

	jobs, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	assert.ErrorIs(t, err, splitter.ErrMissingCueFile)
	assert.Nil(t, jobs)
	assert.Equal(t, []string{"album.flac"}, testsupport.ListDir(t, dir))
}

func TestSplitMalformedCue(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), "TITLE Album\n")

	_, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	assert.ErrorIs(t, err, cue.ErrMalformedCueLine)
	assert.Equal(t, []string{"album.cue", "album.flac"}, testsupport.ListDir(t, dir))
}

func TestSplitToolFailureRemovesIntermediate(t *testing.T) {
	tools := testsupport.FakeTools(t)
	tools.ShnSplit = testsupport.FakeTool(t, filepath.Join(t.TempDir(), "bin"), "shnsplit", "cat >/dev/null; exit 1")

	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	_, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	assert.ErrorIs(t, err, audio.ErrExternalTool)
	assert.Equal(t, []string{"album.cue", "album.flac"}, testsupport.ListDir(t, dir))
}

func TestSplitCancelledBeforeExtraction(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := splitter.New(audio.NewSplitTool(tools)).Split(ctx, newRequest(t, tools, source))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"album.cue", "album.flac"}, testsupport.ListDir(t, dir))
}

func TestSplitRefusesExistingFragments(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "album.flac")
	testsupport.WriteFile(t, source, "flac-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)
	testsupport.WriteFile(t, filepath.Join(dir, "album_01.wav"), "earlier run")

	jobs, err := splitter.New(audio.NewSplitTool(tools)).Split(context.Background(), newRequest(t, tools, source))
	assert.ErrorIs(t, err, splitter.ErrFragmentsExist)
	assert.Nil(t, jobs)
	assert.Equal(t, []string{"album.cue", "album.flac", "album_01.wav"}, testsupport.ListDir(t, dir))
}

func TestSplitSameBaseNameClaimsFragmentsOnce(t *testing.T) {
	tools := testsupport.FakeTools(t)
	dir := t.TempDir()
	flac := filepath.Join(dir, "album.flac")
	ape := filepath.Join(dir, "album.ape")
	testsupport.WriteFile(t, flac, "flac-audio")
	testsupport.WriteFile(t, ape, "ape-audio")
	testsupport.WriteFile(t, filepath.Join(dir, "album.cue"), albumCue)

	s := splitter.New(audio.NewSplitTool(tools))
	jobs, err := s.Split(context.Background(), newRequest(t, tools, flac))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	_, err = s.Split(context.Background(), newRequest(t, tools, ape))
	assert.ErrorIs(t, err, splitter.ErrFragmentsExist)

	owners := map[string]int{}
	for _, j := range jobs {
		owners[j.IntermediatePath]++
	}
	for fragment, n := range owners {
		assert.Equal(t, 1, n, fragment)
	}
}
