// Package testsupport provides fixtures shared by package tests: small
// shell scripts standing in for the external audio tools.
package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaki95/audio-converter/internal/audio"
)

// Scripts emulating each tool's argument contract. Decoders and encoders
// copy their input to their output so content stays traceable.
const (
	flacScript     = `cp "$5" "$4"`
	macScript      = `cp "$1" "$2"`
	wvunpackScript = `cp "$2" "$4"`
	mplayerScript  = `dst=$(printf '%s' "$5" | sed -e 's/^pcm:file=//' -e 's/\\,/,/g'); cp "$3" "$dst"`
	oggencScript   = `cp "$5" "$4"`
	lameScript     = `cp "$3" "$4"`

	cueBreakpointsScript = `n=$(grep -ciE '^[[:space:]]*TRACK[[:space:]]' "$1"); i=1
while [ "$i" -lt "$n" ]; do echo "$i:00.00"; i=$((i+1)); done`

	shnsplitScript = `n=$(cat | wc -l); n=$((n+1)); i=1
while [ "$i" -le "$n" ]; do cp "$7" "$(printf '%s/%s%02d.wav' "$2" "$4" "$i")"; i=$((i+1)); done`

	// Appends the comment file to the output so tests can inspect it.
	vorbisCommentScript = `cat "$5" >> "$6"`
)

// RequireShell skips the test on platforms without /bin/sh.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools need /bin/sh")
	}
}

// FakeTool writes an executable shell script named name into dir.
func FakeTool(t testing.TB, dir, name, body string) string {
	t.Helper()
	RequireShell(t)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake tool %s: %v", path, err)
	}
	return path
}

// FakeTools installs a working fake for every external tool and returns
// the matching configuration.
func FakeTools(t testing.TB) audio.Tools {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "bin")
	return audio.Tools{
		Flac:           FakeTool(t, dir, "flac", flacScript),
		Mac:            FakeTool(t, dir, "mac", macScript),
		WvUnpack:       FakeTool(t, dir, "wvunpack", wvunpackScript),
		MPlayer:        FakeTool(t, dir, "mplayer", mplayerScript),
		OggEnc:         FakeTool(t, dir, "oggenc", oggencScript),
		Lame:           FakeTool(t, dir, "lame", lameScript),
		CueBreakpoints: FakeTool(t, dir, "cuebreakpoints", cueBreakpointsScript),
		ShnSplit:       FakeTool(t, dir, "shnsplit", shnsplitScript),
		VorbisComment:  FakeTool(t, dir, "vorbiscomment", vorbisCommentScript),
	}
}

// WriteFile creates path, and its parent directories, with content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ListDir returns the sorted file names directly inside dir.
func ListDir(t testing.TB, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
