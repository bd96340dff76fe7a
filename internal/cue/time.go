package cue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaki95/audio-converter/internal/domain"
)

// FramesPerSecond is the CD-DA frame rate used by cue sheet timestamps.
const FramesPerSecond = 75

// IndexToSeconds converts a cue timestamp like "04:32:37" (mm:ss:ff) to seconds.
func IndexToSeconds(index string) (float64, error) {
	parts := strings.Split(index, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid index format: %s", index)
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}
	frames, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid frames: %w", err)
	}
	if seconds >= 60 || frames >= FramesPerSecond {
		return 0, fmt.Errorf("invalid index format: %s", index)
	}

	return float64(minutes*60+seconds) + float64(frames)/FramesPerSecond, nil
}

// TrackStartSeconds returns the INDEX 01 position of track in seconds.
// The second result is false when the track has no usable index.
func TrackStartSeconds(track domain.CueTrack) (float64, bool) {
	if track.Index == "" {
		return 0, false
	}
	start, err := IndexToSeconds(track.Index)
	return start, err == nil
}

// ExpectedFragments returns the number of files splitting at the sheet's
// breakpoints yields: one per track starting after 00:00:00, plus the
// leading one. A sheet with a track lacking INDEX 01 is assumed to yield
// one file per track.
func ExpectedFragments(sheet *domain.CueSheet) int {
	if len(sheet.Tracks) == 0 {
		return 0
	}
	expected := 1
	for _, track := range sheet.Tracks {
		start, ok := TrackStartSeconds(track)
		if !ok {
			return len(sheet.Tracks)
		}
		if start > 0 {
			expected++
		}
	}
	return expected
}
