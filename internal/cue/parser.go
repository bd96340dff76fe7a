// Package cue parses cue sheets into album and track metadata.
//
// A sheet is read as one album followed by a flat list of tracks: lines
// before the first TRACK directive describe the album, every later
// PERFORMER or TITLE line describes the most recently opened track.
package cue

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jaki95/audio-converter/internal/domain"
)

// ErrMalformedCueLine is returned for a PERFORMER or TITLE line without a
// complete quoted value.
var ErrMalformedCueLine = errors.New("malformed cue line")

// Parse parses the text of a cue sheet.
func Parse(text string) (*domain.CueSheet, error) {
	sheet := &domain.CueSheet{}
	inTrack := false
	var current *domain.CueTrack

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch keyword(line) {
		case "REM":
			continue
		case "PERFORMER", "TITLE":
			value, err := quotedValue(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q", err, lineNumber, line)
			}
			setField(sheet, current, inTrack, keyword(line), value)
		case "INDEX":
			if inTrack {
				setIndex(current, line)
			}
		default:
			if containsTrackToken(line) {
				sheet.Tracks = append(sheet.Tracks, domain.CueTrack{
					Number: trackNumber(line, len(sheet.Tracks)+1),
				})
				current = &sheet.Tracks[len(sheet.Tracks)-1]
				inTrack = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cue sheet: %w", err)
	}

	return sheet, nil
}

func setField(sheet *domain.CueSheet, track *domain.CueTrack, inTrack bool, key, value string) {
	switch {
	case !inTrack && key == "PERFORMER":
		sheet.AlbumArtist = value
	case !inTrack && key == "TITLE":
		sheet.Album = value
	case key == "PERFORMER":
		track.Performer = value
	case key == "TITLE":
		track.Title = value
	}
}

// keyword returns the upper-cased leading directive of a trimmed line.
func keyword(line string) string {
	end := strings.IndexAny(line, " \t\"")
	if end < 0 {
		end = len(line)
	}
	return strings.ToUpper(line[:end])
}

// quotedValue returns the text between the first and second double quote.
func quotedValue(line string) (string, error) {
	first := strings.IndexByte(line, '"')
	if first < 0 {
		return "", ErrMalformedCueLine
	}
	second := strings.IndexByte(line[first+1:], '"')
	if second < 0 {
		return "", ErrMalformedCueLine
	}
	return line[first+1 : first+1+second], nil
}

// containsTrackToken reports whether TRACK appears as a word outside any
// quoted text, so a title such as "Back on Track" is never mistaken for a
// directive.
func containsTrackToken(line string) bool {
	for i, part := range strings.Split(line, `"`) {
		if i%2 == 1 {
			continue
		}
		for _, field := range strings.Fields(part) {
			if strings.EqualFold(field, "TRACK") {
				return true
			}
		}
	}
	return false
}

func trackNumber(line string, fallback int) int {
	fields := strings.Fields(line)
	for i, field := range fields {
		if strings.EqualFold(field, "TRACK") && i+1 < len(fields) {
			if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}

// setIndex records the INDEX 01 position of track. Unreadable positions
// are ignored; they never affect the track list.
func setIndex(track *domain.CueTrack, line string) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[1] != "01" {
		return
	}
	if _, err := IndexToSeconds(fields[2]); err == nil {
		track.Index = fields[2]
	}
}
