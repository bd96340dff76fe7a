package domain

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a track index does not exist in a cue sheet.
var ErrIndexOutOfRange = errors.New("track index out of range")

// CueTrack represents a single TRACK block of a cue sheet.
type CueTrack struct {
	Number    int    `json:"number"`
	Title     string `json:"title,omitempty"`
	Performer string `json:"performer,omitempty"`
	Index     string `json:"index,omitempty"`
}

// CueSheet represents an album described by a cue sheet.
type CueSheet struct {
	AlbumArtist string     `json:"album_artist,omitempty"`
	Album       string     `json:"album,omitempty"`
	Tracks      []CueTrack `json:"tracks"`
}

// TrackData returns the title and performer of the track at the 0-based index.
func (c *CueSheet) TrackData(index int) (title, performer string, err error) {
	if index < 0 || index >= len(c.Tracks) {
		return "", "", fmt.Errorf("%w: %d (sheet has %d tracks)", ErrIndexOutOfRange, index, len(c.Tracks))
	}
	t := c.Tracks[index]
	return t.Title, t.Performer, nil
}

// Metadata returns the metadata for the fragment at the 0-based index.
// Album level fields are always filled; track level fields stay empty
// when the sheet declares fewer tracks than were produced.
func (c *CueSheet) Metadata(index int) Metadata {
	md := Metadata{
		Album:       c.Album,
		AlbumArtist: c.AlbumArtist,
		TrackNumber: index + 1,
	}
	if title, performer, err := c.TrackData(index); err == nil {
		md.Title = title
		md.Performer = performer
	}
	return md
}

// Metadata is the authoritative tag data a conversion job applies on top
// of the tags read from its source file.
type Metadata struct {
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Title       string `json:"title,omitempty"`
	Performer   string `json:"performer,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
}

// IsZero reports whether no field is set.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}
