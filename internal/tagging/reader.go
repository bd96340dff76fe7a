package tagging

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

type fileReader struct{}

// NewReader returns a Reader understanding ID3, MP4 and Vorbis comment tags.
func NewReader() Reader {
	return fileReader{}
}

// Read returns the tags of path. A file without tags yields empty Fields.
func (fileReader) Read(path string) (Fields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Fields{}, nil
		}
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	fields := Fields{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields[key] = value
		}
	}

	// Vorbis comments are free-form; keep every textual field.
	if m.Format() == tag.VORBIS {
		for key, value := range m.Raw() {
			if s, ok := value.(string); ok {
				set(strings.ToLower(key), s)
			}
		}
	}

	set(FieldTitle, m.Title())
	set(FieldArtist, m.Artist())
	set(FieldAlbum, m.Album())
	set(FieldAlbumArtist, m.AlbumArtist())
	set("composer", m.Composer())
	set("genre", m.Genre())
	set("comment", m.Comment())
	set("lyrics", m.Lyrics())
	if year := m.Year(); year > 0 {
		set("date", strconv.Itoa(year))
	}
	if track, _ := m.Track(); track > 0 {
		set(FieldTrackNumber, strconv.Itoa(track))
	}
	if disc, _ := m.Disc(); disc > 0 {
		set("discnumber", strconv.Itoa(disc))
	}

	return fields, nil
}
