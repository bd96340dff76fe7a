// Package tagging carries tags from a conversion's source file to its
// output. Tagging is best effort: every write reports a Result that callers
// log and discard, it never aborts a conversion.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jaki95/audio-converter/internal/domain"
)

// Well-known field names.
const (
	FieldAlbum       = "album"
	FieldAlbumArtist = "albumartist"
	FieldArtist      = "artist"
	FieldTitle       = "title"
	FieldTrackNumber = "tracknumber"
)

var (
	ErrTagging           = errors.New("tagging failed")
	ErrUnsupportedFormat = errors.New("unsupported tag format")
)

// Fields maps lower-cased field names to values.
type Fields map[string]string

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result is the outcome of one tag merge.
type Result struct {
	Path    string
	Written []string
	Skipped []string
	Err     error
}

// OK reports whether every step of the merge succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Reader reads the tags of a source file.
type Reader interface {
	Read(path string) (Fields, error)
}

// Writer writes tags into an output file. Fields the destination format
// cannot hold are reported as skipped.
type Writer interface {
	Write(ctx context.Context, path string, fields Fields) Result
}

// trackFields describe a single track. When a track is cut from a larger
// source, the source's values describe the whole file and are not copied.
var trackFields = map[string]bool{
	FieldTitle:       true,
	FieldArtist:      true,
	FieldTrackNumber: true,
	"cuesheet":       true,
	"lyrics":         true,
}

// Merge returns the fields to write: the non-empty overrides first, then
// every remaining source field that the overrides did not set. Overrides
// that carry any value mark the output as one track of source, so the
// source's per-track fields are dropped.
func Merge(source Fields, overrides domain.Metadata) Fields {
	fragment := !overrides.IsZero()

	merged := Fields{}
	set := func(key, value string) {
		if value != "" {
			merged[key] = value
		}
	}
	set(FieldAlbum, overrides.Album)
	set(FieldAlbumArtist, overrides.AlbumArtist)
	set(FieldArtist, overrides.Performer)
	set(FieldTitle, overrides.Title)
	if overrides.TrackNumber > 0 {
		set(FieldTrackNumber, strconv.Itoa(overrides.TrackNumber))
	}

	for key, value := range source {
		key = strings.ToLower(key)
		if _, ok := merged[key]; ok || value == "" {
			continue
		}
		if fragment && trackFields[key] {
			continue
		}
		merged[key] = value
	}
	return merged
}

// Store is the metadata store: it reads any source format and writes the
// output formats it has a Writer for, chosen by extension.
type Store struct {
	reader  Reader
	writers map[string]Writer
}

// NewStore returns a Store writing ID3v2 tags to mp3 files and Vorbis
// comments to ogg files through the vorbiscomment executable.
func NewStore(vorbisCommentTool string) *Store {
	return &Store{
		reader: NewReader(),
		writers: map[string]Writer{
			".mp3": NewID3Writer(),
			".ogg": NewVorbisWriter(vorbisCommentTool),
		},
	}
}

// Apply copies the tags of source, overridden by md, into output.
// A source without readable tags still receives the overrides.
func (s *Store) Apply(ctx context.Context, source, output string, md domain.Metadata) Result {
	var readErr error
	fields, err := s.reader.Read(source)
	if err != nil {
		readErr = fmt.Errorf("%w: read %s: %w", ErrTagging, source, err)
		fields = Fields{}
	}

	result := s.Write(ctx, output, Merge(fields, md))
	if readErr != nil {
		result.Err = errors.Join(readErr, result.Err)
	}
	return result
}

// Write writes fields into path using the writer registered for its extension.
func (s *Store) Write(ctx context.Context, path string, fields Fields) Result {
	writer, ok := s.writers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Result{
			Path:    path,
			Skipped: fields.Keys(),
			Err:     fmt.Errorf("%w: %w: %s", ErrTagging, ErrUnsupportedFormat, path),
		}
	}
	return writer.Write(ctx, path, fields)
}
