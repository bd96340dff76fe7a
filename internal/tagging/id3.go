package tagging

import (
	"context"
	"fmt"

	"github.com/bogem/id3v2"
)

// id3Frames maps field names to the ID3v2.4 frames that hold them.
var id3Frames = map[string]string{
	FieldTitle:       "TIT2",
	FieldArtist:      "TPE1",
	FieldAlbum:       "TALB",
	FieldAlbumArtist: "TPE2",
	FieldTrackNumber: "TRCK",
	"discnumber":     "TPOS",
	"genre":          "TCON",
	"date":           "TDRC",
	"composer":       "TCOM",
	"copyright":      "TCOP",
	"comment":        "COMM",
}

// ID3Writer writes ID3v2 tags to mp3 files.
type ID3Writer struct{}

func NewID3Writer() *ID3Writer {
	return &ID3Writer{}
}

func (w *ID3Writer) Write(_ context.Context, path string, fields Fields) Result {
	result := Result{Path: path}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		result.Skipped = fields.Keys()
		result.Err = fmt.Errorf("%w: open %s: %w", ErrTagging, path, err)
		return result
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	for _, key := range fields.Keys() {
		frameID, ok := id3Frames[key]
		if !ok {
			result.Skipped = append(result.Skipped, key)
			continue
		}

		value := fields[key]
		if frameID == "COMM" {
			tag.DeleteFrames(frameID)
			tag.AddCommentFrame(id3v2.CommentFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Text:     value,
			})
		} else {
			tag.AddTextFrame(frameID, id3v2.EncodingUTF8, value)
		}
		result.Written = append(result.Written, key)
	}

	if err := tag.Save(); err != nil {
		result.Err = fmt.Errorf("%w: save %s: %w", ErrTagging, path, err)
	}
	return result
}
