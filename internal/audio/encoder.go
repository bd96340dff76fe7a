package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrUnknownEncoder = errors.New("unknown encoder")
	ErrInvalidQuality = errors.New("invalid quality")
)

const (
	EncoderOgg = "ogg"
	EncoderMP3 = "mp3"
)

type encodeFunc func(ctx context.Context, tool, in, out string, quality float64) error

// Encoder describes one supported output encoder. Quality scales are
// encoder specific: oggenc takes a perceptual -q level, lame a bitrate.
type Encoder struct {
	Name           string
	Extension      string
	Tool           string
	DefaultQuality float64
	MinQuality     float64
	MaxQuality     float64
	encode         encodeFunc
}

// EncoderNames lists the supported encoder names.
func EncoderNames() []string {
	return []string{EncoderOgg, EncoderMP3}
}

// NewEncoder returns the encoder registered under name.
func NewEncoder(name string, tools Tools) (Encoder, error) {
	tools = tools.WithDefaults()
	switch name {
	case EncoderOgg:
		return Encoder{
			Name:           EncoderOgg,
			Extension:      ".ogg",
			Tool:           tools.OggEnc,
			DefaultQuality: 8,
			MinQuality:     -1,
			MaxQuality:     10,
			encode:         encodeOgg,
		}, nil
	case EncoderMP3:
		return Encoder{
			Name:           EncoderMP3,
			Extension:      ".mp3",
			Tool:           tools.Lame,
			DefaultQuality: 320,
			MinQuality:     8,
			MaxQuality:     320,
			encode:         encodeMP3,
		}, nil
	default:
		return Encoder{}, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownEncoder, name, EncoderNames())
	}
}

// ValidateQuality checks that quality lies on the encoder's scale. The mp3
// scale is a bitrate in whole kbit/s.
func (e Encoder) ValidateQuality(quality float64) error {
	if quality < e.MinQuality || quality > e.MaxQuality {
		return fmt.Errorf("%w: %s expects %g..%g, got %g", ErrInvalidQuality, e.Name, e.MinQuality, e.MaxQuality, quality)
	}
	if e.Name == EncoderMP3 && quality != math.Trunc(quality) {
		return fmt.Errorf("%w: %s expects a whole bitrate, got %g", ErrInvalidQuality, e.Name, quality)
	}
	return nil
}

// Encode converts the intermediate file in to out.
func (e Encoder) Encode(ctx context.Context, in, out string, quality float64) error {
	if err := validateFile(in); err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	return e.encode(ctx, e.Tool, in, out, quality)
}

func encodeOgg(ctx context.Context, tool, in, out string, quality float64) error {
	return RunTool(ctx, tool, "-q", strconv.FormatFloat(quality, 'f', -1, 64), "-o", out, in)
}

func encodeMP3(ctx context.Context, tool, in, out string, quality float64) error {
	return RunTool(ctx, tool, "-b", strconv.Itoa(int(quality)), in, out)
}
