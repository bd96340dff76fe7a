package tagging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jaki95/audio-converter/internal/audio"
)

// VorbisWriter writes Vorbis comments to ogg files through vorbiscomment.
type VorbisWriter struct {
	tool string
}

func NewVorbisWriter(tool string) *VorbisWriter {
	if tool == "" {
		tool = audio.DefaultTools().VorbisComment
	}
	return &VorbisWriter{tool: tool}
}

func (w *VorbisWriter) Write(ctx context.Context, path string, fields Fields) Result {
	result := Result{Path: path}

	var comments strings.Builder
	for _, key := range fields.Keys() {
		if !validVorbisKey(key) {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		fmt.Fprintf(&comments, "%s=%s\n", strings.ToUpper(key), escapeVorbisValue(fields[key]))
		result.Written = append(result.Written, key)
	}

	commentFile, err := os.CreateTemp("", "vorbiscomment_*.txt")
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrTagging, err)
		return result
	}
	defer os.Remove(commentFile.Name())

	_, err = commentFile.WriteString(comments.String())
	if closeErr := commentFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrTagging, err)
		return result
	}

	if err := audio.RunTool(ctx, w.tool, "-w", "-R", "-e", "-c", commentFile.Name(), path); err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrTagging, err)
	}
	return result
}

// validVorbisKey reports whether key only uses the characters the Vorbis
// comment format allows in field names.
func validVorbisKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < 0x20 || r > 0x7D || r == '=' {
			return false
		}
	}
	return true
}

// escapeVorbisValue applies the escapes vorbiscomment -e understands.
func escapeVorbisValue(value string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\x00", `\0`).Replace(value)
}
