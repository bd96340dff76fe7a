package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IntermediateExtension is the extension of the uncompressed audio every
// encoder accepts as input.
const IntermediateExtension = ".wav"

// ErrIntermediateExists reports that the intermediate path of a source is
// already taken by a file the extraction did not create.
var ErrIntermediateExists = errors.New("intermediate file already exists")

type extractFunc func(ctx context.Context, tool, src, dst string) error

// Format is the capability record of one supported source file type.
type Format struct {
	Name      string
	Extension string
	Tool      string
	extract   extractFunc
}

// PassThrough reports whether the format is already uncompressed, in which
// case the source itself serves as the intermediate and must never be deleted.
func (f Format) PassThrough() bool {
	return f.extract == nil
}

// IntermediatePath maps a source path to its intermediate file path.
func (f Format) IntermediatePath(src string) string {
	if f.PassThrough() {
		return src
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + IntermediateExtension
}

// Extract decodes src into its intermediate file and returns its path.
// Pass-through formats return src without invoking any process.
//
// The intermediate path is claimed with O_EXCL before the decoder runs, so
// an existing file of that name, such as a wav source next to src or the
// intermediate of another job, is never overwritten.
func (f Format) Extract(ctx context.Context, src string) (string, error) {
	if err := validateFile(src); err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	if f.PassThrough() {
		return src, nil
	}

	dst := f.IntermediatePath(src)
	if err := reserve(dst); err != nil {
		return "", err
	}
	if err := f.extract(ctx, f.Tool, src, dst); err != nil {
		RemoveIfEmpty(dst)
		return "", err
	}
	if err := validateFile(dst); err != nil {
		RemoveIfEmpty(dst)
		return "", fmt.Errorf("%s produced no usable output: %w", f.Tool, err)
	}
	return dst, nil
}

func reserve(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrIntermediateExists, path)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return file.Close()
}

// Decoders overwrite the empty file reserved for them.
func extractFlac(ctx context.Context, tool, src, dst string) error {
	return RunTool(ctx, tool, "-d", "-f", "-o", dst, src)
}

func extractApe(ctx context.Context, tool, src, dst string) error {
	return RunTool(ctx, tool, src, dst, "-d")
}

func extractWavPack(ctx context.Context, tool, src, dst string) error {
	return RunTool(ctx, tool, "-y", src, "-o", dst)
}

func extractM4A(ctx context.Context, tool, src, dst string) error {
	return RunTool(ctx, tool, "-vo", "none", src, "-ao", "pcm:file="+escapeMPlayerPath(dst))
}

// escapeMPlayerPath escapes commas, which mplayer treats as suboption
// separators inside -ao arguments.
func escapeMPlayerPath(path string) string {
	return strings.ReplaceAll(path, ",", `\,`)
}

// Registry maps lower-cased file extensions to their Format. It is built
// once and never modified.
type Registry struct {
	formats map[string]Format
}

// NewRegistry builds the registry of every supported source format.
func NewRegistry(tools Tools) *Registry {
	tools = tools.WithDefaults()
	formats := []Format{
		{Name: "flac", Extension: ".flac", Tool: tools.Flac, extract: extractFlac},
		{Name: "ape", Extension: ".ape", Tool: tools.Mac, extract: extractApe},
		{Name: "wavpack", Extension: ".wv", Tool: tools.WvUnpack, extract: extractWavPack},
		{Name: "m4a", Extension: ".m4a", Tool: tools.MPlayer, extract: extractM4A},
		{Name: "wav", Extension: ".wav"},
	}

	r := &Registry{formats: make(map[string]Format, len(formats))}
	for _, f := range formats {
		r.formats[f.Extension] = f
	}
	return r
}

// Lookup returns the Format responsible for path, by extension.
func (r *Registry) Lookup(path string) (Format, bool) {
	f, ok := r.formats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Extensions returns the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
