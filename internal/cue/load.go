package cue

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/jaki95/audio-converter/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads and parses the cue sheet at path. Sheets that are not valid
// UTF-8 are decoded as Windows-1252, the encoding most rippers emit.
func Load(path string) (*domain.CueSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cue sheet: %w", err)
	}

	text, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cue sheet %s: %w", path, err)
	}

	sheet, err := Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
