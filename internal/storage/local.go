package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStorage leaves outputs where they were written, or copies them
// into outputDir keeping their path relative to baseDir.
type LocalFileStorage struct {
	outputDir string
	baseDir   string
}

// NewLocalFileStorage creates a new local file storage instance. An empty
// outputDir publishes files in place.
func NewLocalFileStorage(outputDir, baseDir string) (*LocalFileStorage, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", outputDir, err)
		}
	}

	return &LocalFileStorage{
		outputDir: outputDir,
		baseDir:   baseDir,
	}, nil
}

func (s *LocalFileStorage) Publish(_ context.Context, localPath string) (string, error) {
	if s.outputDir == "" {
		return localPath, nil
	}

	dst := filepath.Join(s.outputDir, filepath.FromSlash(relativeName(s.baseDir, localPath)))
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dst), err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return dst, nil
}

func (s *LocalFileStorage) Close() error {
	return nil
}

// relativeName returns path relative to baseDir in slash form, or its base
// name when it lies outside baseDir.
func relativeName(baseDir, path string) string {
	if baseDir != "" {
		absBase, errBase := filepath.Abs(baseDir)
		absPath, errPath := filepath.Abs(path)
		if errBase == nil && errPath == nil {
			if rel, err := filepath.Rel(absBase, absPath); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(path)
}
