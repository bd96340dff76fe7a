// Package audio wraps the external decode, encode and split executables
// behind small data-driven adapters. Each adapter fixes the argument shape
// of its tool; only the executable name is configurable.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

var (
	ErrExternalTool = errors.New("external tool failed")
	ErrFileNotFound = errors.New("file not found")
	ErrFileEmpty    = errors.New("file is empty")
	ErrInvalidPath  = errors.New("invalid path")
)

// ToolError reports a non-zero exit (or a failed start) of an external tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Command  string
	Output   string
	wrapped  error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed with exit code %d: %s\nCommand: %s", e.Tool, e.ExitCode, e.wrapped, e.Command)
	if e.Output != "" {
		msg += "\nOutput: " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.wrapped
}

func (e *ToolError) Is(target error) bool {
	return target == ErrExternalTool
}

// newToolError creates a ToolError with truncated command and output.
func newToolError(tool string, cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	out := strings.TrimSpace(string(output))
	if len(out) > 2000 {
		out = "..." + out[len(out)-2000:]
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &ToolError{
		Tool:     tool,
		ExitCode: exitCode,
		Command:  cmdStr,
		Output:   out,
		wrapped:  err,
	}
}

// RunTool executes name with args and returns a ToolError on failure.
func RunTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	slog.Debug("Running tool", "tool", name, "args", args)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newToolError(name, cmd, output, err)
	}
	return nil
}

func validateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("unable to access file: %s: %w", path, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrFileEmpty, path)
	}

	return nil
}

// RemoveIfEmpty deletes path when it exists and holds no data, leaving any
// partial output a failed tool wrote in place.
func RemoveIfEmpty(path string) {
	info, err := os.Stat(path)
	if err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		_ = os.Remove(path)
	}
}
