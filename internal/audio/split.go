package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// SplitTool cuts an intermediate file at the breakpoints of a cue sheet by
// piping cuebreakpoints into shnsplit.
type SplitTool struct {
	CueBreakpoints string
	ShnSplit       string
}

// NewSplitTool returns the split tool configured in tools.
func NewSplitTool(tools Tools) SplitTool {
	tools = tools.WithDefaults()
	return SplitTool{
		CueBreakpoints: tools.CueBreakpoints,
		ShnSplit:       tools.ShnSplit,
	}
}

// Split writes one fragment per track into dir, named <prefix><nn>.wav.
func (s SplitTool) Split(ctx context.Context, cuePath, wavPath, dir, prefix string) error {
	slog.Debug("Splitting audio", "cue", cuePath, "input", wavPath, "dir", dir, "prefix", prefix)

	breakpoints := exec.CommandContext(ctx, s.CueBreakpoints, cuePath)
	var bpOutput bytes.Buffer
	breakpoints.Stderr = &bpOutput

	pipe, err := breakpoints.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open breakpoints pipe: %w", err)
	}

	split := exec.CommandContext(ctx, s.ShnSplit, "-d", dir, "-a", prefix, "-o", "wav", wavPath)
	split.Stdin = pipe
	var splitOutput bytes.Buffer
	split.Stdout = &splitOutput
	split.Stderr = &splitOutput

	if err := breakpoints.Start(); err != nil {
		return newToolError(s.CueBreakpoints, breakpoints, bpOutput.Bytes(), err)
	}

	splitErr := split.Run()
	bpErr := breakpoints.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if splitErr != nil {
		return newToolError(s.ShnSplit, split, splitOutput.Bytes(), splitErr)
	}
	if bpErr != nil {
		return newToolError(s.CueBreakpoints, breakpoints, bpOutput.Bytes(), bpErr)
	}
	return nil
}
