package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jaki95/audio-converter/internal/processor"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	code := exitCode(err)
	if err != nil && code != exitCancelled {
		fmt.Fprintln(stderr, err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, processor.ErrUsage):
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailure
	}
}
