package job

import "errors"

var (
	ErrInvalidState = errors.New("invalid job state")
	ErrNoOutputPath = errors.New("no free output path")
)
