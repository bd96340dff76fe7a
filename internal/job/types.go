package job

import (
	"runtime"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/domain"
	"github.com/jaki95/audio-converter/internal/tagging"
)

// State is the position of a Job in its pipeline.
type State int

const (
	StatePending State = iota
	StateExtracted
	StateEncoded
	StateTagged
	StateCleanedUp
	StateFailed
)

var stateNames = map[State]string{
	StatePending:   "pending",
	StateExtracted: "extracted",
	StateEncoded:   "encoded",
	StateTagged:    "tagged",
	StateCleanedUp: "cleaned_up",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateCleanedUp || s == StateFailed
}

// Job converts one source file, or one split fragment of it, into a single
// encoded and tagged output. A Job is executed by exactly one worker and is
// never retried.
type Job struct {
	ID string

	// SourcePath names the output: the output is written next to it with
	// the encoder's extension.
	SourcePath string
	// TagSource is the file whose tags are copied onto the output.
	TagSource string

	Format   audio.Format
	Encoder  audio.Encoder
	Quality  float64
	Metadata domain.Metadata

	// IntermediatePath is set by extraction, or up front for fragments.
	IntermediatePath string
	OwnsIntermediate bool
	// OutputPath is chosen lazily once the audio has been extracted.
	OutputPath string

	State     State
	Err       error
	TagResult tagging.Result
}

// Constants for worker configuration
const (
	MaxAllowedWorkers = 64
)

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// ValidateWorkers returns a usable pool size for n: non-positive values
// fall back to DefaultWorkers and large values are capped.
func ValidateWorkers(n int) int {
	if n <= 0 {
		n = DefaultWorkers()
	}
	if n > MaxAllowedWorkers {
		return MaxAllowedWorkers
	}
	return n
}
