// Package deps reports which external executables are available.
package deps

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jaki95/audio-converter/internal/audio"
)

// Requirement defines an external executable a run relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a Requirement is met.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// CheckBinaries resolves every requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(req.Command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	return status
}

// CheckWritable reports whether new files can be created in dir.
func CheckWritable(dir string) Status {
	status := Status{Requirement: Requirement{
		Name:        "output directory",
		Command:     dir,
		Description: "receives converted files",
	}}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("directory %q is not writable: %v", dir, err)
		return status
	}
	status.Available = true
	return status
}

// Missing returns the required dependencies that are not available.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// All lists every executable the converter can use.
func All(tools audio.Tools) []Requirement {
	tools = tools.WithDefaults()
	return []Requirement{
		{Name: "flac", Command: tools.Flac, Description: "decodes .flac sources"},
		{Name: "mac", Command: tools.Mac, Description: "decodes .ape sources"},
		{Name: "wvunpack", Command: tools.WvUnpack, Description: "decodes .wv sources"},
		{Name: "mplayer", Command: tools.MPlayer, Description: "decodes .m4a sources"},
		{Name: "oggenc", Command: tools.OggEnc, Description: "encodes ogg output"},
		{Name: "lame", Command: tools.Lame, Description: "encodes mp3 output"},
		{Name: "cuebreakpoints", Command: tools.CueBreakpoints, Description: "reads cue breakpoints for --split"},
		{Name: "shnsplit", Command: tools.ShnSplit, Description: "cuts audio for --split"},
		{Name: "vorbiscomment", Command: tools.VorbisComment, Description: "writes ogg tags", Optional: true},
	}
}

// ForRun lists the executables every job of a run needs: the encoder and,
// when splitting, the split tools. Tag writing is optional: a missing
// vorbiscomment only leaves ogg output untagged.
func ForRun(tools audio.Tools, encoder audio.Encoder, split bool) []Requirement {
	tools = tools.WithDefaults()

	reqs := []Requirement{
		{Name: filepath.Base(encoder.Tool), Command: encoder.Tool, Description: "encodes " + encoder.Name + " output"},
	}
	if split {
		reqs = append(reqs,
			Requirement{Name: "cuebreakpoints", Command: tools.CueBreakpoints, Description: "reads cue breakpoints"},
			Requirement{Name: "shnsplit", Command: tools.ShnSplit, Description: "cuts audio at breakpoints"},
		)
	}
	if encoder.Name == audio.EncoderOgg {
		reqs = append(reqs, Requirement{Name: "vorbiscomment", Command: tools.VorbisComment, Description: "writes ogg tags", Optional: true})
	}
	return reqs
}

// ForFormat returns the decoder sources of format need. Pass-through
// formats need none.
func ForFormat(format audio.Format) (Requirement, bool) {
	if format.PassThrough() {
		return Requirement{}, false
	}
	return Requirement{
		Name:        filepath.Base(format.Tool),
		Command:     format.Tool,
		Description: "decodes " + format.Extension + " sources",
	}, true
}
