package processor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// recursivePattern is the only pattern form a recursive search accepts.
var recursivePattern = regexp.MustCompile(`^\*\.[^*?\[\]/\\]+$`)

// Options selects the files of a run.
type Options struct {
	// Files are literal paths, or a single "*.ext" pattern when Recursive.
	Files     []string
	Recursive bool
	// Root is where a recursive search starts; empty means ".".
	Root  string
	Split bool
}

// Discover returns the files selected by opts.
func Discover(opts Options) ([]string, error) {
	if !opts.Recursive {
		if len(opts.Files) == 0 {
			return nil, fmt.Errorf("%w: no input files", ErrUsage)
		}
		return opts.Files, nil
	}

	if len(opts.Files) != 1 || !recursivePattern.MatchString(opts.Files[0]) {
		return nil, fmt.Errorf("%w: recursive mode takes exactly one pattern of the form *.ext, got %q", ErrUsage, opts.Files)
	}
	pattern := opts.Files[0]

	root := opts.Root
	if root == "" {
		root = "."
	}

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: search root %s is not a directory", ErrUsage, root)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", root, err)
	}
	return files, nil
}
