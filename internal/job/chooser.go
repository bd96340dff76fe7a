package job

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// DisambiguationSuffix is appended to an output base name, repeatedly,
// until the name is free.
const DisambiguationSuffix = "_encoded_"

// OutputPathChooser picks output paths that never collide with an existing
// file or with a path it handed out before. Selection in one directory is
// serialized within the process by a mutex and across processes by a lock
// file kept in the temporary directory.
type OutputPathChooser struct {
	mu      sync.Mutex
	dirs    map[string]*sync.Mutex
	lockDir string
}

func NewOutputPathChooser() *OutputPathChooser {
	return &OutputPathChooser{
		dirs:    make(map[string]*sync.Mutex),
		lockDir: os.TempDir(),
	}
}

// Choose returns <dir>/<base><ext>, adding DisambiguationSuffix to base
// while that name is taken. The returned path is created empty so that no
// later call, in this process or another, can return it again.
func (c *OutputPathChooser) Choose(dir, base, ext string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}

	unlock, err := c.lock(absDir)
	if err != nil {
		return "", err
	}
	defer unlock()

	name := base
	for {
		path := filepath.Join(dir, name+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("failed to reserve %s: %w", path, err)
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrNoOutputPath, path, err)
		}
		name += DisambiguationSuffix
	}
}

func (c *OutputPathChooser) lock(absDir string) (func(), error) {
	c.mu.Lock()
	dirMu, ok := c.dirs[absDir]
	if !ok {
		dirMu = &sync.Mutex{}
		c.dirs[absDir] = dirMu
	}
	c.mu.Unlock()

	dirMu.Lock()

	sum := sha256.Sum256([]byte(absDir))
	fileLock := flock.New(filepath.Join(c.lockDir, "audio-converter-"+hex.EncodeToString(sum[:8])+".lock"))
	if err := fileLock.Lock(); err != nil {
		dirMu.Unlock()
		return nil, fmt.Errorf("failed to lock output directory %s: %w", absDir, err)
	}

	return func() {
		_ = fileLock.Unlock()
		dirMu.Unlock()
	}, nil
}
