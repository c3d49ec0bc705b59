// Package lock provides file-based locking so two trampolino runs never
// write into the same results directory at once.
package lock

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"

	"trampolino/pkg/colors"
)

// Lock timing constants
const (
	lockTimeout      = 5 * time.Minute // Maximum time to wait for lock
	lockPollInterval = 5 * time.Second // How often to check if lock is available
	maxIdentifierLen = 100             // Maximum length for lock identifier
)

// Options tunes Acquire. The zero value waits up to five minutes and
// prints nothing.
type Options struct {
	Dir          string // lock directory, default ~/.trampolino/locks
	Timeout      time.Duration
	PollInterval time.Duration
	Out          io.Writer
}

func (o Options) withDefaults() (Options, error) {
	if o.Dir == "" {
		dir, err := getLockDir()
		if err != nil {
			return o, err
		}
		o.Dir = dir
	}
	if o.Timeout <= 0 {
		o.Timeout = lockTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = lockPollInterval
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	return o, nil
}

// sanitizeIdentifier cleans the identifier for safe use in file
func sanitizeIdentifier(id string) string {
	if id == "" {
		return "unknown"
	}
	result := strings.Map(func(r rune) rune {
		if r < 32 {
			return '_'
		}
		return r
	}, id)
	if len(result) > maxIdentifierLen {
		result = result[:maxIdentifierLen]
	}
	return result
}

// FileLock represents a held lock on one results directory.
type FileLock struct {
	file *os.File
	path string
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// getLockDir returns the lock directory path (~/.trampolino/locks/)
func getLockDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".trampolino", "locks"), nil
}

// lockName derives a stable file name for a results directory.
func lockName(resultsDir string) string {
	if abs, err := filepath.Abs(resultsDir); err == nil {
		resultsDir = abs
	}
	return fmt.Sprintf("trampolino-%016x.lock", xxhash.Sum64String(filepath.Clean(resultsDir)))
}

// Acquire takes the lock for resultsDir, waiting while another run holds
// it. With useLock false it returns a nil lock, which is safe to Release.
func Acquire(resultsDir string, useLock bool, opts Options) (*FileLock, error) {
	if !useLock {
		return nil, nil
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create lock directory %s: %w", opts.Dir, err)
	}

	lockPath := filepath.Join(opts.Dir, lockName(resultsDir))
	lockInfoPath := lockPath + ".info"
	identifier := sanitizeIdentifier(fmt.Sprintf("pid %d on %s", os.Getpid(), resultsDir))

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open lock file %s: %w", lockPath, err)
	}

	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		holder := "unknown"
		if data, err := os.ReadFile(lockInfoPath); err == nil {
			holder = strings.TrimSpace(string(data))
		}

		startWait := time.Now()
		fmt.Fprintf(opts.Out, "%sWaiting for %s%s%s%s to finish...%s\n", colors.Dim, colors.Cyan, holder, colors.Reset, colors.Dim, colors.Reset)

		for {
			if time.Since(startWait) > opts.Timeout {
				lockFile.Close()
				return nil, fmt.Errorf("timed out waiting for lock on %s after %v (held by %s)", resultsDir, opts.Timeout, holder)
			}
			time.Sleep(opts.PollInterval)
			err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
			if err == nil {
				break
			}
			elapsed := int(time.Since(startWait).Seconds())
			if data, err := os.ReadFile(lockInfoPath); err == nil {
				holder = strings.TrimSpace(string(data))
			}
			fmt.Fprintf(opts.Out, "%s  Still waiting for %s%s%s%s... %ds%s\n", colors.Dim, colors.Cyan, holder, colors.Reset, colors.Dim, elapsed, colors.Reset)
		}
		elapsed := int(time.Since(startWait).Seconds())
		fmt.Fprintf(opts.Out, "%sLock acquired%s %s(waited %ds for %s)%s\n", colors.Green, colors.Reset, colors.Dim, elapsed, holder, colors.Reset)
	} else {
		fmt.Fprintf(opts.Out, "%sLock acquired%s\n", colors.Dim, colors.Reset)
	}

	if err := os.WriteFile(lockInfoPath, []byte(identifier), 0600); err != nil {
		fmt.Fprintf(opts.Out, "%sWarning: could not write lock info: %v%s\n", colors.Dim, err, colors.Reset)
	}

	return &FileLock{file: lockFile, path: lockPath}, nil
}

// Release releases the file lock
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock: %w", unlockErr)
	}
	return closeErr
}
