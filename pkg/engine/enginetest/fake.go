// Package enginetest provides a fake Runner that stands in for the MRtrix3
// binaries in tests.
package enginetest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FakeRunner records every command and creates each file-like argument that
// does not exist yet, which is enough to satisfy output checks.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Call

	// Fail makes the named binary return the given error.
	Fail map[string]error
	// Hook, when set, runs after files are created.
	Hook func(ctx context.Context, cmd *exec.Cmd) error
}

// Call is one recorded invocation.
type Call struct {
	Binary string
	Args   []string
	Dir    string
}

func (f *FakeRunner) Run(ctx context.Context, cmd *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bin := filepath.Base(cmd.Path)
	f.mu.Lock()
	f.calls = append(f.calls, Call{Binary: bin, Args: append([]string(nil), cmd.Args[1:]...), Dir: cmd.Dir})
	failErr := f.Fail[bin]
	f.mu.Unlock()
	if failErr != nil {
		return failErr
	}

	for _, arg := range cmd.Args[1:] {
		if !fileLike(arg) {
			continue
		}
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(cmd.Dir, path)
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(bin+"\n"), 0644); err != nil {
			return err
		}
	}
	if f.Hook != nil {
		return f.Hook(ctx, cmd)
	}
	return nil
}

// Calls returns the recorded invocations in call order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Binaries returns the binary names in call order.
func (f *FakeRunner) Binaries() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Binary)
	}
	return out
}

// Find returns the first call of bin.
func (f *FakeRunner) Find(bin string) (Call, bool) {
	for _, c := range f.Calls() {
		if c.Binary == bin {
			return c, true
		}
	}
	return Call{}, false
}

// fileLike reports whether arg names a file: not an option, not a number,
// and carrying an extension.
func fileLike(arg string) bool {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return false
	}
	if _, err := strconv.ParseFloat(arg, 64); err == nil {
		return false
	}
	return filepath.Ext(arg) != ""
}
