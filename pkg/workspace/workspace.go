// Package workspace lays out a job directory for one trampolino invocation:
// a working directory per workflow node, node result envelopes, and logs.
package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Workspace struct {
	BaseDir string
	JobID   string
	JobDir  string
}

// GenerateJobID creates YYYYMMDD-HHMMSS-{4 hex bytes}
func GenerateJobID() string {
	now := time.Now()
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback: use nanoseconds if crypto/rand fails
		return fmt.Sprintf("%s-%08x", now.Format("20060102-150405"), now.UnixNano()&0xFFFFFFFF)
	}
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), hex.EncodeToString(b))
}

func New(baseDir string) (*Workspace, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	jobID := GenerateJobID()
	jobDir := filepath.Join(abs, "jobs", jobID)

	dirs := []string{
		filepath.Join(jobDir, "outputs"),
		filepath.Join(jobDir, "errors"),
		filepath.Join(jobDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return &Workspace{BaseDir: abs, JobID: jobID, JobDir: jobDir}, nil
}

// NodeDir creates and returns the working directory of a node.
func (w *Workspace) NodeDir(workflow, node string) (string, error) {
	dir := filepath.Join(w.JobDir, workflow, node)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create node dir: %w", err)
	}
	return dir, nil
}

func (w *Workspace) OutputPath(workflow, node string) string {
	return filepath.Join(w.JobDir, "outputs", workflow+"."+node+".json")
}

func (w *Workspace) LogPath(workflow, node string) string {
	return filepath.Join(w.JobDir, "logs", workflow+"."+node+".log")
}

func (w *Workspace) ErrorPath(workflow, node string) string {
	return filepath.Join(w.JobDir, "errors", workflow+"."+node+".txt")
}

// OpenLog creates the node's log file. The caller closes it.
func (w *Workspace) OpenLog(workflow, node string) (io.WriteCloser, string, error) {
	path := w.LogPath(workflow, node)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// WriteOutput stores a node's result as indented JSON.
func (w *Workspace) WriteOutput(workflow, node string, data any) (string, error) {
	path := w.OutputPath(workflow, node)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteError records a node failure message.
func (w *Workspace) WriteError(workflow, node, msg string) error {
	return os.WriteFile(w.ErrorPath(workflow, node), []byte(msg+"\n"), 0644)
}
