package engine

import (
	"context"
	"os/exec"
)

// Runner executes a prepared command. Tests substitute a fake that
// writes the expected outputs instead of calling MRtrix3.
type Runner interface {
	Run(ctx context.Context, cmd *exec.Cmd) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return cmd.Run()
}
