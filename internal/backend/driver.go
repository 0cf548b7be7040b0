// Package backend implements the per-technology drivers behind the uniform
// project lifecycle: docker-compose stacks, systemd services, and plain
// script bundles. Drivers share the artifact selection and backup rotation
// policy in artifact.go.
package backend

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/logging"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// ProjectContext carries everything a driver call needs. It is passed
// explicitly into every operation so drivers hold no per-project state
// between calls.
type ProjectContext struct {
	// Record is the project's durable state.
	Record *project.Record

	// ManagedDir holds records, artifacts, and artifact backups.
	ManagedDir string

	// Logger is already scoped to the project.
	Logger *logging.Logger

	// Interactive permits prompting; when false, decisions that would
	// need a prompt fail instead.
	Interactive bool

	// Out receives human-facing output such as log streams.
	Out io.Writer
}

// LogOptions controls Driver.Logs.
type LogOptions struct {
	// Lines limits output to the most recent n lines. Zero means the
	// backend's default.
	Lines int

	// Follow keeps streaming until the context is cancelled.
	Follow bool
}

// Driver is the common surface every backend implements. Operations
// report failure through the error taxonomy: recoverable errors let a
// batch continue, fatal ones abort it.
type Driver interface {
	// Install converges the backend linkage for the project. It is
	// idempotent: correct existing artifacts and symlinks are left
	// untouched, only mismatches are repaired.
	Install(ctx context.Context, pc ProjectContext) error

	// Start brings the project's workload up.
	Start(ctx context.Context, pc ProjectContext) error

	// Stop brings the workload down. Container stacks are torn down
	// completely; service units stay enabled so they resume on reboot.
	Stop(ctx context.Context, pc ProjectContext) error

	// Restart cycles the workload.
	Restart(ctx context.Context, pc ProjectContext) error

	// Status reports the observed run state. It returns
	// errors.ErrNoStatusProbe when the backend has no way to tell.
	Status(ctx context.Context, pc ProjectContext) (confirm.State, error)

	// Uninstall stops the workload if needed and removes the backend
	// linkage.
	Uninstall(ctx context.Context, pc ProjectContext) error

	// Logs streams or tails the project's native logs to pc.Out.
	Logs(ctx context.Context, pc ProjectContext, opts LogOptions) error
}

// CommandRunner abstracts subprocess execution for testability.
type CommandRunner interface {
	// Run executes a command in dir and returns combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// RunStreaming executes a command with stdout and stderr attached to
	// out, for log streaming and other long-running foreground commands.
	RunStreaming(ctx context.Context, dir string, out io.Writer, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command in dir and returns combined output.
func (r *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunStreaming executes a command with output attached to out.
func (r *ExecRunner) RunStreaming(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

var _ CommandRunner = (*ExecRunner)(nil)

// toolError wraps a failed subprocess into a recoverable ExternalToolError
// carrying its captured output.
func toolError(message, tool, projectID string, output []byte, err error) error {
	return errors.NewExternalToolError(message, err).
		WithTool(tool).
		WithProject(projectID).
		WithOutput(string(output))
}
