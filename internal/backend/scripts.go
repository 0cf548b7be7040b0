package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
)

// scriptLogFile is the conventional log file tailed when a project ships
// no logs script.
const scriptLogFile = "project.log"

// ScriptsDriver manages plain script bundles: project-supplied executables
// named setup, start, stop, restart, status, logs, uninstall, and update,
// invoked without arguments and judged solely by exit code.
type ScriptsDriver struct {
	runner CommandRunner
}

// NewScriptsDriver creates a scripts driver.
func NewScriptsDriver(runner CommandRunner) *ScriptsDriver {
	return &ScriptsDriver{runner: runner}
}

// FindScript locates an executable project script by name, accepting both
// bare and .sh-suffixed files.
func FindScript(dir, name string) (string, bool) {
	for _, candidate := range []string{name, name + ".sh"} {
		path := filepath.Join(dir, candidate)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o111 != 0 {
			return path, true
		}
	}
	return "", false
}

func (d *ScriptsDriver) runScript(ctx context.Context, pc ProjectContext, name string) (bool, error) {
	script, ok := FindScript(pc.Record.Path, name)
	if !ok {
		return false, nil
	}
	output, err := d.runner.Run(ctx, pc.Record.Path, script)
	if err != nil {
		return true, toolError("script "+name+" failed", name, pc.Record.ID, output, err)
	}
	return true, nil
}

// Install runs the project's setup script when one exists. A bundle
// without one has nothing to install.
func (d *ScriptsDriver) Install(ctx context.Context, pc ProjectContext) error {
	_, err := d.runScript(ctx, pc, "setup")
	return err
}

// Start runs the start script.
func (d *ScriptsDriver) Start(ctx context.Context, pc ProjectContext) error {
	ran, err := d.runScript(ctx, pc, "start")
	if err != nil {
		return err
	}
	if !ran {
		return errors.NewNotFoundError("start script for project", pc.Record.ID)
	}
	return nil
}

// Stop runs the stop script.
func (d *ScriptsDriver) Stop(ctx context.Context, pc ProjectContext) error {
	ran, err := d.runScript(ctx, pc, "stop")
	if err != nil {
		return err
	}
	if !ran {
		return errors.NewNotFoundError("stop script for project", pc.Record.ID)
	}
	return nil
}

// Restart runs the restart script, falling back to stop followed by start.
func (d *ScriptsDriver) Restart(ctx context.Context, pc ProjectContext) error {
	ran, err := d.runScript(ctx, pc, "restart")
	if err != nil {
		return err
	}
	if ran {
		return nil
	}
	if err := d.Stop(ctx, pc); err != nil {
		return err
	}
	return d.Start(ctx, pc)
}

// exitCoder matches exec.ExitError and test doubles.
type exitCoder interface {
	ExitCode() int
}

// Status runs the project's status script. Exit 0 means running, any
// other exit code means stopped. Without a status script the state is
// genuinely unknowable.
func (d *ScriptsDriver) Status(ctx context.Context, pc ProjectContext) (confirm.State, error) {
	script, ok := FindScript(pc.Record.Path, "status")
	if !ok {
		return confirm.StateUnknown, errors.ErrNoStatusProbe
	}
	_, err := d.runner.Run(ctx, pc.Record.Path, script)
	if err == nil {
		return confirm.StateRunning, nil
	}
	var exit exitCoder
	if errors.As(err, &exit) && exit.ExitCode() > 0 {
		return confirm.StateStopped, nil
	}
	return confirm.StateUnknown, toolError("status script failed", "status", pc.Record.ID, nil, err)
}

// Uninstall stops the project if it reports running, then runs the
// uninstall script when one exists.
func (d *ScriptsDriver) Uninstall(ctx context.Context, pc ProjectContext) error {
	if state, err := d.Status(ctx, pc); err == nil && state == confirm.StateRunning {
		if err := d.Stop(ctx, pc); err != nil {
			return err
		}
	}
	_, err := d.runScript(ctx, pc, "uninstall")
	return err
}

// Logs runs the project's logs script when present, otherwise it tails the
// conventional project.log file, following it with a filesystem watcher.
func (d *ScriptsDriver) Logs(ctx context.Context, pc ProjectContext, opts LogOptions) error {
	if script, ok := FindScript(pc.Record.Path, "logs"); ok {
		if err := d.runner.RunStreaming(ctx, pc.Record.Path, pc.Out, script); err != nil {
			return toolError("logs script failed", "logs", pc.Record.ID, nil, err)
		}
		return nil
	}

	logPath := filepath.Join(pc.Record.Path, scriptLogFile)
	offset, err := tailFile(logPath, opts.Lines, pc.Out)
	if err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}
	return followFile(ctx, logPath, offset, pc.Out)
}

var _ Driver = (*ScriptsDriver)(nil)

// tailFile writes the last n lines of path to out (all lines when n <= 0)
// and returns the end-of-file offset for follow mode.
func tailFile(path string, n int, out io.Writer) (int64, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, errors.NewNotFoundError("log file", path)
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading log file")
	}

	text := strings.TrimRight(string(data), "\n")
	if text != "" {
		lines := strings.Split(text, "\n")
		if n > 0 && len(lines) > n {
			lines = lines[len(lines)-n:]
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
	return int64(len(data)), nil
}

// followFile streams appended data from offset until ctx is done. A
// truncated file restarts from the beginning.
func followFile(ctx context.Context, path string, offset int64, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating log watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return errors.Wrap(err, "watching log file")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			if info, err := f.Stat(); err == nil && info.Size() < offset {
				offset = 0
			}
			if _, err := f.Seek(offset, io.SeekStart); err == nil {
				n, _ := io.Copy(out, f)
				offset += n
			}
			f.Close()
		case <-watcher.Errors:
		}
	}
}
