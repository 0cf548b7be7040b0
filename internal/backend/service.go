package backend

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
)

// unitExt is the managed artifact extension for service projects.
const unitExt = ".service"

// ServiceDriver manages systemd service units. The managed artifact is
// the unit file (or a link to one in the source tree); enablement goes
// through systemctl so systemd owns the wants-links.
type ServiceDriver struct {
	runner     CommandRunner
	systemctl  string
	journalctl string
	policy     artifactPolicy
}

// NewServiceDriver creates a service driver.
func NewServiceDriver(runner CommandRunner, managedDir, systemctl, journalctl string) *ServiceDriver {
	return &ServiceDriver{
		runner:     runner,
		systemctl:  systemctl,
		journalctl: journalctl,
		policy: artifactPolicy{
			managedDir: managedDir,
			ext:        unitExt,
		},
	}
}

// unitName returns the systemd unit name for a project.
func unitName(id string) string {
	return id + unitExt
}

func (d *ServiceDriver) systemctlRun(ctx context.Context, pc ProjectContext, args ...string) ([]byte, error) {
	return d.runner.Run(ctx, "", d.systemctl, args...)
}

// Install resolves the unit file, links it into systemd, and enables the
// unit. Repeated calls converge: an already linked and enabled unit is
// left alone.
func (d *ServiceDriver) Install(ctx context.Context, pc ProjectContext) error {
	artifact, err := d.policy.resolve(pc, []string{
		unitName(pc.Record.ID),
		"systemd" + unitExt,
	}, nil)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(artifact)
	if err != nil {
		return errors.Wrap(err, "resolving unit path")
	}
	if output, err := d.systemctlRun(ctx, pc, "link", "--force", abs); err != nil {
		return toolError("failed to link unit", "systemctl", pc.Record.ID, output, err)
	}
	if output, err := d.systemctlRun(ctx, pc, "daemon-reload"); err != nil {
		return toolError("failed to reload units", "systemctl", pc.Record.ID, output, err)
	}
	if output, err := d.systemctlRun(ctx, pc, "enable", unitName(pc.Record.ID)); err != nil {
		return toolError("failed to enable unit", "systemctl", pc.Record.ID, output, err)
	}
	return nil
}

// Start starts the unit.
func (d *ServiceDriver) Start(ctx context.Context, pc ProjectContext) error {
	output, err := d.systemctlRun(ctx, pc, "start", unitName(pc.Record.ID))
	if err != nil {
		return toolError("failed to start unit", "systemctl", pc.Record.ID, output, err)
	}
	return nil
}

// Stop stops the unit but leaves it enabled, so it resumes on the next
// boot. That asymmetry with the container driver is deliberate.
func (d *ServiceDriver) Stop(ctx context.Context, pc ProjectContext) error {
	output, err := d.systemctlRun(ctx, pc, "stop", unitName(pc.Record.ID))
	if err != nil {
		return toolError("failed to stop unit", "systemctl", pc.Record.ID, output, err)
	}
	return nil
}

// Restart restarts the unit.
func (d *ServiceDriver) Restart(ctx context.Context, pc ProjectContext) error {
	output, err := d.systemctlRun(ctx, pc, "restart", unitName(pc.Record.ID))
	if err != nil {
		return toolError("failed to restart unit", "systemctl", pc.Record.ID, output, err)
	}
	return nil
}

// Status maps systemctl is-active onto the tri-state. is-active exits
// nonzero for anything but "active", so the output decides, not the exit
// code.
func (d *ServiceDriver) Status(ctx context.Context, pc ProjectContext) (confirm.State, error) {
	if _, ok := d.policy.locate(pc.Record.ID); !ok {
		return confirm.StateUnknown, nil
	}
	output, _ := d.systemctlRun(ctx, pc, "is-active", unitName(pc.Record.ID))
	switch strings.TrimSpace(string(output)) {
	case "active", "activating", "reloading":
		return confirm.StateRunning, nil
	case "inactive", "failed", "deactivating":
		return confirm.StateStopped, nil
	default:
		return confirm.StateUnknown, nil
	}
}

// Uninstall stops the unit if running, disables it (which also drops the
// link systemctl link created), reloads, and removes the managed artifact.
func (d *ServiceDriver) Uninstall(ctx context.Context, pc ProjectContext) error {
	if _, ok := d.policy.locate(pc.Record.ID); !ok {
		return nil
	}

	if state, err := d.Status(ctx, pc); err == nil && state == confirm.StateRunning {
		if err := d.Stop(ctx, pc); err != nil {
			return err
		}
	}

	if output, err := d.systemctlRun(ctx, pc, "disable", unitName(pc.Record.ID)); err != nil {
		return toolError("failed to disable unit", "systemctl", pc.Record.ID, output, err)
	}
	if output, err := d.systemctlRun(ctx, pc, "daemon-reload"); err != nil {
		return toolError("failed to reload units", "systemctl", pc.Record.ID, output, err)
	}
	return d.policy.remove(pc.Record.ID)
}

// Logs delegates to journalctl.
func (d *ServiceDriver) Logs(ctx context.Context, pc ProjectContext, opts LogOptions) error {
	args := []string{"-u", unitName(pc.Record.ID), "--no-pager"}
	if opts.Lines > 0 {
		args = append(args, "-n", strconv.Itoa(opts.Lines))
	}
	if opts.Follow {
		args = append(args, "-f")
	}
	if err := d.runner.RunStreaming(ctx, "", pc.Out, d.journalctl, args...); err != nil {
		return toolError("failed to read journal", "journalctl", pc.Record.ID, nil, err)
	}
	return nil
}

var _ Driver = (*ServiceDriver)(nil)

// UnitFileExists reports whether a plausible unit file is present in the
// project path, for pre-add validation.
func UnitFileExists(path, id string) bool {
	for _, name := range []string{unitName(id), "systemd" + unitExt} {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			return true
		}
	}
	return false
}
