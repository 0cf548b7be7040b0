package orchestrator

import (
	"context"
	"fmt"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// Enable installs the project's backend linkage and marks it enabled. An
// install failure rolls the record back to disabled and aborts. If the
// project was already enabled and running, it is restarted so the fresh
// install cannot silently diverge from what is live.
func (o *Orchestrator) Enable(ctx context.Context, r *project.Record) error {
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return err
	}

	wasEnabled := r.Enabled
	wasRunning := false
	if wasEnabled {
		if state, err := o.Status(ctx, r); err == nil && state == confirm.StateRunning {
			wasRunning = true
		}
	}

	if err := o.ensureWorkingCopy(ctx, r); err != nil {
		return o.rollbackEnable(r, err)
	}
	if err := driver.Install(ctx, o.projectContext(r)); err != nil {
		return o.rollbackEnable(r, err)
	}

	r.Enabled = true
	if err := o.store.Save(r); err != nil {
		return err
	}
	o.logger.WithProject(r.ID).Info("project enabled")

	if wasEnabled && wasRunning {
		if err := driver.Restart(ctx, o.projectContext(r)); err != nil {
			return err
		}
		return o.awaitState(ctx, r, driver, confirm.StateRunning)
	}
	return nil
}

// rollbackEnable forces the record back to disabled and escalates the
// install failure to fatal.
func (o *Orchestrator) rollbackEnable(r *project.Record, cause error) error {
	r.Enabled = false
	if err := o.store.Save(r); err != nil {
		o.logger.WithProject(r.ID).Error("rollback save failed", "error", err)
	}
	return fatal(cause)
}

// Disable uninstalls the backend linkage and marks the project disabled.
// The flag is cleared even when uninstall partially fails: disabling must
// always leave the record in a retryable clean state, so the failure is
// reported as a warning and swallowed.
func (o *Orchestrator) Disable(ctx context.Context, r *project.Record) error {
	if !r.Enabled {
		o.logger.WithProject(r.ID).Warn("project already disabled")
		fmt.Fprintf(o.out, "%s is already disabled\n", r.ID)
		return nil
	}

	driver, err := o.factory.ForRecord(r)
	if err == nil {
		if uninstallErr := driver.Uninstall(ctx, o.projectContext(r)); uninstallErr != nil {
			o.logger.WithProject(r.ID).Warn("uninstall incomplete", "error", uninstallErr)
			fmt.Fprintf(o.out, "warning: uninstall of %s incomplete: %v\n", r.ID, uninstallErr)
		}
	}

	r.Enabled = false
	if err := o.store.Save(r); err != nil {
		return err
	}
	o.logger.WithProject(r.ID).Info("project disabled")
	return nil
}

// Start brings the project up. Disabled projects only warn; a project
// already observed running needs approval before a redundant trigger.
func (o *Orchestrator) Start(ctx context.Context, r *project.Record) error {
	if !r.Enabled {
		o.logger.WithProject(r.ID).Warn("project is disabled, not starting")
		fmt.Fprintf(o.out, "%s is disabled, enable it first\n", r.ID)
		return nil
	}
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return err
	}

	if state, err := o.Status(ctx, r); err == nil && state == confirm.StateRunning {
		if !o.approve(r.ID + " appears to be running already, start anyway?") {
			return nil
		}
	}

	if err := driver.Start(ctx, o.projectContext(r)); err != nil {
		return err
	}
	return o.awaitState(ctx, r, driver, confirm.StateRunning)
}

// Stop brings the project down. It works even on a disabled project: a
// leftover running instance must remain stoppable.
func (o *Orchestrator) Stop(ctx context.Context, r *project.Record) error {
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return err
	}

	if state, err := o.Status(ctx, r); err == nil && state == confirm.StateStopped {
		if !o.approve(r.ID + " appears to be stopped already, stop anyway?") {
			return nil
		}
	}

	if err := driver.Stop(ctx, o.projectContext(r)); err != nil {
		return err
	}
	return o.awaitState(ctx, r, driver, confirm.StateStopped)
}

// Restart cycles the project. Disabled projects only warn.
func (o *Orchestrator) Restart(ctx context.Context, r *project.Record) error {
	if !r.Enabled {
		o.logger.WithProject(r.ID).Warn("project is disabled, not restarting")
		fmt.Fprintf(o.out, "%s is disabled, enable it first\n", r.ID)
		return nil
	}
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return err
	}

	if err := driver.Restart(ctx, o.projectContext(r)); err != nil {
		return err
	}
	return o.awaitState(ctx, r, driver, confirm.StateRunning)
}

// Remove disables the project if needed and deletes its record.
func (o *Orchestrator) Remove(ctx context.Context, r *project.Record) error {
	if r.Enabled {
		if !o.approve(r.ID + " is enabled, disable and remove it?") {
			return errors.ErrAborted
		}
		if err := o.Disable(ctx, r); err != nil {
			return err
		}
	}
	if err := o.store.Delete(r.ID); err != nil {
		return err
	}
	o.logger.WithProject(r.ID).Info("project removed")
	return nil
}
