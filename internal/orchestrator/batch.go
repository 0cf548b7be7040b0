package orchestrator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// Action is one lifecycle operation applied to one record.
type Action func(ctx context.Context, r *project.Record) error

// TargetResult is the outcome for one batch target.
type TargetResult struct {
	ID  string
	Err error
}

// BatchResult aggregates per-target outcomes in execution order.
type BatchResult struct {
	Results []TargetResult
}

// Failed reports whether any target failed.
func (b BatchResult) Failed() bool {
	return lo.SomeBy(b.Results, func(r TargetResult) bool { return r.Err != nil })
}

// FailedIDs lists the ids of failed targets in execution order.
func (b BatchResult) FailedIDs() []string {
	failed := lo.Filter(b.Results, func(r TargetResult, _ int) bool { return r.Err != nil })
	return lo.Map(failed, func(r TargetResult, _ int) string { return r.ID })
}

// Err summarizes the batch for command exit handling: nil on full success,
// the single underlying error for a one-target batch, an aggregate
// otherwise.
func (b BatchResult) Err() error {
	failed := lo.Filter(b.Results, func(r TargetResult, _ int) bool { return r.Err != nil })
	switch len(failed) {
	case 0:
		return nil
	case 1:
		if len(b.Results) == 1 {
			return failed[0].Err
		}
	}
	return fmt.Errorf("%d of %d projects failed: %v",
		len(failed), len(b.Results), b.FailedIDs())
}

// Run resolves a selector and applies action to every target strictly in
// listing order. Per-target failures are caught and accumulated so every
// target still runs; only a fatal error aborts the remainder. Wide
// selections are gated by confirmation unless forced or detached.
func (o *Orchestrator) Run(ctx context.Context, selector string, verb string, action Action) (BatchResult, error) {
	var batch BatchResult

	records, err := o.store.Resolve(selector)
	if err != nil {
		return batch, err
	}
	if len(records) == 0 {
		fmt.Fprintf(o.out, "no projects to %s\n", verb)
		return batch, nil
	}

	if len(records) > 1 && o.interactive && !o.force {
		ids := lo.Map(records, func(r *project.Record, _ int) string { return r.ID })
		if !o.approve(fmt.Sprintf("%s %d projects %v?", verb, len(records), ids)) {
			return batch, errors.ErrAborted
		}
	}

	for i, r := range records {
		err := action(ctx, r)
		batch.Results = append(batch.Results, TargetResult{ID: r.ID, Err: err})
		if err != nil {
			o.logger.WithProject(r.ID).Error(verb+" failed", "error", err)
			fmt.Fprintf(o.out, "%s %s: %v\n", verb, r.ID, err)
			if errors.IsFatal(err) && i < len(records)-1 {
				o.logger.Error("aborting remaining targets", "failed", r.ID)
				break
			}
		}
	}
	return batch, nil
}
