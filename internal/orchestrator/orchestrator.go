// Package orchestrator sequences the project lifecycle over the store,
// the backend drivers, the git engine, and the status poller. It owns the
// idempotence and partial-failure rules; the cmd layer only parses
// arguments and renders results.
package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/JeredArc/jeredmgr/internal/backend"
	"github.com/JeredArc/jeredmgr/internal/config"
	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/gitrepo"
	"github.com/JeredArc/jeredmgr/internal/logging"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// PromptFunc asks the operator a yes/no question.
type PromptFunc func(question string) bool

// SecretPromptFunc asks the operator for a secret value.
type SecretPromptFunc func(question string) (string, error)

// Orchestrator coordinates lifecycle operations for one invocation.
type Orchestrator struct {
	cfg     *config.Config
	store   *project.Store
	factory *backend.Factory
	creds   *gitrepo.CredentialStore
	logger  *logging.Logger

	runner      backend.CommandRunner
	gitExecutor gitrepo.CommandExecutor

	out          io.Writer
	force        bool
	interactive  bool
	prompt       PromptFunc
	promptSecret SecretPromptFunc

	// imagesUpdated marks that a container update ran, so the batch can
	// sweep dangling images once at the end.
	imagesUpdated bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutput sets the writer for human-facing output.
func WithOutput(out io.Writer) Option {
	return func(o *Orchestrator) { o.out = out }
}

// WithForce skips every confirmation gate.
func WithForce(force bool) Option {
	return func(o *Orchestrator) { o.force = force }
}

// WithInteractive marks the invocation as attached to an operator.
func WithInteractive(interactive bool) Option {
	return func(o *Orchestrator) { o.interactive = interactive }
}

// WithPrompt sets the yes/no prompt collaborator.
func WithPrompt(prompt PromptFunc) Option {
	return func(o *Orchestrator) { o.prompt = prompt }
}

// WithSecretPrompt sets the secret prompt collaborator.
func WithSecretPrompt(prompt SecretPromptFunc) Option {
	return func(o *Orchestrator) { o.promptSecret = prompt }
}

// WithRunner overrides subprocess execution. This is primarily useful for
// testing.
func WithRunner(runner backend.CommandRunner) Option {
	return func(o *Orchestrator) { o.runner = runner }
}

// WithGitExecutor overrides git command execution. This is primarily
// useful for testing.
func WithGitExecutor(executor gitrepo.CommandExecutor) Option {
	return func(o *Orchestrator) { o.gitExecutor = executor }
}

// WithCredentialStore overrides the global credential store.
func WithCredentialStore(creds *gitrepo.CredentialStore) Option {
	return func(o *Orchestrator) { o.creds = creds }
}

// New creates an Orchestrator.
func New(cfg *config.Config, store *project.Store, factory *backend.Factory, logger *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		store:       store,
		factory:     factory,
		creds:       gitrepo.NewCredentialStore(cfg.Paths.ResolveCredentialFile()),
		logger:      logger,
		runner:      backend.NewExecRunner(),
		gitExecutor: gitrepo.NewCLICommandExecutor(),
		out:         os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store exposes the project store for the cmd layer.
func (o *Orchestrator) Store() *project.Store {
	return o.store
}

// projectContext assembles the per-call context a driver receives.
func (o *Orchestrator) projectContext(r *project.Record) backend.ProjectContext {
	return backend.ProjectContext{
		Record:      r,
		ManagedDir:  o.store.Dir(),
		Logger:      o.logger.WithProject(r.ID).WithBackend(r.TypeName()),
		Interactive: o.interactive,
		Out:         o.out,
	}
}

// confirmOptions translates configured polling settings.
func (o *Orchestrator) confirmOptions() []confirm.Option {
	return []confirm.Option{
		confirm.WithInterval(o.cfg.Confirm.Interval()),
		confirm.WithMaxAttempts(o.cfg.Confirm.MaxAttempts),
	}
}

// approve gates a redundant or wide-reaching action. Forced invocations
// proceed, interactive ones ask, detached ones decline.
func (o *Orchestrator) approve(question string) bool {
	if o.force {
		return true
	}
	if o.interactive && o.prompt != nil {
		return o.prompt(question)
	}
	return false
}

// Status reports a project's observed run state.
func (o *Orchestrator) Status(ctx context.Context, r *project.Record) (confirm.State, error) {
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return confirm.StateUnknown, err
	}
	state, err := driver.Status(ctx, o.projectContext(r))
	if errors.Is(err, errors.ErrNoStatusProbe) {
		return confirm.StateUnknown, nil
	}
	return state, err
}

// Logs streams a project's logs.
func (o *Orchestrator) Logs(ctx context.Context, r *project.Record, opts backend.LogOptions) error {
	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return err
	}
	return driver.Logs(ctx, o.projectContext(r), opts)
}

// awaitState polls until the driver confirms the expected state. A timed
// out confirmation is a recoverable failure; an unknowable one only warns.
func (o *Orchestrator) awaitState(ctx context.Context, r *project.Record, driver backend.Driver, want confirm.State) error {
	pc := o.projectContext(r)
	outcome, err := confirm.Await(ctx, want, func(ctx context.Context) (confirm.State, error) {
		return driver.Status(ctx, pc)
	}, o.confirmOptions()...)
	if err != nil {
		return err
	}
	switch outcome {
	case confirm.OutcomeTimedOut:
		return errors.NewExternalToolError("project did not reach "+want.String()+" state in time", errors.ErrConfirmationTimeout).
			WithProject(r.ID)
	case confirm.OutcomeUnknown:
		pc.Logger.Warn("could not confirm state", "want", want.String())
	}
	return nil
}

// fatal escalates an error to fatal severity where its type allows it.
// Validation and not-found errors already are.
func fatal(err error) error {
	var toolErr *errors.ExternalToolError
	if errors.As(err, &toolErr) {
		return toolErr.WithSeverity(errors.SeverityFatal)
	}
	var gitErr *errors.GitError
	if errors.As(err, &gitErr) {
		return gitErr.WithSeverity(errors.SeverityFatal)
	}
	return err
}

// installDir returns the manager's own install directory for self-update:
// configured explicitly or derived from the running executable.
func (o *Orchestrator) installDir() (string, error) {
	if o.cfg.Paths.InstallDir != "" {
		return o.cfg.Paths.InstallDir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "locating executable")
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", errors.Wrap(err, "resolving executable path")
	}
	return filepath.Dir(resolved), nil
}
