package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JeredArc/jeredmgr/internal/backend"
	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/gitrepo"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// UpdateResult describes what one project update did.
type UpdateResult struct {
	// OverrideScript is set when a project-supplied update script ran in
	// place of the built-in flow.
	OverrideScript bool

	// Sync is the git transition; zero value when no repository is bound.
	Sync gitrepo.SyncStatus

	// ImagesPulled lists container images refreshed individually.
	ImagesPulled []string

	// Restarted reports whether the project was cycled after the update.
	Restarted bool
}

// repo constructs the git handle for a working copy path.
func (o *Orchestrator) repo(path string) *gitrepo.Repo {
	return gitrepo.NewRepo(path,
		gitrepo.WithBinary(o.cfg.Git.Binary),
		gitrepo.WithRemote(o.cfg.Git.DefaultRemote),
		gitrepo.WithExecutor(o.gitExecutor))
}

// gitPath returns where the project's working copy lives. With a sub-path
// selector the clone is private and the project path merely aliases into
// it.
func (o *Orchestrator) gitPath(r *project.Record) string {
	if r.SubPath == "" {
		return r.Path
	}
	return filepath.Join(o.store.Dir(), "clones", r.ID)
}

// authURL returns the remote URL to use for fetching: bare for
// unauthenticated projects, credentialed for the others. A missing global
// credential is prompted for once and persisted.
func (o *Orchestrator) authURL(r *project.Record) (string, error) {
	switch r.AuthMode {
	case project.AuthNone:
		return "", nil
	case project.AuthLocal:
		return gitrepo.CredentialURL(r.RepoURL, r.AuthToken, o.cfg.Git.TrustedHosts)
	case project.AuthGlobal:
		if err := o.creds.CheckPermissions(); err != nil {
			o.logger.Warn("credential file permissions drifted", "error", err)
			if restrictErr := o.creds.Restrict(); restrictErr != nil {
				o.logger.Warn("could not restore credential permissions", "error", restrictErr)
			}
		}
		token, err := o.creds.Load()
		if errors.Is(err, errors.ErrNoCredential) {
			token, err = o.promptForCredential()
		}
		if err != nil {
			return "", err
		}
		return gitrepo.CredentialURL(r.RepoURL, token, o.cfg.Git.TrustedHosts)
	default:
		return "", nil
	}
}

// promptForCredential asks the operator for the global token on first use
// and persists it.
func (o *Orchestrator) promptForCredential() (string, error) {
	if !o.interactive || o.promptSecret == nil {
		return "", errors.Wrap(errors.ErrNoCredential, "no global credential configured")
	}
	token, err := o.promptSecret("Enter the global access token")
	if err != nil {
		return "", err
	}
	if err := o.creds.Save(token); err != nil {
		return "", err
	}
	return token, nil
}

// ensureWorkingCopy clones or verifies the project's source checkout and
// maintains the sub-path alias. Projects without a repository are left
// alone.
func (o *Orchestrator) ensureWorkingCopy(ctx context.Context, r *project.Record) error {
	if r.RepoURL == "" {
		return nil
	}

	remote := r.RepoURL
	if credURL, err := o.authURL(r); err != nil {
		return err
	} else if credURL != "" {
		remote = credURL
	}

	gitPath := o.gitPath(r)
	if err := o.repo(gitPath).CloneOrVerify(remote); err != nil {
		return err
	}

	if r.SubPath != "" {
		return o.ensureSubPathAlias(r, gitPath)
	}
	return nil
}

// ensureSubPathAlias keeps the project path a symlink into the private
// clone, repairing mismatches and refusing to clobber a real directory.
func (o *Orchestrator) ensureSubPathAlias(r *project.Record, gitPath string) error {
	target := filepath.Join(gitPath, r.SubPath)
	if existing, err := os.Readlink(r.Path); err == nil {
		if existing == target {
			return nil
		}
		if err := os.Remove(r.Path); err != nil {
			return errors.Wrap(err, "removing stale project alias")
		}
	} else if _, err := os.Lstat(r.Path); err == nil {
		return errors.NewValidationError("project path exists and is not an alias into the clone").
			WithField("path").
			WithValue(r.Path)
	}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		return errors.Wrap(err, "creating project parent directory")
	}
	if err := os.Symlink(target, r.Path); err != nil {
		return errors.Wrap(err, "creating project alias")
	}
	return nil
}

// Update refreshes a project: a project-supplied update script overrides
// everything; otherwise the working copy is pulled and, for container
// projects, each descriptor image is pulled individually. Install then
// reconverges the artifacts, and the project is restarted only if it was
// observed running beforehand.
func (o *Orchestrator) Update(ctx context.Context, r *project.Record) (UpdateResult, error) {
	var result UpdateResult

	driver, err := o.factory.ForRecord(r)
	if err != nil {
		return result, err
	}

	wasRunning := false
	if state, err := o.Status(ctx, r); err == nil && state == confirm.StateRunning {
		wasRunning = true
	}

	if script, ok := backend.FindScript(r.Path, "update"); ok {
		result.OverrideScript = true
		output, err := o.runner.Run(ctx, r.Path, script)
		if err != nil {
			return result, errors.NewExternalToolError("update script failed", err).
				WithTool("update").
				WithProject(r.ID).
				WithOutput(string(output))
		}
	} else {
		if r.RepoURL != "" {
			if err := o.ensureWorkingCopy(ctx, r); err != nil {
				return result, err
			}
			remote, err := o.authURL(r)
			if err != nil {
				return result, err
			}
			sync, err := o.repo(o.gitPath(r)).Pull(remote)
			if err != nil {
				return result, err
			}
			result.Sync = sync
		}

		if r.Type == project.TypeContainer {
			pulled, err := o.pullProjectImages(ctx, r)
			if err != nil {
				return result, err
			}
			result.ImagesPulled = pulled
		}
	}

	if err := driver.Install(ctx, o.projectContext(r)); err != nil {
		return result, err
	}

	if wasRunning {
		if err := driver.Restart(ctx, o.projectContext(r)); err != nil {
			return result, err
		}
		if err := o.awaitState(ctx, r, driver, confirm.StateRunning); err != nil {
			return result, err
		}
		result.Restarted = true
	}
	return result, nil
}

// pullProjectImages pulls every image the descriptor names, one by one so
// each failure is attributed to its image. Any successful pull may leave a
// dangling predecessor behind; the batch sweeps those at the end.
func (o *Orchestrator) pullProjectImages(ctx context.Context, r *project.Record) ([]string, error) {
	container := o.factory.Container()
	images, err := container.Images(o.projectContext(r))
	if err != nil {
		if errors.Is(err, errors.ErrArtifactMissing) {
			return nil, nil
		}
		return nil, err
	}

	var pulled []string
	for _, ref := range images {
		o.logger.WithProject(r.ID).Info("pulling image", "image", ref)
		if err := container.PullImage(ctx, ref); err != nil {
			return pulled, err
		}
		fmt.Fprintf(o.out, "pulled %s\n", ref)
		pulled = append(pulled, ref)
	}
	if len(pulled) > 0 {
		o.imagesUpdated = true
	}
	return pulled, nil
}

// CleanupDanglingImages sweeps images orphaned by this invocation's
// updates. It is a no-op when no container image was pulled.
func (o *Orchestrator) CleanupDanglingImages(ctx context.Context) error {
	if !o.imagesUpdated {
		return nil
	}
	container := o.factory.Container()
	dangling, err := container.DanglingImages(ctx)
	if err != nil {
		return err
	}
	if len(dangling) == 0 {
		return nil
	}
	reclaimed, err := container.PruneDangling(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("pruned dangling images", "count", len(dangling), "reclaimed_bytes", reclaimed)
	fmt.Fprintf(o.out, "pruned %d dangling images\n", len(dangling))
	return nil
}

// SelfUpdateResult reports the outcome of updating the manager itself.
type SelfUpdateResult struct {
	Sync gitrepo.SyncStatus

	// RestartRequested tells the outermost boundary to replace the
	// running process with a freshly launched one after all work is done.
	RestartRequested bool
}

// SelfUpdate pulls the manager's own install directory. It never replaces
// the process itself; it only reports that a restart is due, keeping the
// process-replacement protocol at the outermost boundary.
func (o *Orchestrator) SelfUpdate(ctx context.Context) (SelfUpdateResult, error) {
	var result SelfUpdateResult

	dir, err := o.installDir()
	if err != nil {
		return result, err
	}
	repo := o.repo(dir)
	if !repo.IsRepository() {
		return result, errors.NewGitError("install directory is not a git checkout", errors.ErrNotGitRepository).
			WithRepository(dir)
	}

	sync, err := repo.Pull("")
	if err != nil {
		return result, err
	}
	result.Sync = sync
	if sync.State == gitrepo.SyncBehind {
		result.RestartRequested = true
	}
	return result, nil
}
