package gitrepo

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// SyncState classifies a working copy relative to its upstream.
type SyncState int

const (
	// SyncUpToDate means the working copy matches its upstream.
	SyncUpToDate SyncState = iota
	// SyncBehind means the upstream has commits the working copy lacks.
	SyncBehind
	// SyncNoUpstream means the current branch tracks no upstream branch.
	SyncNoUpstream
)

// String returns the string representation of the SyncState.
func (s SyncState) String() string {
	switch s {
	case SyncBehind:
		return "behind"
	case SyncNoUpstream:
		return "no upstream"
	default:
		return "up to date"
	}
}

// SyncStatus is the result of comparing a working copy to its upstream.
// A pull additionally records the HEAD transition: an up-to-date pull
// reports the same hash for both ends.
type SyncStatus struct {
	State     SyncState
	Behind    int
	OldCommit string
	NewCommit string
}

// Repo drives git against one working copy.
type Repo struct {
	path     string
	binary   string
	remote   string
	executor CommandExecutor
}

// RepoOption configures a Repo.
type RepoOption func(*Repo)

// WithBinary overrides the git binary name or path.
func WithBinary(binary string) RepoOption {
	return func(r *Repo) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithRemote overrides the remote name used for fetch and comparison.
func WithRemote(remote string) RepoOption {
	return func(r *Repo) {
		if remote != "" {
			r.remote = remote
		}
	}
}

// WithExecutor overrides command execution. This is primarily useful for
// testing.
func WithExecutor(executor CommandExecutor) RepoOption {
	return func(r *Repo) {
		r.executor = executor
	}
}

// NewRepo creates a Repo for the working copy at path.
func NewRepo(path string, opts ...RepoOption) *Repo {
	r := &Repo{
		path:     path,
		binary:   "git",
		remote:   "origin",
		executor: NewCLICommandExecutor(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the working copy directory.
func (r *Repo) Path() string {
	return r.path
}

// IsRepository reports whether path is inside a git repository.
func (r *Repo) IsRepository() bool {
	return r.executor.RunQuiet(r.path, r.binary, "rev-parse", "--git-dir") == nil
}

// RemoteURL returns the configured URL of the repo's remote, with any
// embedded userinfo stripped.
func (r *Repo) RemoteURL() (string, error) {
	output, err := r.executor.Run(r.path, r.binary, "remote", "get-url", r.remote)
	if err != nil {
		return "", errors.NewGitError("failed to read remote URL", err).
			WithRepository(r.path).
			WithGitOutput(string(output))
	}
	return RedactURL(strings.TrimSpace(string(output))), nil
}

// Clone clones remoteURL into the repo path. remoteURL may carry an
// embedded credential; it is redacted from any error.
func (r *Repo) Clone(remoteURL string) error {
	parent := filepath.Dir(r.path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrap(err, "creating clone parent directory")
	}
	output, err := r.executor.Run(parent, r.binary, "clone", remoteURL, r.path)
	if err != nil {
		return errors.NewGitError("failed to clone", err).
			WithRepository(r.path).
			WithRemote(RedactURL(remoteURL)).
			WithGitOutput(string(output))
	}
	return nil
}

// CloneOrVerify makes sure path holds a clone of remoteURL: a missing
// working copy is cloned, an existing one must already point at the same
// remote. A directory that exists but is not a repository is an error, not
// something to clone over.
func (r *Repo) CloneOrVerify(remoteURL string) error {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return r.Clone(remoteURL)
	}
	if !r.IsRepository() {
		return errors.NewGitError("directory exists but is not a git repository", errors.ErrNotGitRepository).
			WithRepository(r.path)
	}
	existing, err := r.RemoteURL()
	if err != nil {
		return err
	}
	if existing != RedactURL(remoteURL) {
		return errors.NewValidationError("working copy points at a different remote").
			WithField("repo_url").
			WithValue(existing)
	}
	return nil
}

// Fetch updates the remote-tracking refs. A non-empty remoteURL (typically
// credentialed) fetches from that URL into the configured remote's refs so
// the token never has to be written into git config.
func (r *Repo) Fetch(remoteURL string) error {
	var output []byte
	var err error
	if remoteURL != "" {
		refspec := "+refs/heads/*:refs/remotes/" + r.remote + "/*"
		output, err = r.executor.Run(r.path, r.binary, "fetch", remoteURL, refspec)
	} else {
		output, err = r.executor.Run(r.path, r.binary, "fetch", r.remote)
	}
	if err != nil {
		return errors.NewGitError("failed to fetch", err).
			WithRepository(r.path).
			WithRemote(RedactURL(remoteURL)).
			WithGitOutput(string(output))
	}
	return nil
}

// Status compares HEAD to its upstream using already-fetched tracking
// refs. Call Fetch first for a fresh answer.
func (r *Repo) Status() (SyncStatus, error) {
	output, err := r.executor.Run(r.path, r.binary, "rev-list", "--count", "HEAD..@{upstream}")
	if err != nil {
		if isNoUpstreamOutput(string(output)) {
			return SyncStatus{State: SyncNoUpstream}, nil
		}
		return SyncStatus{}, errors.NewGitError("failed to compare with upstream", err).
			WithRepository(r.path).
			WithGitOutput(string(output))
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return SyncStatus{}, errors.NewGitError("failed to parse behind count", err).
			WithRepository(r.path)
	}
	if count == 0 {
		return SyncStatus{State: SyncUpToDate}, nil
	}
	return SyncStatus{State: SyncBehind, Behind: count}, nil
}

// Pull fetches and fast-forwards onto the upstream. An already current
// working copy is left untouched and reported as up to date; a branch with
// no upstream is an error because an update was explicitly requested.
func (r *Repo) Pull(remoteURL string) (SyncStatus, error) {
	if err := r.Fetch(remoteURL); err != nil {
		return SyncStatus{}, err
	}
	status, err := r.Status()
	if err != nil {
		return SyncStatus{}, err
	}
	if status.State == SyncNoUpstream {
		return status, errors.NewGitError("current branch has no upstream to pull from", errors.ErrNoUpstream).
			WithRepository(r.path)
	}

	head, err := r.CurrentCommit()
	if err != nil {
		return SyncStatus{}, err
	}
	status.OldCommit = head
	status.NewCommit = head
	if status.State == SyncUpToDate {
		return status, nil
	}

	output, err := r.executor.Run(r.path, r.binary, "merge", "--ff-only", "@{upstream}")
	if err != nil {
		return status, errors.NewGitError("failed to fast-forward, local history has diverged", err).
			WithRepository(r.path).
			WithGitOutput(string(output))
	}
	if status.NewCommit, err = r.CurrentCommit(); err != nil {
		return status, err
	}
	return status, nil
}

// CurrentCommit returns the abbreviated HEAD commit hash.
func (r *Repo) CurrentCommit() (string, error) {
	output, err := r.executor.Run(r.path, r.binary, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).
			WithRepository(r.path).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// isNoUpstreamOutput recognizes git's complaints about a missing upstream
// configuration.
func isNoUpstreamOutput(output string) bool {
	return strings.Contains(output, "no upstream") ||
		strings.Contains(output, "upstream branch") ||
		strings.Contains(output, "unknown revision")
}
