package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/gitrepo"
	"github.com/JeredArc/jeredmgr/internal/project"
)

const updateTestCompose = `services:
  svc:
    image: nginx:1.27
  db:
    image: postgres:16
`

// stubGit answers git invocations keyed by their joined arguments.
type stubGit struct {
	responses map[string]string
	failing   map[string]error
	calls     []string
}

func newStubGit() *stubGit {
	return &stubGit{
		responses: make(map[string]string),
		failing:   make(map[string]error),
	}
}

func (s *stubGit) Run(dir string, name string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	s.calls = append(s.calls, key)
	if err, ok := s.failing[key]; ok {
		return []byte(s.responses[key]), err
	}
	return []byte(s.responses[key]), nil
}

func (s *stubGit) RunQuiet(dir string, name string, args ...string) error {
	_, err := s.Run(dir, name, args...)
	return err
}

// addContainerProject stores a container project whose directory holds a
// compose descriptor, optionally pre-installed into the managed dir.
func (e *testEnv) addContainerProject(t *testing.T, id string, installed bool) *project.Record {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(updateTestCompose), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if err := e.store.Create(&project.Record{ID: id, Type: project.TypeContainer, Path: dir}); err != nil {
		t.Fatalf("Create(%q) error = %v", id, err)
	}
	r, err := e.store.Load(id)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", id, err)
	}
	r.Enabled = true
	if err := e.store.Save(r); err != nil {
		t.Fatalf("Save(%q) error = %v", id, err)
	}
	if installed {
		if err := os.Symlink(filepath.Join(dir, "docker-compose.yml"), filepath.Join(e.store.Dir(), id+".yml")); err != nil {
			t.Fatalf("Symlink error = %v", err)
		}
	}
	return r
}

func TestUpdatePullsImagesAndRestartsRunningProject(t *testing.T) {
	env := newTestEnv(t)
	r := env.addContainerProject(t, "svc", true)
	env.engine.running["svc"] = 2

	result, err := env.orch.Update(context.Background(), r)
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	pulled := append([]string(nil), result.ImagesPulled...)
	sort.Strings(pulled)
	want := []string{"nginx:1.27", "postgres:16"}
	if len(pulled) != 2 || pulled[0] != want[0] || pulled[1] != want[1] {
		t.Errorf("ImagesPulled = %v, want %v", result.ImagesPulled, want)
	}
	if !result.Restarted {
		t.Error("Restarted = false for a running project")
	}
	if !env.runner.called("down") || !env.runner.called("up -d") {
		t.Errorf("restart did not cycle compose, calls = %v", env.runner.calls)
	}
	if result.OverrideScript {
		t.Error("OverrideScript = true without an update script")
	}
}

func TestUpdateLeavesStoppedProjectStopped(t *testing.T) {
	env := newTestEnv(t)
	r := env.addContainerProject(t, "svc", true)

	result, err := env.orch.Update(context.Background(), r)
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if result.Restarted {
		t.Error("Restarted = true for a stopped project")
	}
	if env.runner.called("up -d") {
		t.Errorf("stopped project was started, calls = %v", env.runner.calls)
	}
}

func TestUpdateScriptOverridesEverything(t *testing.T) {
	env := newTestEnv(t)
	r := env.addScriptsProject(t, "web", true)
	update := writeScript(t, r.Path, "update")

	result, err := env.orch.Update(context.Background(), r)
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if !result.OverrideScript {
		t.Error("OverrideScript = false with an update script present")
	}
	if !env.runner.called(update) {
		t.Errorf("update script not run, calls = %v", env.runner.calls)
	}
	if len(result.ImagesPulled) != 0 {
		t.Errorf("ImagesPulled = %v with an override script", result.ImagesPulled)
	}
}

func TestUpdateScriptFailureIsRecoverable(t *testing.T) {
	env := newTestEnv(t)
	r := env.addScriptsProject(t, "web", false)
	update := writeScript(t, r.Path, "update")
	env.runner.failing[update] = os.ErrPermission

	_, err := env.orch.Update(context.Background(), r)
	if err == nil {
		t.Fatal("Update error = nil, want failure")
	}
	if !errors.IsRecoverable(err) {
		t.Errorf("update script failure severity = %v, want recoverable", errors.GetSeverity(err))
	}
}

func TestCleanupDanglingImagesNoopWithoutPulls(t *testing.T) {
	env := newTestEnv(t)
	env.engine.dangling = []string{"sha256:feed"}

	if err := env.orch.CleanupDanglingImages(context.Background()); err != nil {
		t.Fatalf("CleanupDanglingImages error = %v", err)
	}
	if env.engine.pruned {
		t.Error("pruned dangling images though nothing was updated")
	}
}

func TestCleanupDanglingImagesAfterPulls(t *testing.T) {
	env := newTestEnv(t)
	r := env.addContainerProject(t, "svc", true)
	env.engine.dangling = []string{"sha256:feed"}

	if _, err := env.orch.Update(context.Background(), r); err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if err := env.orch.CleanupDanglingImages(context.Background()); err != nil {
		t.Fatalf("CleanupDanglingImages error = %v", err)
	}
	if !env.engine.pruned {
		t.Error("dangling images left behind after image pulls")
	}
}

func TestSelfUpdateBehindRequestsRestart(t *testing.T) {
	git := newStubGit()
	git.responses["rev-list --count HEAD..@{upstream}"] = "3\n"
	git.responses["rev-parse --short HEAD"] = "def5678\n"
	env := newTestEnv(t, WithGitExecutor(git))
	env.cfg.Paths.InstallDir = t.TempDir()

	result, err := env.orch.SelfUpdate(context.Background())
	if err != nil {
		t.Fatalf("SelfUpdate error = %v", err)
	}
	if result.Sync.State != gitrepo.SyncBehind {
		t.Errorf("Sync.State = %v, want SyncBehind", result.Sync.State)
	}
	if result.Sync.NewCommit != "def5678" {
		t.Errorf("Sync.NewCommit = %q, want def5678", result.Sync.NewCommit)
	}
	if !result.RestartRequested {
		t.Error("RestartRequested = false after fast-forward")
	}
	merged := false
	for _, call := range git.calls {
		if call == "merge --ff-only @{upstream}" {
			merged = true
		}
	}
	if !merged {
		t.Errorf("no fast-forward merge issued, calls = %v", git.calls)
	}
}

func TestSelfUpdateUpToDate(t *testing.T) {
	git := newStubGit()
	git.responses["rev-list --count HEAD..@{upstream}"] = "0\n"
	env := newTestEnv(t, WithGitExecutor(git))
	env.cfg.Paths.InstallDir = t.TempDir()

	result, err := env.orch.SelfUpdate(context.Background())
	if err != nil {
		t.Fatalf("SelfUpdate error = %v", err)
	}
	if result.RestartRequested {
		t.Error("RestartRequested = true while already up to date")
	}
	for _, call := range git.calls {
		if strings.HasPrefix(call, "merge") {
			t.Errorf("merge issued for up-to-date checkout, calls = %v", git.calls)
		}
	}
}

func TestSelfUpdateOutsideCheckout(t *testing.T) {
	git := newStubGit()
	git.failing["rev-parse --git-dir"] = os.ErrNotExist
	env := newTestEnv(t, WithGitExecutor(git))
	env.cfg.Paths.InstallDir = t.TempDir()

	_, err := env.orch.SelfUpdate(context.Background())
	if !errors.Is(err, errors.ErrNotGitRepository) {
		t.Errorf("SelfUpdate error = %v, want ErrNotGitRepository", err)
	}
}
