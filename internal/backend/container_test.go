package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
)

// fakeRunner records invocations and returns canned responses keyed by the
// joined argument list.
type fakeRunner struct {
	responses map[string]fakeRunnerResponse
	calls     []string
}

type fakeRunnerResponse struct {
	output string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]fakeRunnerResponse)}
}

func (f *fakeRunner) on(args string, output string, err error) {
	f.responses[args] = fakeRunnerResponse{output: output, err: err}
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	key := name
	if len(args) > 0 {
		key += " " + strings.Join(args, " ")
	}
	f.calls = append(f.calls, key)
	if resp, ok := f.responses[key]; ok {
		return []byte(resp.output), resp.err
	}
	return nil, nil
}

func (f *fakeRunner) RunStreaming(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	_, err := f.Run(ctx, dir, name, args...)
	return err
}

func (f *fakeRunner) called(substr string) bool {
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// fakeEngine is an in-memory EngineClient.
type fakeEngine struct {
	running  map[string]int
	pulled   []string
	removed  []string
	dangling []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{running: make(map[string]int)}
}

func (f *fakeEngine) RunningContainers(ctx context.Context, composeProject string) (int, error) {
	return f.running[composeProject], nil
}

func (f *fakeEngine) PullImage(ctx context.Context, ref string) error {
	f.pulled = append(f.pulled, ref)
	return nil
}

func (f *fakeEngine) RemoveImage(ctx context.Context, ref string) error {
	f.removed = append(f.removed, ref)
	return nil
}

func (f *fakeEngine) DanglingImages(ctx context.Context) ([]string, error) {
	return f.dangling, nil
}

func (f *fakeEngine) PruneDangling(ctx context.Context) (uint64, error) {
	f.dangling = nil
	return 42, nil
}

func (f *fakeEngine) Close() error { return nil }

func newContainerDriver(runner CommandRunner, engine EngineClient, managedDir string) *ContainerDriver {
	return NewContainerDriver(runner, engine, managedDir,
		[]string{"docker", "compose"}, "docker-compose.yml", "Dockerfile")
}

func writeArtifact(t *testing.T, managedDir, id, content string) string {
	t.Helper()
	path := filepath.Join(managedDir, id+composeExt)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestContainerStartUsesComposeUp(t *testing.T) {
	managed := t.TempDir()
	runner := newFakeRunner()
	driver := newContainerDriver(runner, newFakeEngine(), managed)
	pc := testContext(t, managed)
	artifact := writeArtifact(t, managed, "web", "services: {}\n")

	require.NoError(t, driver.Start(context.Background(), pc))
	assert.True(t, runner.called("docker compose -f "+artifact+" -p web up -d"))
}

func TestContainerStopTearsDown(t *testing.T) {
	managed := t.TempDir()
	runner := newFakeRunner()
	driver := newContainerDriver(runner, newFakeEngine(), managed)
	pc := testContext(t, managed)
	artifact := writeArtifact(t, managed, "web", "services: {}\n")

	require.NoError(t, driver.Stop(context.Background(), pc))
	assert.True(t, runner.called("docker compose -f "+artifact+" -p web down"))
}

func TestContainerStartFailureIsRecoverableToolError(t *testing.T) {
	managed := t.TempDir()
	runner := newFakeRunner()
	driver := newContainerDriver(runner, newFakeEngine(), managed)
	pc := testContext(t, managed)
	artifact := writeArtifact(t, managed, "web", "services: {}\n")

	runner.on("docker compose -f "+artifact+" -p web up -d",
		"no such image\n", fmt.Errorf("exit status 1"))

	err := driver.Start(context.Background(), pc)
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err))
	assert.Contains(t, err.Error(), "no such image")
}

func TestContainerStatusCountsRunningContainers(t *testing.T) {
	managed := t.TempDir()
	engine := newFakeEngine()
	driver := newContainerDriver(newFakeRunner(), engine, managed)
	pc := testContext(t, managed)

	// No artifact yet: unknowable.
	state, err := driver.Status(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, confirm.StateUnknown, state)

	writeArtifact(t, managed, "web", "services: {}\n")

	state, err = driver.Status(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, confirm.StateStopped, state)

	engine.running["web"] = 2
	state, err = driver.Status(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, confirm.StateRunning, state)
}

func TestContainerUninstallRemovesImagesOnlyWithMarker(t *testing.T) {
	descriptor := "services:\n  web:\n    image: acme/web:latest\n"

	t.Run("generated descriptor", func(t *testing.T) {
		managed := t.TempDir()
		engine := newFakeEngine()
		driver := newContainerDriver(newFakeRunner(), engine, managed)
		pc := testContext(t, managed)
		writeArtifact(t, managed, "web", GenerationMarker+"\n"+descriptor)

		require.NoError(t, driver.Uninstall(context.Background(), pc))
		assert.Equal(t, []string{"acme/web:latest"}, engine.removed)
		_, err := os.Lstat(filepath.Join(managed, "web"+composeExt))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("hand-authored descriptor", func(t *testing.T) {
		managed := t.TempDir()
		engine := newFakeEngine()
		driver := newContainerDriver(newFakeRunner(), engine, managed)
		pc := testContext(t, managed)
		writeArtifact(t, managed, "web", descriptor)

		require.NoError(t, driver.Uninstall(context.Background(), pc))
		assert.Empty(t, engine.removed, "hand-authored images must never be touched")
	})
}

func TestContainerInstallSynthesizesFromBuildFile(t *testing.T) {
	managed := t.TempDir()
	driver := newContainerDriver(newFakeRunner(), newFakeEngine(), managed)
	pc := testContext(t, managed)

	dockerfile := "FROM alpine\nENV MODE=prod\nEXPOSE 8080/tcp\nCMD [\"/run\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(pc.Record.Path, "Dockerfile"), []byte(dockerfile), 0o644))

	require.NoError(t, driver.Install(context.Background(), pc))

	data, err := os.ReadFile(filepath.Join(managed, "web"+composeExt))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, GenerationMarker)
	assert.Contains(t, content, "8080:8080")
	assert.Contains(t, content, "MODE=prod")
	assert.Contains(t, content, "build: "+pc.Record.Path)
}

func TestContainerInstallIsIdempotent(t *testing.T) {
	managed := t.TempDir()
	driver := newContainerDriver(newFakeRunner(), newFakeEngine(), managed)
	pc := testContext(t, managed)

	source := filepath.Join(pc.Record.Path, "docker-compose.yml")
	require.NoError(t, os.WriteFile(source, []byte("services: {}\n"), 0o644))

	require.NoError(t, driver.Install(context.Background(), pc))
	first, err := os.Lstat(filepath.Join(managed, "web"+composeExt))
	require.NoError(t, err)

	require.NoError(t, driver.Install(context.Background(), pc))
	second, err := os.Lstat(filepath.Join(managed, "web"+composeExt))
	require.NoError(t, err)

	assert.Equal(t, first.ModTime(), second.ModTime())
	_, err = os.Lstat(filepath.Join(managed, "web"+composeExt+backupExt))
	assert.True(t, os.IsNotExist(err), "idempotent install must not rotate backups")
}

func TestContainerImages(t *testing.T) {
	managed := t.TempDir()
	driver := newContainerDriver(newFakeRunner(), newFakeEngine(), managed)
	pc := testContext(t, managed)
	writeArtifact(t, managed, "web",
		"services:\n  app:\n    image: acme/web:1\n  db:\n    image: postgres:16\n  builder:\n    build: .\n")

	images, err := driver.Images(pc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme/web:1", "postgres:16"}, images)
}
