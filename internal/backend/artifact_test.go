package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/logging"
	"github.com/JeredArc/jeredmgr/internal/project"
)

func testContext(t *testing.T, managedDir string) ProjectContext {
	t.Helper()
	return ProjectContext{
		Record: &project.Record{
			ID:   "web",
			Type: project.TypeContainer,
			Path: t.TempDir(),
		},
		ManagedDir: managedDir,
		Logger:     logging.NopLogger(),
		Out:        os.Stderr,
	}
}

func TestArtifactRegularFileIsAuthoritative(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	pc := testContext(t, managed)

	authoritative := policy.path("web")
	require.NoError(t, os.WriteFile(authoritative, []byte("services: {}\n"), 0o644))
	// A candidate in the project path must not displace it.
	require.NoError(t, os.WriteFile(filepath.Join(pc.Record.Path, "docker-compose.yml"), []byte("x\n"), 0o644))

	got, err := policy.resolve(pc, []string{"docker-compose.yml"}, nil)
	require.NoError(t, err)
	assert.Equal(t, authoritative, got)

	info, err := os.Lstat(got)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular(), "authoritative file must stay a regular file")
}

func TestArtifactLinksCandidateFromProjectPath(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	pc := testContext(t, managed)

	source := filepath.Join(pc.Record.Path, "docker-compose.yml")
	require.NoError(t, os.WriteFile(source, []byte("services: {}\n"), 0o644))

	got, err := policy.resolve(pc, []string{"docker-compose.yml"}, nil)
	require.NoError(t, err)

	target, err := os.Readlink(got)
	require.NoError(t, err)
	assert.Equal(t, source, target)

	// Second resolve must be a no-op on the existing correct link.
	before, err := os.Lstat(got)
	require.NoError(t, err)
	_, err = policy.resolve(pc, []string{"docker-compose.yml"}, nil)
	require.NoError(t, err)
	after, err := os.Lstat(got)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestArtifactRepairsWrongLink(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	pc := testContext(t, managed)

	stale := filepath.Join(pc.Record.Path, "old.yml")
	require.NoError(t, os.WriteFile(stale, []byte("old\n"), 0o644))
	require.NoError(t, os.Symlink(stale, policy.path("web")))

	source := filepath.Join(pc.Record.Path, "docker-compose.yml")
	require.NoError(t, os.WriteFile(source, []byte("services: {}\n"), 0o644))

	got, err := policy.resolve(pc, []string{"docker-compose.yml"}, nil)
	require.NoError(t, err)
	target, err := os.Readlink(got)
	require.NoError(t, err)
	assert.Equal(t, source, target)
}

func TestArtifactSynthesizesWhenNothingExists(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	pc := testContext(t, managed)

	got, err := policy.resolve(pc, []string{"docker-compose.yml"}, func() ([]byte, error) {
		return []byte(GenerationMarker + "\nservices: {}\n"), nil
	})
	require.NoError(t, err)
	assert.True(t, hasGenerationMarker(got))
}

func TestArtifactFailsClosedWithoutOperator(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	pc := testContext(t, managed)
	pc.Interactive = false

	_, err := policy.resolve(pc, []string{"docker-compose.yml"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNonInteractive))
}

func TestArtifactReplaceRotatesTwoBackups(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	target := policy.path("web")

	require.NoError(t, os.WriteFile(target, []byte("v3\n"), 0o644))
	require.NoError(t, os.WriteFile(target+backupExt, []byte("v2\n"), 0o644))
	require.NoError(t, os.WriteFile(target+backupExt2, []byte("v1\n"), 0o644))

	require.NoError(t, policy.replace(target, []byte("v4\n")))

	current, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v4\n", string(current))

	bak, err := os.ReadFile(target + backupExt)
	require.NoError(t, err)
	assert.Equal(t, "v3\n", string(bak), "newest backup must hold the prior current")

	bak2, err := os.ReadFile(target + backupExt2)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(bak2), "prior bak must shift to bak2, discarding the oldest")
}

func TestArtifactReplaceIdenticalContentLeavesNoBackup(t *testing.T) {
	managed := t.TempDir()
	policy := artifactPolicy{managedDir: managed, ext: ".yml"}
	target := policy.path("web")

	require.NoError(t, os.WriteFile(target, []byte("same\n"), 0o644))
	require.NoError(t, policy.replace(target, []byte("same\n")))

	_, err := os.Lstat(target + backupExt)
	assert.True(t, os.IsNotExist(err), "identical content must not create a backup")
}

func TestHasGenerationMarker(t *testing.T) {
	dir := t.TempDir()
	marked := filepath.Join(dir, "marked.yml")
	require.NoError(t, os.WriteFile(marked, []byte(GenerationMarker+"\nservices: {}\n"), 0o644))
	plain := filepath.Join(dir, "plain.yml")
	require.NoError(t, os.WriteFile(plain, []byte("services: {}\n"), 0o644))

	assert.True(t, hasGenerationMarker(marked))
	assert.False(t, hasGenerationMarker(plain))
	assert.False(t, hasGenerationMarker(filepath.Join(dir, "absent.yml")))
}
