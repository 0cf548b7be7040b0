package backend

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// GenerationMarker tags descriptors this tool synthesized. Image cleanup
// on uninstall only ever touches images named by a marked descriptor;
// hand-authored descriptors and their images are never altered.
const GenerationMarker = "# generated by jeredmgr"

// Backup suffixes. backupExt is the newest generation, backupExt2 the
// oldest; rotation discards the oldest and shifts the newer one down.
const (
	backupExt  = ".bak"
	backupExt2 = ".bak2"
)

// artifactPolicy implements the descriptor selection and replacement rules
// shared by the container and service drivers.
type artifactPolicy struct {
	// managedDir holds the authoritative artifact per project.
	managedDir string

	// ext is the artifact file extension, including the dot.
	ext string
}

// path returns the managed artifact location for a project id.
func (p artifactPolicy) path(id string) string {
	return filepath.Join(p.managedDir, id+p.ext)
}

// locate returns the managed artifact path if an artifact is already
// installed: either an authoritative regular file or a symlink that still
// resolves. The boolean reports whether one was found.
func (p artifactPolicy) locate(id string) (string, bool) {
	target := p.path(id)
	info, err := os.Lstat(target)
	if err != nil {
		return "", false
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return target, true
	}
	if _, err := os.Stat(target); err == nil {
		return target, true
	}
	return "", false
}

// resolve selects the artifact for a project, in priority order: an
// authoritative regular file in the managed dir; a candidate file in the
// project path, most specific first (linked into the managed dir,
// repairing a wrong link); a still-resolving pre-existing symlink;
// synthesized content when the driver can produce it. Anything else needs
// the operator.
func (p artifactPolicy) resolve(pc ProjectContext, candidates []string, synthesize func() ([]byte, error)) (string, error) {
	target := p.path(pc.Record.ID)

	info, err := os.Lstat(target)
	exists := err == nil
	isLink := exists && info.Mode()&os.ModeSymlink != 0

	if exists && !isLink {
		return target, nil
	}

	for _, name := range candidates {
		source := filepath.Join(pc.Record.Path, name)
		if _, err := os.Stat(source); err != nil {
			continue
		}
		if err := ensureSymlink(source, target); err != nil {
			return "", err
		}
		return target, nil
	}

	if isLink {
		if _, err := os.Stat(target); err == nil {
			return target, nil
		}
		// Dangling link: the source it aliased is gone.
		_ = os.Remove(target)
	}

	if synthesize != nil {
		content, err := synthesize()
		if err != nil {
			return "", err
		}
		if content != nil {
			if err := p.replace(target, content); err != nil {
				return "", err
			}
			return target, nil
		}
	}

	if !pc.Interactive {
		return "", errors.NewNotFoundError("artifact for project", pc.Record.ID).
			WithCause(errors.ErrNonInteractive)
	}
	return "", errors.NewNotFoundError("artifact for project", pc.Record.ID).
		WithCause(errors.ErrArtifactMissing)
}

// replace writes new artifact content, rotating up to two backup
// generations. Byte-identical content replaces nothing and leaves no
// backup behind.
func (p artifactPolicy) replace(target string, content []byte) error {
	existing, err := os.ReadFile(target)
	if err == nil && bytes.Equal(existing, content) {
		return nil
	}

	if err == nil {
		bak := target + backupExt
		bak2 := target + backupExt2
		if _, err := os.Lstat(bak); err == nil {
			_ = os.Remove(bak2)
			if err := os.Rename(bak, bak2); err != nil {
				return errors.Wrap(err, "rotating artifact backup")
			}
		}
		if err := os.Rename(target, bak); err != nil {
			return errors.Wrap(err, "backing up artifact")
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "creating managed directory")
	}
	if err := renameio.WriteFile(target, content, 0o644); err != nil {
		return errors.Wrap(err, "writing artifact")
	}
	return nil
}

// remove deletes the managed artifact, leaving any backups in place.
func (p artifactPolicy) remove(id string) error {
	err := os.Remove(p.path(id))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing artifact")
	}
	return nil
}

// hasGenerationMarker reports whether the artifact at path carries the
// generation marker, following symlinks.
func hasGenerationMarker(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), GenerationMarker)
}

// ensureSymlink makes target a symlink to source, leaving a correct
// existing link alone and repairing a wrong one.
func ensureSymlink(source, target string) error {
	if existing, err := os.Readlink(target); err == nil {
		if existing == source {
			return nil
		}
		if err := os.Remove(target); err != nil {
			return errors.Wrap(err, "removing stale artifact link")
		}
	} else if _, err := os.Lstat(target); err == nil {
		// A regular file is authoritative; never replace it with a link.
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "creating managed directory")
	}
	if err := os.Symlink(source, target); err != nil {
		return errors.Wrap(err, "linking artifact")
	}
	return nil
}
