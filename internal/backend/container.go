package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JeredArc/jeredmgr/internal/confirm"
	"github.com/JeredArc/jeredmgr/internal/errors"
)

// composeExt is the managed artifact extension for container projects.
const composeExt = ".yml"

// ContainerDriver manages docker-compose stacks. The compose CLI drives
// the stack lifecycle; the Engine API answers status queries and image
// bookkeeping.
type ContainerDriver struct {
	runner        CommandRunner
	engine        EngineClient
	compose       []string
	buildFileName string
	candidates    []string
	policy        artifactPolicy
}

// NewContainerDriver creates a container driver. composeCommand is the
// compose invocation split into argv form, e.g. ["docker", "compose"].
func NewContainerDriver(runner CommandRunner, engine EngineClient, managedDir string, composeCommand []string, descriptorName, buildFileName string) *ContainerDriver {
	candidates := []string{descriptorName}
	for _, fallback := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yaml", "compose.yml"} {
		if fallback != descriptorName {
			candidates = append(candidates, fallback)
		}
	}
	return &ContainerDriver{
		runner:        runner,
		engine:        engine,
		compose:       composeCommand,
		buildFileName: buildFileName,
		candidates:    candidates,
		policy: artifactPolicy{
			managedDir: managedDir,
			ext:        composeExt,
		},
	}
}

func (d *ContainerDriver) composeRun(ctx context.Context, pc ProjectContext, artifact string, args ...string) ([]byte, error) {
	full := append([]string{}, d.compose[1:]...)
	full = append(full, "-f", artifact, "-p", pc.Record.ID)
	full = append(full, args...)
	return d.runner.Run(ctx, pc.Record.Path, d.compose[0], full...)
}

// Install resolves the compose descriptor for the project, synthesizing
// one from the build file when the project ships no descriptor of its own.
func (d *ContainerDriver) Install(ctx context.Context, pc ProjectContext) error {
	_, err := d.policy.resolve(pc, d.candidates, func() ([]byte, error) {
		return d.synthesizeDescriptor(pc)
	})
	return err
}

// Start brings the stack up detached.
func (d *ContainerDriver) Start(ctx context.Context, pc ProjectContext) error {
	artifact, ok := d.policy.locate(pc.Record.ID)
	if !ok {
		return errors.NewNotFoundError("compose descriptor for project", pc.Record.ID).
			WithCause(errors.ErrArtifactMissing)
	}
	output, err := d.composeRun(ctx, pc, artifact, "up", "-d")
	if err != nil {
		return toolError("failed to start stack", "compose", pc.Record.ID, output, err)
	}
	return nil
}

// Stop tears the stack down completely. A stopped container project does
// not come back on host reboot; that asymmetry with the service driver is
// deliberate.
func (d *ContainerDriver) Stop(ctx context.Context, pc ProjectContext) error {
	artifact, ok := d.policy.locate(pc.Record.ID)
	if !ok {
		return errors.NewNotFoundError("compose descriptor for project", pc.Record.ID).
			WithCause(errors.ErrArtifactMissing)
	}
	output, err := d.composeRun(ctx, pc, artifact, "down")
	if err != nil {
		return toolError("failed to tear down stack", "compose", pc.Record.ID, output, err)
	}
	return nil
}

// Restart tears down and brings the stack back up so a changed descriptor
// takes effect.
func (d *ContainerDriver) Restart(ctx context.Context, pc ProjectContext) error {
	if err := d.Stop(ctx, pc); err != nil {
		return err
	}
	return d.Start(ctx, pc)
}

// Status counts the stack's running containers via the Engine API.
func (d *ContainerDriver) Status(ctx context.Context, pc ProjectContext) (confirm.State, error) {
	if _, ok := d.policy.locate(pc.Record.ID); !ok {
		return confirm.StateUnknown, nil
	}
	running, err := d.engine.RunningContainers(ctx, pc.Record.ID)
	if err != nil {
		return confirm.StateUnknown, err
	}
	if running > 0 {
		return confirm.StateRunning, nil
	}
	return confirm.StateStopped, nil
}

// Uninstall tears the stack down and removes the managed descriptor.
// Images are removed only when the descriptor carries the generation
// marker proving this tool authored it.
func (d *ContainerDriver) Uninstall(ctx context.Context, pc ProjectContext) error {
	artifact, ok := d.policy.locate(pc.Record.ID)
	if !ok {
		return nil
	}

	if state, err := d.Status(ctx, pc); err == nil && state == confirm.StateRunning {
		if err := d.Stop(ctx, pc); err != nil {
			return err
		}
	}

	if hasGenerationMarker(artifact) {
		images, err := composeImages(artifact)
		if err != nil {
			pc.Logger.Warn("could not parse descriptor for image cleanup", "error", err)
		}
		for _, ref := range images {
			if err := d.engine.RemoveImage(ctx, ref); err != nil {
				pc.Logger.Warn("could not remove image", "image", ref, "error", err)
			}
		}
	}

	return d.policy.remove(pc.Record.ID)
}

// Logs streams compose logs to pc.Out.
func (d *ContainerDriver) Logs(ctx context.Context, pc ProjectContext, opts LogOptions) error {
	artifact, ok := d.policy.locate(pc.Record.ID)
	if !ok {
		return errors.NewNotFoundError("compose descriptor for project", pc.Record.ID).
			WithCause(errors.ErrArtifactMissing)
	}
	args := append([]string{}, d.compose[1:]...)
	args = append(args, "-f", artifact, "-p", pc.Record.ID, "logs")
	if opts.Lines > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Lines))
	}
	if opts.Follow {
		args = append(args, "-f")
	}
	if err := d.runner.RunStreaming(ctx, pc.Record.Path, pc.Out, d.compose[0], args...); err != nil {
		return toolError("failed to stream logs", "compose", pc.Record.ID, nil, err)
	}
	return nil
}

// Images returns the image references named by the project's descriptor.
// Build-only services with no image tag are skipped.
func (d *ContainerDriver) Images(pc ProjectContext) ([]string, error) {
	artifact, ok := d.policy.locate(pc.Record.ID)
	if !ok {
		return nil, errors.NewNotFoundError("compose descriptor for project", pc.Record.ID).
			WithCause(errors.ErrArtifactMissing)
	}
	return composeImages(artifact)
}

// PullImage pulls one image reference.
func (d *ContainerDriver) PullImage(ctx context.Context, ref string) error {
	return d.engine.PullImage(ctx, ref)
}

// DanglingImages lists images left unreferenced after same-tag pulls.
func (d *ContainerDriver) DanglingImages(ctx context.Context) ([]string, error) {
	return d.engine.DanglingImages(ctx)
}

// PruneDangling removes dangling images and reports reclaimed bytes.
func (d *ContainerDriver) PruneDangling(ctx context.Context) (uint64, error) {
	return d.engine.PruneDangling(ctx)
}

var _ Driver = (*ContainerDriver)(nil)

// composeDocument is the slice of a compose file the driver reads.
type composeDocument struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

func composeImages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading compose descriptor")
	}
	var doc composeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewValidationError("malformed compose descriptor").
			WithField("descriptor").
			WithValue(path).
			WithCause(err)
	}
	var images []string
	for _, svc := range doc.Services {
		if svc.Image != "" {
			images = append(images, svc.Image)
		}
	}
	return images, nil
}

// synthesizeDescriptor builds a minimal compose descriptor from the
// project's build file, carrying over declared ports and environment.
// It returns nil content when no build file exists, letting the selection
// chain escalate.
func (d *ContainerDriver) synthesizeDescriptor(pc ProjectContext) ([]byte, error) {
	buildFile := filepath.Join(pc.Record.Path, d.buildFileName)
	f, err := os.Open(buildFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading build file")
	}
	defer f.Close()

	var ports, env []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "EXPOSE "):
			for _, p := range strings.Fields(line)[1:] {
				p = strings.TrimSuffix(p, "/tcp")
				ports = append(ports, fmt.Sprintf("%s:%s", p, p))
			}
		case strings.HasPrefix(line, "ENV "):
			decl := strings.TrimSpace(strings.TrimPrefix(line, "ENV "))
			decl = strings.Replace(decl, " ", "=", 1)
			if strings.Contains(decl, "=") {
				env = append(env, decl)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning build file")
	}

	service := map[string]any{
		"build":   pc.Record.Path,
		"restart": "unless-stopped",
	}
	if len(ports) > 0 {
		service["ports"] = ports
	}
	if len(env) > 0 {
		service["environment"] = env
	}
	doc := map[string]any{
		"services": map[string]any{pc.Record.ID: service},
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding synthesized descriptor")
	}
	var buf bytes.Buffer
	buf.WriteString(GenerationMarker + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
