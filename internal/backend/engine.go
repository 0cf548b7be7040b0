package backend

import (
	"context"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// composeProjectLabel is the label compose stamps on every container of a
// stack; status queries key on it.
const composeProjectLabel = "com.docker.compose.project"

// EngineClient is the slice of the Docker Engine API the container driver
// needs. The compose CLI handles stack lifecycle; the engine API answers
// status queries and handles image bookkeeping.
type EngineClient interface {
	// RunningContainers counts the running containers of a compose project.
	RunningContainers(ctx context.Context, composeProject string) (int, error)

	// PullImage pulls one image reference.
	PullImage(ctx context.Context, ref string) error

	// RemoveImage removes one image reference.
	RemoveImage(ctx context.Context, ref string) error

	// DanglingImages lists ids of images left unreferenced by a same-tag
	// replacement.
	DanglingImages(ctx context.Context) ([]string, error)

	// PruneDangling removes dangling images and reports reclaimed bytes.
	PruneDangling(ctx context.Context) (uint64, error)

	// Close releases the underlying connection.
	Close() error
}

// DockerEngine implements EngineClient against a real Docker daemon.
type DockerEngine struct {
	cli *client.Client
}

// NewDockerEngine dials the daemon using the standard environment
// configuration (DOCKER_HOST and friends).
func NewDockerEngine() (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.NewExternalToolError("failed to create docker client", err).
			WithTool("docker")
	}
	return &DockerEngine{cli: cli}, nil
}

// RunningContainers counts the running containers of a compose project.
func (e *DockerEngine) RunningContainers(ctx context.Context, composeProject string) (int, error) {
	args := filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+composeProject))
	containers, err := e.cli.ContainerList(ctx, container.ListOptions{Filters: args})
	if err != nil {
		return 0, errors.NewExternalToolError("failed to list containers", err).
			WithTool("docker")
	}
	return len(containers), nil
}

// PullImage pulls one image reference, draining the progress stream.
func (e *DockerEngine) PullImage(ctx context.Context, ref string) error {
	rc, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.NewExternalToolError("failed to pull image "+ref, err).
			WithTool("docker")
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return errors.NewExternalToolError("image pull stream failed for "+ref, err).
			WithTool("docker")
	}
	return nil
}

// RemoveImage removes one image reference.
func (e *DockerEngine) RemoveImage(ctx context.Context, ref string) error {
	_, err := e.cli.ImageRemove(ctx, ref, image.RemoveOptions{})
	if err != nil {
		return errors.NewExternalToolError("failed to remove image "+ref, err).
			WithTool("docker")
	}
	return nil
}

// DanglingImages lists ids of dangling images.
func (e *DockerEngine) DanglingImages(ctx context.Context) ([]string, error) {
	args := filters.NewArgs(filters.Arg("dangling", "true"))
	images, err := e.cli.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return nil, errors.NewExternalToolError("failed to list dangling images", err).
			WithTool("docker")
	}
	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids, nil
}

// PruneDangling removes dangling images.
func (e *DockerEngine) PruneDangling(ctx context.Context) (uint64, error) {
	args := filters.NewArgs(filters.Arg("dangling", "true"))
	report, err := e.cli.ImagesPrune(ctx, args)
	if err != nil {
		return 0, errors.NewExternalToolError("failed to prune dangling images", err).
			WithTool("docker")
	}
	return report.SpaceReclaimed, nil
}

// Close releases the underlying connection.
func (e *DockerEngine) Close() error {
	return e.cli.Close()
}

var _ EngineClient = (*DockerEngine)(nil)

// lazyEngine defers dialing the daemon until the first engine call, so
// commands that never touch a container project work without a running
// daemon.
type lazyEngine struct {
	mu     sync.Mutex
	engine EngineClient
}

func (l *lazyEngine) get() (EngineClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine == nil {
		engine, err := NewDockerEngine()
		if err != nil {
			return nil, err
		}
		l.engine = engine
	}
	return l.engine, nil
}

func (l *lazyEngine) RunningContainers(ctx context.Context, composeProject string) (int, error) {
	e, err := l.get()
	if err != nil {
		return 0, err
	}
	return e.RunningContainers(ctx, composeProject)
}

func (l *lazyEngine) PullImage(ctx context.Context, ref string) error {
	e, err := l.get()
	if err != nil {
		return err
	}
	return e.PullImage(ctx, ref)
}

func (l *lazyEngine) RemoveImage(ctx context.Context, ref string) error {
	e, err := l.get()
	if err != nil {
		return err
	}
	return e.RemoveImage(ctx, ref)
}

func (l *lazyEngine) DanglingImages(ctx context.Context) ([]string, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.DanglingImages(ctx)
}

func (l *lazyEngine) PruneDangling(ctx context.Context) (uint64, error) {
	e, err := l.get()
	if err != nil {
		return 0, err
	}
	return e.PruneDangling(ctx)
}

func (l *lazyEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engine == nil {
		return nil
	}
	return l.engine.Close()
}

var _ EngineClient = (*lazyEngine)(nil)
