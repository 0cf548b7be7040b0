package backend

import (
	"strings"

	"github.com/JeredArc/jeredmgr/internal/config"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/project"
)

// Factory hands out the driver matching a record's type. Drivers are
// stateless, so one instance per type serves every project.
type Factory struct {
	container *ContainerDriver
	service   *ServiceDriver
	scripts   *ScriptsDriver
}

// FactoryOption configures a Factory.
type FactoryOption func(*factorySettings)

type factorySettings struct {
	runner CommandRunner
	engine EngineClient
}

// WithRunner overrides subprocess execution. This is primarily useful for
// testing.
func WithRunner(runner CommandRunner) FactoryOption {
	return func(s *factorySettings) {
		s.runner = runner
	}
}

// WithEngine overrides the Docker Engine client. This is primarily useful
// for testing.
func WithEngine(engine EngineClient) FactoryOption {
	return func(s *factorySettings) {
		s.engine = engine
	}
}

// NewFactory builds the driver set from configuration. The Docker Engine
// client is dialed lazily, so non-container commands never require a
// running daemon.
func NewFactory(cfg *config.Config, managedDir string, opts ...FactoryOption) *Factory {
	s := factorySettings{
		runner: NewExecRunner(),
		engine: &lazyEngine{},
	}
	for _, opt := range opts {
		opt(&s)
	}

	composeCommand := strings.Fields(cfg.Container.ComposeCommand)
	if len(composeCommand) == 0 {
		composeCommand = []string{"docker", "compose"}
	}

	return &Factory{
		container: NewContainerDriver(s.runner, s.engine, managedDir,
			composeCommand, cfg.Container.DescriptorName, cfg.Container.BuildFileName),
		service: NewServiceDriver(s.runner, managedDir,
			cfg.Service.SystemctlPath, cfg.Service.JournalctlPath),
		scripts: NewScriptsDriver(s.runner),
	}
}

// ForRecord returns the driver for a record's type. Unknown types have no
// driver; only removal is allowed for them.
func (f *Factory) ForRecord(r *project.Record) (Driver, error) {
	switch r.Type {
	case project.TypeContainer:
		return f.container, nil
	case project.TypeService:
		return f.service, nil
	case project.TypeScripts:
		return f.scripts, nil
	case project.TypeUnknown:
		fallthrough
	default:
		return nil, errors.NewValidationError("project type supports no lifecycle operations").
			WithField("type").
			WithValue(r.TypeName()).
			WithCause(errors.ErrUnknownType)
	}
}

// Container returns the container driver for image-level operations that
// have no place on the generic Driver surface.
func (f *Factory) Container() *ContainerDriver {
	return f.container
}
