package toolchain

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/997R8V10/aviation-calc-util/x/cmake"
)

// Phases of a toolchain invocation.
const (
	PhaseConfigure = "configure"
	PhaseBuild     = "build"
)

// PhaseError reports a failed toolchain phase.
type PhaseError struct {
	Phase   string
	Package string
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Package, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Controller runs configure then build.
type Controller struct {
	// Runner executes cmake. Nil means cmake.ExecRunner.
	Runner cmake.Runner
	Logger hclog.Logger
}

// Run configures and builds cfg. Build is not attempted when configure
// fails.
func (ctl *Controller) Run(ctx context.Context, cfg Config) error {
	logger := ctl.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	adapter, err := AdapterFor(cfg.Adapter)
	if err != nil {
		return &PhaseError{Phase: PhaseConfigure, Package: cfg.Package, Err: err}
	}

	c := cmake.New(cfg.SourceDir, cfg.BuildDir, cfg.InstallDir)
	if ctl.Runner != nil {
		c.Runner(ctl.Runner)
	}
	c.Generator(cfg.Generator)
	c.BuildType(string(cfg.BuildType))
	c.MultiConfig(cfg.MultiConfig)
	c.Target(cfg.Target)
	for _, root := range cfg.PrefixPaths {
		c.Use(root)
	}
	if err := adapter.Apply(cfg, c); err != nil {
		return &PhaseError{Phase: PhaseConfigure, Package: cfg.Package, Err: err}
	}

	logger.Info("configuring", "package", cfg.Package, "adapter", cfg.Adapter, "build_type", cfg.BuildType, "multi_config", cfg.MultiConfig)
	if err := c.Configure(ctx); err != nil {
		return &PhaseError{Phase: PhaseConfigure, Package: cfg.Package, Err: err}
	}
	logger.Info("building", "package", cfg.Package, "target", cfg.Target)
	if err := c.Build(ctx); err != nil {
		return &PhaseError{Phase: PhaseBuild, Package: cfg.Package, Err: err}
	}
	return nil
}
