package compilation

import (
	"github.com/crytic/stencil/compilation/platforms"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/metrics"
)

// SourceCompilerOption configures a SourceCompiler.
type SourceCompilerOption func(*SourceCompiler)

// WithPlatform sets the compiler backend.
func WithPlatform(platform platforms.PlatformConfig) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.platform = platform
	}
}

// WithLogger sets the logger the compiler creates its sub-logger from.
func WithLogger(logger *logging.Logger) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.logger = logger.NewSubLogger("module", logging.COMPILATION_SERVICE)
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.recorder = recorder
	}
}

// WithJournal sets the journal builds are recorded to.
func WithJournal(journal Journal) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.journal = journal
	}
}

// WithWorkRoot sets the directory sandboxes are created under.
func WithWorkRoot(workRoot string) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.workRoot = workRoot
	}
}

// WithVersion sets the semantic version recorded in the artifact identity.
func WithVersion(version string) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.version = version
	}
}

// WithRegistry sets the registry references are resolved from and current modules are registered to.
func WithRegistry(registry *resolver.Registry) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.registry = registry
	}
}

// WithSearchPaths adds directories searched for references which are not absolute paths.
func WithSearchPaths(searchPaths ...string) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.searchPaths = append(c.searchPaths, searchPaths...)
	}
}

// WithModulePath sets the module path of the module generated in each sandbox.
func WithModulePath(modulePath string) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.modulePath = modulePath
	}
}

// WithEnv adds environment variables ("KEY=value") passed to the backend.
func WithEnv(env ...string) SourceCompilerOption {
	return func(c *SourceCompiler) {
		c.env = append(c.env, env...)
	}
}
