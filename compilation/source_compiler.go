package compilation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/platforms"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/compilation/sandbox"
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/logging/colors"
	"github.com/crytic/stencil/metrics"
	"github.com/crytic/stencil/template"
	"github.com/crytic/stencil/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	// UnexpectedExceptionMessage heads the error list of a pass which failed outside normal compilation.
	UnexpectedExceptionMessage = "Unexpected Exception"

	// SigningNamespace is the namespace of the marker unit naming the signing key.
	SigningNamespace = "signing"

	// SigningUnitName is the name of the marker unit naming the signing key.
	SigningUnitName = "KeyFile"

	// DefaultVersion is the artifact version used when none is configured.
	DefaultVersion = "1.0.0"
)

// ErrBuildFailed indicates a build which produced no artifact.
var ErrBuildFailed = errors.New("build produced no artifact")

// Journal records builds and their passes.
type Journal interface {
	BeginBuild(ctx context.Context, id string, name string, retryBudget int) error
	RecordAttempt(ctx context.Context, buildID string, attempt *types.Attempt) error
	FinishBuild(ctx context.Context, id string, artifactPath string, outcome string) error
}

// SourceCompiler compiles a set of translation units into a single artifact on a best effort basis. Each pass runs
// in its own sandbox; units which a pass reports diagnostics for are left out of the next pass until the remaining
// units compile or the retry budget is exhausted.
type SourceCompiler struct {
	// name is the name of the artifact.
	name string

	// outputPath is the path the artifact is written to.
	outputPath string

	// descriptor holds every unit and reference added to the compiler.
	descriptor *types.CompilationDescriptor

	// signingKeyPath is the key the artifact is signed with, if any.
	signingKeyPath string

	platform    platforms.PlatformConfig
	logger      *logging.Logger
	recorder    metrics.Recorder
	journal     Journal
	registry    *resolver.Registry
	workRoot    string
	version     string
	modulePath  string
	searchPaths []string
	env         []string

	// errors holds one formatted error list per failed pass of the last build.
	errors [][]string

	// attempts holds the attempts of the last build.
	attempts []*types.Attempt

	// buildLock allows a single build at a time.
	buildLock sync.Mutex

	// Events describes the event system for the SourceCompiler.
	Events SourceCompilerEvents
}

// NewSourceCompiler creates a SourceCompiler writing the artifact name to outputDirectory. An artifact left at the
// output path by a previous build is removed.
func NewSourceCompiler(name string, outputDirectory string, options ...SourceCompilerOption) (*SourceCompiler, error) {
	if name == "" {
		return nil, errors.New("an artifact name is required")
	}

	c := &SourceCompiler{
		name:        name,
		outputPath:  filepath.Join(outputDirectory, name+artifacts.FileExtension),
		descriptor:  types.NewCompilationDescriptor(),
		platform:    GetDefaultPlatformConfig(platforms.GoToolchainPlatform),
		logger:      logging.GlobalLogger.NewSubLogger("module", logging.COMPILATION_SERVICE),
		recorder:    metrics.NoopRecorder{},
		registry:    resolver.Default(),
		workRoot:    filepath.Join(os.TempDir(), "stencil"),
		version:     DefaultVersion,
		modulePath:  sandbox.DefaultModulePath,
		searchPaths: make([]string, 0),
		env:         make([]string, 0),
		errors:      make([][]string, 0),
		attempts:    make([]*types.Attempt, 0),
	}
	for _, option := range options {
		option(c)
	}
	if c.platform == nil {
		return nil, errors.New("a compilation platform is required")
	}

	if err := utils.MakeDirectory(outputDirectory); err != nil {
		return nil, err
	}
	if err := utils.DeleteFile(c.outputPath); err != nil {
		return nil, errors.Wrap(err, "could not remove stale artifact")
	}
	return c, nil
}

// Name returns the name of the artifact.
func (c *SourceCompiler) Name() string {
	return c.name
}

// OutputPath returns the path the artifact is written to.
func (c *SourceCompiler) OutputPath() string {
	return c.outputPath
}

// UnitCount returns the number of units added to the compiler.
func (c *SourceCompiler) UnitCount() int {
	return c.descriptor.UnitCount()
}

// AddUnit adds a translation unit and returns its qualified name.
func (c *SourceCompiler) AddUnit(namespace string, name string, source string) (string, error) {
	return c.descriptor.AddUnit(namespace, name, source)
}

// AddClass renders the class and adds it as a translation unit.
func (c *SourceCompiler) AddClass(class *template.Class) (string, error) {
	return c.AddUnit(class.Namespace, class.Name, class.Render())
}

// AddTemplate transpiles the template text into a class with the provided name and namespace and adds it as a
// translation unit.
func (c *SourceCompiler) AddTemplate(text string, className string, namespace string) (string, error) {
	class, err := template.Transpile(text, className, namespace)
	if err != nil {
		return "", err
	}
	return c.AddClass(class)
}

// AddReference adds a reference by path or identifier. Repeated references are ignored.
func (c *SourceCompiler) AddReference(pathOrIdentifier string) {
	c.descriptor.AddReference(pathOrIdentifier)
}

// LoadCurrentModules registers the module hosting the compiler and the modules of the running binary to the
// registry, and adds each of them as a reference.
func (c *SourceCompiler) LoadCurrentModules() error {
	modules, err := resolver.CurrentModules()
	if err != nil {
		return err
	}
	for _, module := range modules {
		c.registry.Register(module)
		c.descriptor.AddReference(module.Path)
	}
	c.logger.Debug("Loaded ", len(modules), " module(s) of the running process")
	return nil
}

// SetSigningKeyPath sets the key the artifact is signed with.
func (c *SourceCompiler) SetSigningKeyPath(path string) {
	c.signingKeyPath = path
}

// Errors returns one error list per failed pass of the last build.
func (c *SourceCompiler) Errors() [][]string {
	return slices.Clone(c.errors)
}

// HasErrors indicates whether any pass of the last build failed.
func (c *SourceCompiler) HasErrors() bool {
	return len(c.errors) > 0
}

// Attempts returns the attempts of the last build, in pass order.
func (c *SourceCompiler) Attempts() []*types.Attempt {
	return slices.Clone(c.attempts)
}

// addSigningUnit adds the marker unit naming the signing key, once.
func (c *SourceCompiler) addSigningUnit() error {
	if c.signingKeyPath == "" {
		return nil
	}
	if _, exists := c.descriptor.Unit(SigningNamespace + "." + SigningUnitName); exists {
		return nil
	}

	keyPath, err := filepath.Abs(c.signingKeyPath)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = c.descriptor.AddUnit(SigningNamespace, SigningUnitName, artifacts.KeyFileSource(SigningNamespace, keyPath))
	return err
}

// Compile runs up to retryBudget passes, dropping the units each failed pass reports diagnostics for, until a pass
// produces an artifact. An artifact left at the output path by an earlier build is removed first. A budget below one
// is raised to one. Returns the artifact path, or ErrBuildFailed if no pass
// produced an artifact.
func (c *SourceCompiler) Compile(ctx context.Context, retryBudget int) (string, error) {
	c.buildLock.Lock()
	defer c.buildLock.Unlock()

	if retryBudget < 1 {
		retryBudget = 1
	}
	c.errors = make([][]string, 0)
	c.attempts = make([]*types.Attempt, 0)
	if err := utils.DeleteFile(c.outputPath); err != nil {
		return "", errors.Wrap(err, "could not remove previous artifact")
	}
	if err := c.addSigningUnit(); err != nil {
		return "", err
	}

	buildID := uuid.NewString()
	start := time.Now()
	if c.journal != nil {
		if err := c.journal.BeginBuild(ctx, buildID, c.name, retryBudget); err != nil {
			c.logger.Warn("Could not record build in the journal", err)
		}
	}
	c.logger.Info("Compiling ", colors.Bold, c.name, colors.Reset, " (", c.descriptor.UnitCount(), " unit(s), budget ", retryBudget, ")")

	working := c.descriptor.Clone()
	artifactPath := ""
	var buildErr error
	for pass := 1; retryBudget > 0; pass++ {
		if working.UnitCount() == 0 {
			c.logger.Warn("No units left to compile")
			break
		}
		retryBudget--

		attempt, err := c.runPass(ctx, buildID, pass, working)
		if err != nil && !errors.Is(err, sandbox.ErrUnexpectedAttemptFailure) {
			// An event handler aborted the build.
			buildErr = err
			break
		}
		if err != nil {
			c.logger.Error("Pass ", pass, " failed unexpectedly", err)
			c.errors = append(c.errors, []string{UnexpectedExceptionMessage, err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if attempt.Succeeded {
			artifactPath = attempt.ArtifactPath
			break
		}

		c.errors = append(c.errors, formatDiagnostics(attempt.Diagnostics))
		erroneous := attempt.ErroneousUnits()
		if len(erroneous) == 0 {
			c.logger.Error("Pass ", pass, " failed without naming a unit, the remaining units cannot be compiled")
			break
		}
		c.logger.Warn("Pass ", pass, " dropped ", colors.Yellow, len(erroneous), colors.Reset, " unit(s): ", erroneous)
		working = working.Without(erroneous)
	}

	return c.finishBuild(ctx, buildID, start, artifactPath, buildErr)
}

// runPass compiles the working set in a new sandbox, which is destroyed before returning. Unexpected failures of
// the pass match sandbox.ErrUnexpectedAttemptFailure; any other error was returned by an event handler.
func (c *SourceCompiler) runPass(ctx context.Context, buildID string, pass int, working *types.CompilationDescriptor) (*types.Attempt, error) {
	s, err := sandbox.Create(sandbox.Options{
		Pass:         pass,
		WorkRoot:     c.workRoot,
		BuildID:      buildID,
		ArtifactName: c.name,
		OutputPath:   c.outputPath,
		ModulePath:   c.modulePath,
		Version:      c.version,
		Platform:     c.platform,
		Registry:     c.registry,
		SearchPaths:  c.searchPaths,
		Env:          c.env,
		Logger:       c.logger,
	})
	if err != nil {
		err = &sandbox.AttemptFailureError{Pass: pass, Err: err}
		if publishErr := c.Events.PassCompleted.Publish(PassCompletedEvent{Compiler: c, BuildID: buildID, Err: err}); publishErr != nil {
			return nil, publishErr
		}
		return nil, err
	}
	defer func() {
		if destroyErr := s.Destroy(); destroyErr != nil {
			c.logger.Warn("Could not destroy sandbox ", s.Root(), destroyErr)
		}
	}()

	units := make([]string, 0, working.UnitCount())
	for _, unit := range working.Units() {
		units = append(units, unit.QualifiedName())
	}
	if err = c.Events.PassStarting.Publish(PassStartingEvent{Compiler: c, BuildID: buildID, Pass: pass, Units: units}); err != nil {
		return nil, err
	}

	attempt, err := s.Run(ctx, working)
	if attempt != nil {
		c.recordAttempt(ctx, buildID, attempt, err)
	}
	if publishErr := c.Events.PassCompleted.Publish(PassCompletedEvent{Compiler: c, BuildID: buildID, Attempt: attempt, Err: err}); publishErr != nil {
		return nil, publishErr
	}
	return attempt, err
}

// recordAttempt stores the attempt and reports it to the recorder and journal.
func (c *SourceCompiler) recordAttempt(ctx context.Context, buildID string, attempt *types.Attempt, err error) {
	c.attempts = append(c.attempts, attempt)

	result := metrics.PassFailed
	if err != nil {
		result = metrics.PassUnexpected
	} else if attempt.Succeeded {
		result = metrics.PassSucceeded
	}
	c.recorder.IncPassResult(result)
	c.recorder.ObservePassDuration(result, attempt.Duration)

	if c.journal != nil {
		if journalErr := c.journal.RecordAttempt(ctx, buildID, attempt); journalErr != nil {
			c.logger.Warn("Could not record pass in the journal", journalErr)
		}
	}
}

// finishBuild reports the outcome of a build and returns the result of Compile.
func (c *SourceCompiler) finishBuild(ctx context.Context, buildID string, start time.Time, artifactPath string, buildErr error) (string, error) {
	dropped := c.droppedUnits(artifactPath)
	outcome := metrics.BuildFailed
	if artifactPath != "" {
		outcome = metrics.BuildComplete
		if len(dropped) > 0 {
			outcome = metrics.BuildPartial
		}
	}
	c.recorder.ObserveBuildDuration(time.Since(start))
	c.recorder.IncBuildOutcome(outcome)
	c.recorder.AddDroppedUnits(len(dropped))

	if c.journal != nil {
		// The build is recorded even if ctx was cancelled.
		if err := c.journal.FinishBuild(context.WithoutCancel(ctx), buildID, artifactPath, string(outcome)); err != nil {
			c.logger.Warn("Could not record build outcome in the journal", err)
		}
	}

	publishErr := c.Events.BuildCompleted.Publish(BuildCompletedEvent{Compiler: c, BuildID: buildID, ArtifactPath: artifactPath, DroppedUnits: dropped})
	if buildErr != nil {
		return "", buildErr
	}
	if publishErr != nil {
		return "", publishErr
	}

	if artifactPath == "" {
		c.logger.Error("Compilation of ", colors.Bold, c.name, colors.Reset, " failed after ", len(c.errors), " pass(es)")
		return "", errors.Wrapf(ErrBuildFailed, "'%s' failed to compile", c.name)
	}
	if len(dropped) > 0 {
		c.logger.Warn("Compiled ", colors.Bold, c.name, colors.Reset, " without ", len(dropped), " unit(s)")
	} else {
		c.logger.Info(colors.GreenBold, colors.CHECK, " ", colors.Reset, "Compiled ", colors.Bold, c.name, colors.Reset, " to ", artifactPath)
	}
	return artifactPath, nil
}

// droppedUnits returns the units left out of the artifact, in registration order. Every unit is dropped if there is
// no artifact.
func (c *SourceCompiler) droppedUnits(artifactPath string) []string {
	compiled := make(map[string]struct{})
	if artifactPath != "" && len(c.attempts) > 0 {
		for _, unit := range c.attempts[len(c.attempts)-1].Units {
			compiled[unit] = struct{}{}
		}
	}

	dropped := make([]string, 0)
	for _, unit := range c.descriptor.Units() {
		if _, ok := compiled[unit.QualifiedName()]; !ok {
			dropped = append(dropped, unit.QualifiedName())
		}
	}
	return dropped
}

// formatDiagnostics returns the error list of a failed pass.
func formatDiagnostics(diagnostics []types.UnitDiagnostic) []string {
	formatted := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		formatted = append(formatted, d.Format())
	}
	return formatted
}
