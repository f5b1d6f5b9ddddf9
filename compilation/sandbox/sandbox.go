// Package sandbox provides the disposable execution context a single compilation pass runs in. Each sandbox owns a
// directory holding a generated Go module with the units of the pass, a scratch directory for the compiler, and the
// compilation log of a failed pass. Nothing but the encoded descriptor crosses into a sandbox.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/platforms"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/logging/colors"
	"github.com/crytic/stencil/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// DefaultModulePath is the module path of the generated module when none is configured.
	DefaultModulePath = "stencilbuild"

	// LogFileName is the name of the compilation log written to the root of a failed sandbox.
	LogFileName = "compilation.log"

	// descriptorFileName is the name of the encoded descriptor in the scratch directory.
	descriptorFileName = "descriptor.cbor"
)

// Options describes how a Sandbox is created.
type Options struct {
	// Pass is the 1-based index of the pass the sandbox serves.
	Pass int

	// WorkRoot is the directory sandboxes are created under.
	WorkRoot string

	// BuildID groups the sandboxes of a build. A random identifier is used if empty.
	BuildID string

	// ArtifactName is the name recorded in the artifact identity.
	ArtifactName string

	// OutputPath is the path the artifact is written to.
	OutputPath string

	// ModulePath is the module path of the generated module. Defaults to DefaultModulePath.
	ModulePath string

	// Version is the semantic version recorded in the artifact identity.
	Version string

	// Platform is the compiler backend.
	Platform platforms.PlatformConfig

	// Registry is consulted for references which cannot be located otherwise. Defaults to resolver.Default().
	Registry *resolver.Registry

	// SearchPaths holds directories searched for references which are not absolute paths.
	SearchPaths []string

	// Env holds additional environment variables passed to the backend.
	Env []string

	// Logger is the logger of the sandbox. Defaults to a sub-logger of logging.GlobalLogger.
	Logger *logging.Logger
}

// Sandbox is the isolated context of a single compilation pass. A Sandbox runs at most once and must be destroyed
// once its attempt has been recorded.
type Sandbox struct {
	options Options
	logger  *logging.Logger

	// root is the root directory of the sandbox.
	root string

	// sourceDirectory holds the generated module.
	sourceDirectory string

	// scratchDirectory holds temporary compiler files and the encoded descriptor.
	scratchDirectory string

	ran       bool
	succeeded bool
	destroyed bool
}

// Create creates the directories of a new sandbox under options.WorkRoot.
func Create(options Options) (*Sandbox, error) {
	if options.Platform == nil {
		return nil, errors.New("a sandbox requires a compilation platform")
	}
	if options.Pass < 1 {
		return nil, errors.Errorf("invalid pass index %d", options.Pass)
	}
	if options.WorkRoot == "" {
		return nil, errors.New("a sandbox requires a work root")
	}
	if options.BuildID == "" {
		options.BuildID = uuid.NewString()
	}
	if options.ModulePath == "" {
		options.ModulePath = DefaultModulePath
	}
	if options.Registry == nil {
		options.Registry = resolver.Default()
	}
	if options.Logger == nil {
		options.Logger = logging.GlobalLogger.NewSubLogger("module", logging.SANDBOX_SERVICE)
	}

	workRoot, err := filepath.Abs(options.WorkRoot)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	root := filepath.Join(workRoot, options.BuildID, fmt.Sprintf("pass-%d-%s", options.Pass, uuid.NewString()))
	s := &Sandbox{
		options:          options,
		logger:           options.Logger.NewSubLogger("pass", fmt.Sprint(options.Pass)),
		root:             root,
		sourceDirectory:  filepath.Join(root, "src"),
		scratchDirectory: filepath.Join(root, "scratch"),
	}
	for _, dir := range []string{s.sourceDirectory, s.scratchDirectory} {
		if err := utils.MakeDirectory(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Root returns the root directory of the sandbox.
func (s *Sandbox) Root() string {
	return s.root
}

// SourceDirectory returns the directory holding the generated module.
func (s *Sandbox) SourceDirectory() string {
	return s.sourceDirectory
}

// ScratchDirectory returns the scratch directory of the sandbox.
func (s *Sandbox) ScratchDirectory() string {
	return s.scratchDirectory
}

// LogPath returns the path the compilation log of a failed pass is written to.
func (s *Sandbox) LogPath() string {
	return filepath.Join(s.root, LogFileName)
}

// Run compiles the units of descriptor inside the sandbox. A pass which fails with compiler diagnostics returns an
// unsuccessful Attempt and no error. Any other fault, including a backend panic, returns the Attempt along with an
// error matching ErrUnexpectedAttemptFailure.
func (s *Sandbox) Run(ctx context.Context, descriptor *types.CompilationDescriptor) (attempt *types.Attempt, err error) {
	if s.destroyed {
		return nil, errors.New("cannot run a destroyed sandbox")
	}
	if s.ran {
		return nil, errors.New("a sandbox can only run once")
	}
	s.ran = true

	start := time.Now()
	attempt = &types.Attempt{
		Pass:             s.options.Pass,
		Units:            make([]string, 0, descriptor.UnitCount()),
		SandboxDirectory: s.root,
	}
	for _, unit := range descriptor.Units() {
		attempt.Units = append(attempt.Units, unit.QualifiedName())
	}
	defer func() {
		attempt.Duration = time.Since(start)
		if err != nil {
			err = &AttemptFailureError{Pass: s.options.Pass, Err: err}
			s.writeLog(attempt, err)
		} else if !attempt.Succeeded {
			s.writeLog(attempt, nil)
		}
	}()

	inner, err := s.receive(descriptor)
	if err != nil {
		return attempt, err
	}
	request, err := s.prepare(inner)
	if err != nil {
		return attempt, err
	}

	s.logger.Debug("Compiling ", len(request.SourceFiles), " unit(s) in ", colors.Bold, s.sourceDirectory, colors.Reset)
	result, err := s.compile(ctx, request)
	if err != nil {
		return attempt, err
	}

	if result.Succeeded() {
		attempt.Succeeded = true
		attempt.ArtifactPath = result.ArtifactPath
		s.succeeded = true
		return attempt, nil
	}
	attempt.Diagnostics = attributeDiagnostics(result.Diagnostics, request.SourceFiles)
	return attempt, nil
}

// receive encodes descriptor into the scratch directory and decodes the sandbox's own copy from it.
func (s *Sandbox) receive(descriptor *types.CompilationDescriptor) (*types.CompilationDescriptor, error) {
	encoded, err := descriptor.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	descriptorPath := filepath.Join(s.scratchDirectory, descriptorFileName)
	if err = utils.WriteFile(descriptorPath, encoded); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return types.UnmarshalDescriptor(data)
}

// prepare writes the units and go.mod of the generated module and builds the backend request.
func (s *Sandbox) prepare(descriptor *types.CompilationDescriptor) (*types.BuildRequest, error) {
	request := &types.BuildRequest{
		ArtifactName:     s.options.ArtifactName,
		OutputPath:       s.options.OutputPath,
		WorkingDirectory: s.sourceDirectory,
		ScratchDirectory: s.scratchDirectory,
		ModulePath:       s.options.ModulePath,
		SourceFiles:      make([]types.SourceFile, 0, descriptor.UnitCount()),
		Version:          s.options.Version,
		Env:              s.options.Env,
	}

	for _, unit := range descriptor.Units() {
		unitPath := filepath.Join(s.sourceDirectory, filepath.FromSlash(unit.FileName()))
		if err := utils.WriteFile(unitPath, []byte(unit.Source)); err != nil {
			return nil, err
		}
		request.SourceFiles = append(request.SourceFiles, types.SourceFile{
			QualifiedName: unit.QualifiedName(),
			Path:          unitPath,
		})
		if keyPath, ok := artifacts.FindKeyFile(unit.Source); ok && request.SigningKeyPath == "" {
			request.SigningKeyPath = keyPath
		}
	}

	request.References = s.resolveReferences(descriptor.References())
	goMod, err := generateModFile(s.options.ModulePath, request.References)
	if err != nil {
		return nil, err
	}
	if err = utils.WriteFile(filepath.Join(s.sourceDirectory, "go.mod"), goMod); err != nil {
		return nil, err
	}
	return request, nil
}

// compile invokes the backend, converting a panic into an error.
func (s *Sandbox) compile(ctx context.Context, request *types.BuildRequest) (result *types.BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Errorf("compilation platform '%s' panicked: %v", s.options.Platform.Platform(), r)
		}
	}()

	result, err = s.options.Platform.Compile(ctx, request)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.Errorf("compilation platform '%s' returned no result", s.options.Platform.Platform())
	}
	return result, nil
}

// attributeDiagnostics assigns each diagnostic to the unit whose source file it refers to. File paths are compared
// case-insensitively. Diagnostics referring to no unit are kept with an empty unit name.
func attributeDiagnostics(diagnostics []types.Diagnostic, sourceFiles []types.SourceFile) []types.UnitDiagnostic {
	units := make(map[string]string, len(sourceFiles))
	for _, sourceFile := range sourceFiles {
		units[strings.ToLower(filepath.Clean(sourceFile.Path))] = sourceFile.QualifiedName
	}

	attributed := make([]types.UnitDiagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		attributed = append(attributed, types.UnitDiagnostic{
			Unit:       units[strings.ToLower(filepath.Clean(d.File))],
			Diagnostic: d,
		})
	}
	return attributed
}

// writeLog writes the compilation log of a failed pass. Failing to write the log is only logged.
func (s *Sandbox) writeLog(attempt *types.Attempt, fault error) {
	var b strings.Builder
	fmt.Fprintf(&b, "pass: %d\n", attempt.Pass)
	fmt.Fprintf(&b, "units: %s\n", strings.Join(attempt.Units, ", "))
	if fault != nil {
		fmt.Fprintf(&b, "error: %v\n", fault)
	}
	for _, d := range attempt.Diagnostics {
		b.WriteString(d.Format())
		b.WriteString("\n")
	}

	if err := utils.WriteFile(s.LogPath(), []byte(b.String())); err != nil {
		s.logger.Warn("Could not write the compilation log", err)
		return
	}
	attempt.LogPath = s.LogPath()
}

// Destroy removes the sandbox. The scratch directory is always removed. The generated module and the root are
// removed after a successful run and kept, along with the compilation log, otherwise. The directory of the build is
// removed once it is empty. Destroy can be called more than once.
func (s *Sandbox) Destroy() error {
	if s.destroyed {
		return nil
	}
	s.destroyed = true

	if err := utils.DeleteDirectory(s.scratchDirectory); err != nil {
		return err
	}
	if s.succeeded {
		if err := utils.DeleteDirectory(s.root); err != nil {
			return err
		}
		// The build directory is shared with other passes and only goes away when it is empty.
		_ = os.Remove(filepath.Dir(s.root))
		return nil
	}

	s.logger.Debug("Keeping failed sandbox ", colors.Bold, s.root, colors.Reset)
	return nil
}
