package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/compilation/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"
)

// fakePlatform is a compilation platform which records its request and returns a scripted outcome.
type fakePlatform struct {
	request *types.BuildRequest
	goMod   []byte
	compile func(request *types.BuildRequest) (*types.BuildResult, error)
}

func (f *fakePlatform) Platform() string {
	return "fake"
}

func (f *fakePlatform) Compile(_ context.Context, request *types.BuildRequest) (*types.BuildResult, error) {
	f.request = request
	f.goMod, _ = os.ReadFile(filepath.Join(request.WorkingDirectory, "go.mod"))
	return f.compile(request)
}

func succeed(request *types.BuildRequest) (*types.BuildResult, error) {
	if err := os.WriteFile(request.OutputPath, []byte("artifact"), 0644); err != nil {
		return nil, err
	}
	return &types.BuildResult{ArtifactPath: request.OutputPath}, nil
}

func newDescriptor(t *testing.T) *types.CompilationDescriptor {
	descriptor := types.NewCompilationDescriptor()
	_, err := descriptor.AddUnit("views.pages", "Index", "package pages\n")
	require.NoError(t, err)
	_, err = descriptor.AddUnit("views", "Layout", "package views\n")
	require.NoError(t, err)
	return descriptor
}

func newSandbox(t *testing.T, workRoot string, platform *fakePlatform) *Sandbox {
	s, err := Create(Options{
		Pass:         1,
		WorkRoot:     workRoot,
		BuildID:      "build",
		ArtifactName: "views",
		OutputPath:   filepath.Join(t.TempDir(), "views"+artifacts.FileExtension),
		Version:      "1.0.0",
		Platform:     platform,
		Registry:     resolver.NewRegistry(),
	})
	require.NoError(t, err)
	return s
}

// TestRunSuccess ensures units are written to their package directories and a successful sandbox is removed.
func TestRunSuccess(t *testing.T) {
	workRoot := t.TempDir()
	platform := &fakePlatform{compile: succeed}
	s := newSandbox(t, workRoot, platform)
	assert.True(t, strings.HasPrefix(filepath.Base(s.Root()), "pass-1-"))

	attempt, err := s.Run(context.Background(), newDescriptor(t))
	require.NoError(t, err)
	assert.True(t, attempt.Succeeded)
	assert.Equal(t, []string{"views.pages.Index", "views.Layout"}, attempt.Units)
	assert.Equal(t, platform.request.OutputPath, attempt.ArtifactPath)

	require.Len(t, platform.request.SourceFiles, 2)
	assert.Equal(t, filepath.Join(s.SourceDirectory(), "views", "pages", "Index.unit.go"), platform.request.SourceFiles[0].Path)
	assert.FileExists(t, filepath.Join(s.ScratchDirectory(), descriptorFileName))

	f, err := modfile.Parse("go.mod", platform.goMod, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModulePath, f.Module.Mod.Path)

	require.NoError(t, s.Destroy())
	assert.NoDirExists(t, s.Root())
	assert.NoDirExists(t, filepath.Join(workRoot, "build"))
	require.NoError(t, s.Destroy())
}

// TestRunDiagnostics ensures diagnostics are attributed to units by path and a failed sandbox is kept with its log.
func TestRunDiagnostics(t *testing.T) {
	platform := &fakePlatform{compile: func(request *types.BuildRequest) (*types.BuildResult, error) {
		return &types.BuildResult{Diagnostics: []types.Diagnostic{
			{File: strings.ToUpper(request.SourceFiles[1].Path), Line: 3, Column: 2, Message: "undefined: x"},
			{File: filepath.Join(request.WorkingDirectory, "other.go"), Line: 1, Message: "elsewhere"},
		}}, nil
	}}
	s := newSandbox(t, t.TempDir(), platform)

	attempt, err := s.Run(context.Background(), newDescriptor(t))
	require.NoError(t, err)
	assert.False(t, attempt.Succeeded)
	require.Len(t, attempt.Diagnostics, 2)
	assert.Equal(t, "views.Layout", attempt.Diagnostics[0].Unit)
	assert.Empty(t, attempt.Diagnostics[1].Unit)
	assert.Equal(t, []string{"views.Layout"}, attempt.ErroneousUnits())

	require.NoError(t, s.Destroy())
	assert.NoDirExists(t, s.ScratchDirectory())
	assert.DirExists(t, s.SourceDirectory())
	require.FileExists(t, attempt.LogPath)
	log, err := os.ReadFile(attempt.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "Unit: views.Layout\tLine: 3\tCol: 2\tError: undefined: x")
}

// TestRunUnexpectedFailures ensures backend errors and panics are reported as unexpected attempt failures.
func TestRunUnexpectedFailures(t *testing.T) {
	faults := map[string]func(*types.BuildRequest) (*types.BuildResult, error){
		"error": func(*types.BuildRequest) (*types.BuildResult, error) {
			return nil, errors.New("toolchain missing")
		},
		"panic": func(*types.BuildRequest) (*types.BuildResult, error) {
			panic("boom")
		},
		"nil result": func(*types.BuildRequest) (*types.BuildResult, error) {
			return nil, nil
		},
	}
	for name, fault := range faults {
		t.Run(name, func(t *testing.T) {
			s := newSandbox(t, t.TempDir(), &fakePlatform{compile: fault})
			attempt, err := s.Run(context.Background(), newDescriptor(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnexpectedAttemptFailure)
			require.NotNil(t, attempt)
			assert.False(t, attempt.Succeeded)
			assert.FileExists(t, attempt.LogPath)
			require.NoError(t, s.Destroy())
			assert.DirExists(t, s.Root())
		})
	}
}

// TestRunOnce ensures a sandbox cannot be reused.
func TestRunOnce(t *testing.T) {
	s := newSandbox(t, t.TempDir(), &fakePlatform{compile: succeed})
	_, err := s.Run(context.Background(), newDescriptor(t))
	require.NoError(t, err)
	_, err = s.Run(context.Background(), newDescriptor(t))
	assert.Error(t, err)

	require.NoError(t, s.Destroy())
	_, err = s.Run(context.Background(), newDescriptor(t))
	assert.Error(t, err)
}

// TestSigningKeyDirective ensures the key named by a marker unit is passed to the backend.
func TestSigningKeyDirective(t *testing.T) {
	platform := &fakePlatform{compile: succeed}
	s := newSandbox(t, t.TempDir(), platform)
	defer s.Destroy()

	descriptor := newDescriptor(t)
	keyPath := filepath.Join(t.TempDir(), "key.pem")
	_, err := descriptor.AddUnit("signing", "KeyFile", artifacts.KeyFileSource("signing", keyPath))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), descriptor)
	require.NoError(t, err)
	assert.Equal(t, keyPath, platform.request.SigningKeyPath)
}

// TestReferenceResolution ensures references resolve through absolute paths, search paths and the registry, and
// that unresolvable references are skipped.
func TestReferenceResolution(t *testing.T) {
	writeModule := func(dir string, modulePath string, goVersion string) {
		require.NoError(t, os.MkdirAll(dir, 0755))
		content := "module " + modulePath + "\n\ngo " + goVersion + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(content), 0644))
	}
	modules := t.TempDir()
	absolute := filepath.Join(modules, "absolute")
	writeModule(absolute, "example.com/absolute", "1.22")
	searched := filepath.Join(modules, "search", "Helpers")
	writeModule(searched, "example.com/helpers", "1.21")
	registered := filepath.Join(modules, "registered")
	writeModule(registered, "example.com/registered", "1.21")

	registry := resolver.NewRegistry()
	registry.Register(resolver.ModuleHandle{Path: "example.com/registered", Version: "v1.2.3", Dir: registered})

	platform := &fakePlatform{compile: succeed}
	s, err := Create(Options{
		Pass:        2,
		WorkRoot:    t.TempDir(),
		OutputPath:  filepath.Join(t.TempDir(), "out.stencil"),
		Platform:    platform,
		Registry:    registry,
		SearchPaths: []string{filepath.Join(modules, "search")},
	})
	require.NoError(t, err)
	defer s.Destroy()

	descriptor := newDescriptor(t)
	descriptor.AddReference(absolute)
	descriptor.AddReference("Helpers")
	descriptor.AddReference("example.com/registered")
	descriptor.AddReference("missing")

	_, err = s.Run(context.Background(), descriptor)
	require.NoError(t, err)

	references := platform.request.References
	require.Len(t, references, 3)
	assert.Equal(t, "example.com/absolute", references[0].ModulePath)
	assert.Equal(t, "example.com/helpers", references[1].ModulePath)
	assert.Equal(t, searched, references[1].Dir)
	assert.Equal(t, "example.com/registered", references[2].ModulePath)

	f, err := modfile.Parse("go.mod", platform.goMod, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.22", f.Go.Version)
	require.Len(t, f.Require, 3)
	assert.Equal(t, "v0.0.0", f.Require[0].Mod.Version)
	assert.Equal(t, "v1.2.3", f.Require[2].Mod.Version)
	require.Len(t, f.Replace, 3)
	assert.Equal(t, registered, f.Replace[2].New.Path)
}

// TestCreateValidation ensures invalid options are rejected.
func TestCreateValidation(t *testing.T) {
	_, err := Create(Options{Pass: 1, WorkRoot: t.TempDir()})
	assert.Error(t, err)
	_, err = Create(Options{Pass: 0, WorkRoot: t.TempDir(), Platform: &fakePlatform{}})
	assert.Error(t, err)
	_, err = Create(Options{Pass: 1, Platform: &fakePlatform{}})
	assert.Error(t, err)
}
