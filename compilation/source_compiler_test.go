package compilation

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/platforms"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/journal"
	"github.com/crytic/stencil/metrics"
	"github.com/crytic/stencil/template"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenMarker marks the source of a unit the scripted platform reports a diagnostic for.
const brokenMarker = "BROKEN"

// scriptedPlatform is a compilation platform which reports a diagnostic for every unit containing brokenMarker and
// otherwise writes a bundle of the unit sources. Faults can be injected per pass.
type scriptedPlatform struct {
	mutex    sync.Mutex
	calls    int
	requests []*types.BuildRequest
	faults   map[int]error
}

func (p *scriptedPlatform) Platform() string {
	return "scripted"
}

func (p *scriptedPlatform) Compile(_ context.Context, request *types.BuildRequest) (*types.BuildResult, error) {
	p.mutex.Lock()
	p.calls++
	call := p.calls
	p.requests = append(p.requests, request)
	p.mutex.Unlock()

	if fault, ok := p.faults[call]; ok {
		return nil, fault
	}

	diagnostics := make([]types.Diagnostic, 0)
	sources := make(map[string][]byte)
	for _, sourceFile := range request.SourceFiles {
		data, err := os.ReadFile(sourceFile.Path)
		if err != nil {
			return nil, err
		}
		sources[sourceFile.QualifiedName] = data
		if strings.Contains(string(data), brokenMarker) {
			diagnostics = append(diagnostics,
				types.Diagnostic{File: sourceFile.Path, Line: 3, Column: 5, Message: "undefined: " + brokenMarker},
				types.Diagnostic{File: sourceFile.Path, Line: 4, Column: 1, Message: "missing return"},
			)
		}
	}
	if len(diagnostics) > 0 {
		return &types.BuildResult{Diagnostics: diagnostics}, nil
	}

	identity, err := artifacts.NewIdentity(request.ArtifactName, request.Version, "")
	if err != nil {
		return nil, err
	}
	bundle := artifacts.NewBundle(identity)
	for name, data := range sources {
		bundle.AddSource(name, data)
	}
	if request.SigningKeyPath != "" {
		key, err := artifacts.LoadSigningKey(request.SigningKeyPath)
		if err != nil {
			return nil, err
		}
		if err = bundle.Sign(key); err != nil {
			return nil, err
		}
	}
	if err = bundle.Write(request.OutputPath); err != nil {
		return nil, err
	}
	return &types.BuildResult{ArtifactPath: request.OutputPath}, nil
}

// unexpectedPlatform reports diagnostics for a file which belongs to no unit.
type unexpectedPlatform struct {
	calls int
}

func (p *unexpectedPlatform) Platform() string {
	return "unexpected"
}

func (p *unexpectedPlatform) Compile(_ context.Context, request *types.BuildRequest) (*types.BuildResult, error) {
	p.calls++
	return &types.BuildResult{Diagnostics: []types.Diagnostic{
		{File: filepath.Join(request.WorkingDirectory, "go.mod"), Line: 1, Message: "syntax error"},
	}}, nil
}

// countingRecorder is a metrics.Recorder which counts what it observes.
type countingRecorder struct {
	metrics.NoopRecorder
	passes   map[metrics.PassResultLabel]int
	outcomes map[metrics.BuildOutcomeLabel]int
	dropped  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		passes:   make(map[metrics.PassResultLabel]int),
		outcomes: make(map[metrics.BuildOutcomeLabel]int),
	}
}

func (r *countingRecorder) IncPassResult(result metrics.PassResultLabel) {
	r.passes[result]++
}

func (r *countingRecorder) IncBuildOutcome(outcome metrics.BuildOutcomeLabel) {
	r.outcomes[outcome]++
}

func (r *countingRecorder) AddDroppedUnits(n int) {
	r.dropped += n
}

func unitSource(packageName string, broken bool) string {
	source := "package " + packageName + "\n\nfunc Value() int {\n"
	if broken {
		return source + "\treturn " + brokenMarker + "\n}\n"
	}
	return source + "\treturn 1\n}\n"
}

func newTestCompiler(t *testing.T, platform platforms.PlatformConfig, options ...SourceCompilerOption) *SourceCompiler {
	options = append([]SourceCompilerOption{
		WithPlatform(platform),
		WithWorkRoot(t.TempDir()),
		WithRegistry(resolver.NewRegistry()),
	}, options...)
	c, err := NewSourceCompiler("views", t.TempDir(), options...)
	require.NoError(t, err)
	return c
}

// TestCompileSingleUnit ensures a single correct unit compiles without errors.
func TestCompileSingleUnit(t *testing.T) {
	c := newTestCompiler(t, &scriptedPlatform{})
	_, err := c.AddUnit("views", "Index", unitSource("views", false))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, c.OutputPath(), artifactPath)
	assert.False(t, c.HasErrors())
	assert.Empty(t, c.Errors())

	bundle, err := artifacts.ReadBundle(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"views.Index"}, bundle.Units())
	assert.Equal(t, artifacts.UnsignedKeyToken, bundle.Manifest.Identity.KeyToken)
}

// TestCompileDropsBrokenUnit ensures a broken unit is dropped from the next pass and the artifact holds the other
// units.
func TestCompileDropsBrokenUnit(t *testing.T) {
	recorder := newCountingRecorder()
	c := newTestCompiler(t, &scriptedPlatform{}, WithRecorder(recorder))
	for _, name := range []string{"First", "Second", "Third"} {
		_, err := c.AddUnit("views", name, unitSource("views", name == "Second"))
		require.NoError(t, err)
	}

	artifactPath, err := c.Compile(context.Background(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, artifactPath)

	bundle, err := artifacts.ReadBundle(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"views.First", "views.Third"}, bundle.Units())

	require.True(t, c.HasErrors())
	errs := c.Errors()
	require.Len(t, errs, 1)
	require.Len(t, errs[0], 2)
	assert.Equal(t, "Unit: views.Second\tLine: 3\tCol: 5\tError: undefined: BROKEN", errs[0][0])

	attempts := c.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, []string{"views.First", "views.Second", "views.Third"}, attempts[0].Units)
	assert.Equal(t, []string{"views.First", "views.Third"}, attempts[1].Units)

	// The failed pass is kept for inspection, the successful one is removed.
	assert.DirExists(t, attempts[0].SandboxDirectory)
	assert.FileExists(t, attempts[0].LogPath)
	assert.NoDirExists(t, attempts[1].SandboxDirectory)
	assert.NoDirExists(t, filepath.Join(attempts[0].SandboxDirectory, "scratch"))

	assert.Equal(t, 1, recorder.passes[metrics.PassFailed])
	assert.Equal(t, 1, recorder.passes[metrics.PassSucceeded])
	assert.Equal(t, 1, recorder.outcomes[metrics.BuildPartial])
	assert.Equal(t, 1, recorder.dropped)
}

// TestCompileBudgetExhausted ensures a budget of one with a broken unit produces no artifact and one error list.
func TestCompileBudgetExhausted(t *testing.T) {
	platform := &scriptedPlatform{}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)
	_, err = c.AddUnit("views", "Bad", unitSource("views", true))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Empty(t, artifactPath)
	assert.Len(t, c.Errors(), 1)
	assert.Equal(t, 1, platform.calls)
	assert.NoFileExists(t, c.OutputPath())
}

// TestCompileBudgetClamped ensures a non-positive budget still runs one pass.
func TestCompileBudgetClamped(t *testing.T) {
	platform := &scriptedPlatform{}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, platform.calls)
}

// TestCompileAllUnitsBroken ensures a build stops once every unit was dropped.
func TestCompileAllUnitsBroken(t *testing.T) {
	platform := &scriptedPlatform{}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Bad", unitSource("views", true))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), 5)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Equal(t, 1, platform.calls)
	assert.Len(t, c.Errors(), 1)
}

// TestCompileUnattributedDiagnostics ensures a build stops when no diagnostic names a unit of the working set.
func TestCompileUnattributedDiagnostics(t *testing.T) {
	platform := &unexpectedPlatform{}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), 3)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Equal(t, 1, platform.calls)
	require.Len(t, c.Errors(), 1)
	assert.Equal(t, "Unit: \tLine: 1\tCol: 0\tError: syntax error", c.Errors()[0][0])
}

// TestCompileUnexpectedException ensures an unexpected fault is recorded, counts against the budget, and the same
// units are retried.
func TestCompileUnexpectedException(t *testing.T) {
	platform := &scriptedPlatform{faults: map[int]error{1: errors.New("toolchain crashed")}}
	recorder := newCountingRecorder()
	c := newTestCompiler(t, platform, WithRecorder(recorder))
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 2)
	require.NoError(t, err)
	assert.NotEmpty(t, artifactPath)

	errs := c.Errors()
	require.Len(t, errs, 1)
	require.Len(t, errs[0], 2)
	assert.Equal(t, UnexpectedExceptionMessage, errs[0][0])
	assert.Contains(t, errs[0][1], "toolchain crashed")

	attempts := c.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, attempts[0].Units, attempts[1].Units)
	assert.Equal(t, 1, recorder.passes[metrics.PassUnexpected])
	assert.Equal(t, 1, recorder.outcomes[metrics.BuildComplete])

	// With a budget of one, the fault fails the build.
	platform = &scriptedPlatform{faults: map[int]error{1: errors.New("toolchain crashed")}}
	c = newTestCompiler(t, platform)
	_, err = c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Len(t, c.Errors(), 1)
}

// TestDuplicateUnit ensures adding a unit twice fails and leaves the unit count unchanged.
func TestDuplicateUnit(t *testing.T) {
	c := newTestCompiler(t, &scriptedPlatform{})
	_, err := c.AddUnit("views", "Index", unitSource("views", false))
	require.NoError(t, err)

	_, err = c.AddUnit("views", "Index", unitSource("views", false))
	assert.ErrorIs(t, err, types.ErrDuplicateUnit)
	var duplicateErr *types.DuplicateUnitError
	require.ErrorAs(t, err, &duplicateErr)
	assert.Equal(t, "views.Index", duplicateErr.QualifiedName)
	assert.Equal(t, 1, c.UnitCount())

	_, err = c.AddUnit("views", "9Index", "")
	assert.ErrorIs(t, err, types.ErrInvalidUnitName)
	assert.Equal(t, 1, c.UnitCount())
}

// TestCaseInsensitiveUnitNames ensures a unit whose name differs from an existing one only in letter case is
// rejected, so a broken unit never takes a correct one down with it.
func TestCaseInsensitiveUnitNames(t *testing.T) {
	c := newTestCompiler(t, &scriptedPlatform{})
	_, err := c.AddUnit("views", "Index", unitSource("views", false))
	require.NoError(t, err)
	_, err = c.AddUnit("views", "index", unitSource("views", true))
	require.ErrorIs(t, err, types.ErrDuplicateUnit)
	_, err = c.AddUnit("views", "Other", unitSource("views", true))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 3)
	require.NoError(t, err)

	bundle, err := artifacts.ReadBundle(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"views.Index"}, bundle.Units())
	require.Len(t, c.Errors(), 1)
	assert.Contains(t, c.Errors()[0][0], "Unit: views.Other\t")
}

// TestSignedArtifactIdentity ensures the identity of a signed artifact carries the key token of the signing key.
func TestSignedArtifactIdentity(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "signing.pem")
	key, err := artifacts.GenerateSigningKey(keyPath)
	require.NoError(t, err)

	c := newTestCompiler(t, &scriptedPlatform{})
	c.SetSigningKeyPath(keyPath)
	_, err = c.AddUnit("views", "Index", unitSource("views", false))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 1)
	require.NoError(t, err)

	identity, err := artifacts.ReadIdentity(artifactPath)
	require.NoError(t, err)
	expectedToken := artifacts.KeyToken(key.Public().(ed25519.PublicKey))
	assert.Equal(t, expectedToken, identity.KeyToken)
	assert.Contains(t, identity.String(), "KeyToken="+expectedToken)

	bundle, err := artifacts.ReadBundle(artifactPath)
	require.NoError(t, err)
	assert.NoError(t, bundle.Verify())
	assert.Contains(t, bundle.Units(), SigningNamespace+"."+SigningUnitName)

	// Compiling again does not add the marker unit twice.
	unitCount := c.UnitCount()
	_, err = c.Compile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, unitCount, c.UnitCount())
}

// TestAddTemplate ensures templates are transpiled into units and structural errors are reported immediately.
func TestAddTemplate(t *testing.T) {
	c := newTestCompiler(t, &scriptedPlatform{})
	qualifiedName, err := c.AddTemplate("Hello <# t.Write(\"x\") #>", "Greeting", "views")
	require.NoError(t, err)
	assert.Equal(t, "views.Greeting", qualifiedName)

	_, err = c.AddTemplate("<#base# A#><#base# B#>", "Twice", "views")
	assert.ErrorIs(t, err, template.ErrDuplicateTag)
	assert.Equal(t, 1, c.UnitCount())
}

// TestCompileEventsAndJournal ensures passes are published and recorded to the journal.
func TestCompileEventsAndJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	c := newTestCompiler(t, &scriptedPlatform{}, WithJournal(j))
	_, err = c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)
	_, err = c.AddUnit("views", "Bad", unitSource("views", true))
	require.NoError(t, err)

	started := make([]int, 0)
	c.Events.PassStarting.Subscribe(func(event PassStartingEvent) error {
		started = append(started, event.Pass)
		return nil
	})
	var completed *BuildCompletedEvent
	c.Events.BuildCompleted.Subscribe(func(event BuildCompletedEvent) error {
		completed = &event
		return nil
	})

	_, err = c.Compile(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, started)
	require.NotNil(t, completed)
	assert.Equal(t, []string{"views.Bad"}, completed.DroppedUnits)

	builds, err := j.Builds(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, completed.BuildID, builds[0].ID)
	assert.Equal(t, string(metrics.BuildPartial), builds[0].Outcome)

	passes, err := j.Passes(context.Background(), completed.BuildID)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.False(t, passes[0].Succeeded)
	assert.True(t, passes[1].Succeeded)
}

// TestEventHandlerAbortsBuild ensures an error returned by an event handler stops the build.
func TestEventHandlerAbortsBuild(t *testing.T) {
	platform := &scriptedPlatform{}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)

	abort := errors.New("abort")
	c.Events.PassStarting.Subscribe(func(PassStartingEvent) error {
		return abort
	})
	_, err = c.Compile(context.Background(), 2)
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 0, platform.calls)
}

// TestCompileCancelled ensures a cancelled context ends the build after the failed pass.
func TestCompileCancelled(t *testing.T) {
	platform := &scriptedPlatform{faults: map[int]error{1: context.Canceled, 2: context.Canceled}}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Good", unitSource("views", false))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err = c.Compile(ctx, 3)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Equal(t, 1, platform.calls)
	require.Len(t, c.Errors(), 1)
	assert.Equal(t, UnexpectedExceptionMessage, c.Errors()[0][0])
}

// TestStaleArtifactRemoved ensures an artifact left by a previous build is removed on construction.
func TestStaleArtifactRemoved(t *testing.T) {
	outputDirectory := t.TempDir()
	stale := filepath.Join(outputDirectory, "views"+artifacts.FileExtension)
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

	_, err := NewSourceCompiler("views", outputDirectory, WithPlatform(&scriptedPlatform{}))
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

// TestFailedRebuildRemovesArtifact ensures a build which fails does not leave the artifact of an earlier build at
// the output path.
func TestFailedRebuildRemovesArtifact(t *testing.T) {
	platform := &scriptedPlatform{faults: map[int]error{2: errors.New("backend crashed")}}
	c := newTestCompiler(t, platform)
	_, err := c.AddUnit("views", "Index", unitSource("views", false))
	require.NoError(t, err)

	artifactPath, err := c.Compile(context.Background(), 1)
	require.NoError(t, err)
	require.FileExists(t, artifactPath)

	_, err = c.Compile(context.Background(), 1)
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.NoFileExists(t, c.OutputPath())
	require.Len(t, c.Errors(), 1)
	assert.Equal(t, UnexpectedExceptionMessage, c.Errors()[0][0])
}
