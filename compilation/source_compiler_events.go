package compilation

import (
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/events"
)

// SourceCompilerEvents defines event emitters for a SourceCompiler.
type SourceCompilerEvents struct {
	// PassStarting emits events when a sandbox was created for a pass and the pass is about to compile.
	PassStarting events.EventEmitter[PassStartingEvent]

	// PassCompleted emits events when a pass finished, whether it produced an artifact or not.
	PassCompleted events.EventEmitter[PassCompletedEvent]

	// BuildCompleted emits events when Compile is about to return.
	BuildCompleted events.EventEmitter[BuildCompletedEvent]
}

// PassStartingEvent describes a pass which is about to compile.
type PassStartingEvent struct {
	// Compiler is the SourceCompiler running the pass.
	Compiler *SourceCompiler

	// BuildID identifies the build the pass belongs to.
	BuildID string

	// Pass is the 1-based index of the pass.
	Pass int

	// Units holds the qualified names of the units the pass compiles.
	Units []string
}

// PassCompletedEvent describes a finished pass.
type PassCompletedEvent struct {
	// Compiler is the SourceCompiler which ran the pass.
	Compiler *SourceCompiler

	// BuildID identifies the build the pass belongs to.
	BuildID string

	// Attempt is the outcome of the pass. It is nil if the sandbox of the pass could not be created.
	Attempt *types.Attempt

	// Err describes an unexpected failure of the pass, if any.
	Err error
}

// BuildCompletedEvent describes a finished build.
type BuildCompletedEvent struct {
	// Compiler is the SourceCompiler which ran the build.
	Compiler *SourceCompiler

	// BuildID identifies the build.
	BuildID string

	// ArtifactPath is the path of the produced artifact, or empty if the build failed.
	ArtifactPath string

	// DroppedUnits holds the qualified names of the units left out of the artifact.
	DroppedUnits []string
}
