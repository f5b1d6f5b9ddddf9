package types

import (
	"fmt"
	"time"
)

// Diagnostic is a single compiler message reported against a source file location.
type Diagnostic struct {
	// File is the path of the source file the diagnostic refers to, as reported by the compiler.
	File string `json:"file"`

	// Line is the 1-based line of the diagnostic, or zero if unknown.
	Line int `json:"line"`

	// Column is the 1-based column of the diagnostic, or zero if unknown.
	Column int `json:"column"`

	// Message is the compiler message.
	Message string `json:"message"`
}

// String returns a compiler-style representation of the diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// UnitDiagnostic is a Diagnostic attributed to the translation unit whose file it refers to.
type UnitDiagnostic struct {
	// Unit is the qualified name of the unit the diagnostic refers to, or empty if the diagnostic could not be
	// attributed to a unit.
	Unit string `json:"unit"`

	Diagnostic
}

// Format returns the diagnostic in the form reported to callers of a build.
func (d UnitDiagnostic) Format() string {
	return fmt.Sprintf("Unit: %s\tLine: %d\tCol: %d\tError: %s", d.Unit, d.Line, d.Column, d.Message)
}

// Attempt describes the outcome of a single compilation pass.
type Attempt struct {
	// Pass is the 1-based index of the pass within its build.
	Pass int `json:"pass"`

	// Succeeded indicates whether the pass produced an artifact.
	Succeeded bool `json:"succeeded"`

	// ArtifactPath is the path of the artifact produced by the pass, if it succeeded.
	ArtifactPath string `json:"artifactPath,omitempty"`

	// Diagnostics holds the diagnostics reported by a failed pass.
	Diagnostics []UnitDiagnostic `json:"diagnostics,omitempty"`

	// Units holds the qualified names of the units the pass compiled.
	Units []string `json:"units"`

	// SandboxDirectory is the root directory of the sandbox the pass ran in.
	SandboxDirectory string `json:"sandboxDirectory"`

	// LogPath is the path of the compilation log written for a failed pass, if any.
	LogPath string `json:"logPath,omitempty"`

	// Duration is the wall time the pass took.
	Duration time.Duration `json:"duration"`
}

// ErroneousUnits returns the qualified names of the units in the working set which diagnostics were attributed to,
// without duplicates, in the order they were first reported.
func (a *Attempt) ErroneousUnits() []string {
	working := make(map[string]struct{}, len(a.Units))
	for _, unit := range a.Units {
		working[unit] = struct{}{}
	}

	seen := make(map[string]struct{})
	erroneous := make([]string, 0)
	for _, d := range a.Diagnostics {
		if _, ok := working[d.Unit]; !ok {
			continue
		}
		if _, ok := seen[d.Unit]; ok {
			continue
		}
		seen[d.Unit] = struct{}{}
		erroneous = append(erroneous, d.Unit)
	}
	return erroneous
}
