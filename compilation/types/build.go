package types

// ResolvedReference is a reference which was located on disk and can be made available to a compiler.
type ResolvedReference struct {
	// Key is the normalized key of the reference.
	Key string `json:"key"`

	// ModulePath is the Go module path declared by the reference.
	ModulePath string `json:"modulePath"`

	// Version is the module version, if known.
	Version string `json:"version,omitempty"`

	// Dir is the directory holding the module.
	Dir string `json:"dir"`
}

// SourceFile is a unit source file written for a build.
type SourceFile struct {
	// QualifiedName is the qualified name of the unit the file holds.
	QualifiedName string `json:"qualifiedName"`

	// Path is the absolute path of the file.
	Path string `json:"path"`
}

// BuildRequest is the input a compiler backend receives for a single pass.
type BuildRequest struct {
	// ArtifactName is the name of the artifact to produce.
	ArtifactName string

	// OutputPath is the path the artifact must be written to.
	OutputPath string

	// WorkingDirectory is the root of the Go module holding the source files.
	WorkingDirectory string

	// ScratchDirectory is a directory the backend may use for temporary files.
	ScratchDirectory string

	// ModulePath is the module path of the Go module holding the source files.
	ModulePath string

	// SourceFiles holds the unit source files, in unit registration order.
	SourceFiles []SourceFile

	// References holds the references which were resolved for the pass.
	References []ResolvedReference

	// SigningKeyPath is the path of the key the artifact is signed with, or empty if it is not signed.
	SigningKeyPath string

	// Version is the semantic version recorded in the artifact identity.
	Version string

	// Env holds additional environment variables ("KEY=value") for any process the backend runs.
	Env []string
}

// BuildResult is the outcome a compiler backend reports for a single pass. A result with no ArtifactPath is a
// failed compilation described by Diagnostics.
type BuildResult struct {
	// ArtifactPath is the path of the produced artifact, or empty if compilation failed.
	ArtifactPath string

	// Diagnostics holds the compiler diagnostics.
	Diagnostics []Diagnostic
}

// Succeeded indicates whether the build produced an artifact.
func (r *BuildResult) Succeeded() bool {
	return r != nil && r.ArtifactPath != ""
}
