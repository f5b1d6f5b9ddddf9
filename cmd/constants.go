package cmd

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = "stencil.json"

// DefaultCompilationPlatform describes the default compilation platform to use if one is not provided
const DefaultCompilationPlatform = "go"

// DefaultNamespace is the namespace of a transpiled template when none is provided.
const DefaultNamespace = "templates"
