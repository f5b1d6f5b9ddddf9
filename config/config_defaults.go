package config

import (
	"github.com/crytic/stencil/compilation"
	"github.com/rs/zerolog"
)

// DefaultCompilationPlatform is the compilation platform used when a configuration does not name one.
const DefaultCompilationPlatform = "go"

// GetDefaultProjectConfig obtains a default configuration for a project. It populates a default compilation config
// for the provided platform, or none if the platform is empty.
func GetDefaultProjectConfig(platform string) (*ProjectConfig, error) {
	var (
		compilationConfig *compilation.CompilationConfig
		err               error
	)
	if platform != "" {
		compilationConfig, err = compilation.NewCompilationConfig(platform)
		if err != nil {
			return nil, err
		}
	}

	projectConfig := &ProjectConfig{
		Build: BuildConfig{
			Name:            "templates",
			Version:         compilation.DefaultVersion,
			OutputDirectory: "build",
			RetryBudget:     3,
			Sources: []SourceConfig{
				{Path: "templates", Namespace: "templates"},
			},
			References:         []string{},
			SearchPaths:        []string{},
			LoadCurrentModules: true,
		},
		Compilation: compilationConfig,
		Logging: LoggingConfig{
			Level:        zerolog.InfoLevel,
			LogDirectory: "",
			NoColor:      false,
		},
	}
	return projectConfig, nil
}
