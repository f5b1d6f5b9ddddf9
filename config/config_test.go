package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/stencil/compilation"
	"github.com/crytic/stencil/compilation/platforms"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getDefaultConfig returns the default project config for the default platform.
func getDefaultConfig(t *testing.T) *ProjectConfig {
	projectConfig, err := GetDefaultProjectConfig(DefaultCompilationPlatform)
	require.NoError(t, err)
	return projectConfig
}

// TestDefaultConfigValid ensures the default configuration passes validation.
func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, getDefaultConfig(t).Validate())
}

// TestConfigRoundTrip ensures a configuration written as JSON or YAML is read back unchanged.
func TestConfigRoundTrip(t *testing.T) {
	for _, fileName := range []string{"stencil.json", "stencil.yaml", "stencil.yml"} {
		t.Run(fileName, func(t *testing.T) {
			projectConfig := getDefaultConfig(t)
			projectConfig.Build.Name = "views"
			projectConfig.Build.Version = "2.1.0"
			projectConfig.Build.References = []string{"/modules/helpers", "true"}
			projectConfig.Build.SigningKeyPath = "keys/signing.pem"
			projectConfig.Logging.Level = zerolog.DebugLevel

			goConfig := platforms.NewGoToolchainConfig()
			goConfig.AllowNetwork = true
			compilationConfig, err := compilation.NewCompilationConfigFromPlatformConfig(goConfig)
			require.NoError(t, err)
			projectConfig.Compilation = compilationConfig

			path := filepath.Join(t.TempDir(), fileName)
			require.NoError(t, projectConfig.WriteToFile(path))

			read, err := ReadProjectConfigFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, projectConfig.Build, read.Build)
			assert.Equal(t, projectConfig.Logging, read.Logging)

			platformConfig, err := read.Compilation.GetPlatformConfig()
			require.NoError(t, err)
			assert.True(t, platformConfig.(*platforms.GoToolchainConfig).AllowNetwork)
		})
	}
}

// TestReadPartialConfig ensures values missing from a file keep their defaults.
func TestReadPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	t.Setenv("STENCIL_TEST_NAME", "fromenv")
	require.NoError(t, os.WriteFile(path, []byte("build:\n  name: ${STENCIL_TEST_NAME}\n  retryBudget: 5\n"), 0644))

	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", read.Build.Name)
	assert.Equal(t, 5, read.Build.RetryBudget)
	assert.Equal(t, "build", read.Build.OutputDirectory)
	require.NotNil(t, read.Compilation)
	assert.Equal(t, DefaultCompilationPlatform, read.Compilation.Platform)
	assert.NoError(t, read.Validate())
}

// TestValidate ensures invalid configurations are rejected.
func TestValidate(t *testing.T) {
	cases := map[string]func(*ProjectConfig){
		"empty name":        func(p *ProjectConfig) { p.Build.Name = "" },
		"path in name":      func(p *ProjectConfig) { p.Build.Name = "a/b" },
		"bad version":       func(p *ProjectConfig) { p.Build.Version = "latest" },
		"zero budget":       func(p *ProjectConfig) { p.Build.RetryBudget = 0 },
		"no output":         func(p *ProjectConfig) { p.Build.OutputDirectory = "" },
		"bad namespace":     func(p *ProjectConfig) { p.Build.Sources[0].Namespace = "a-b" },
		"empty source path": func(p *ProjectConfig) { p.Build.Sources[0].Path = "" },
		"no compilation":    func(p *ProjectConfig) { p.Compilation = nil },
		"unknown platform":  func(p *ProjectConfig) { p.Compilation.Platform = "solc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			projectConfig := getDefaultConfig(t)
			mutate(projectConfig)
			assert.Error(t, projectConfig.Validate())
		})
	}
}
