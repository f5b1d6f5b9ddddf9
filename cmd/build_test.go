package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/crytic/stencil/cmd/exitcodes"
	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/config"
	"github.com/crytic/stencil/journal"
	"github.com/crytic/stencil/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildCommandPartial builds a project holding a broken unit with the go toolchain and ensures the artifact is
// written without it and the build exits as partial.
func TestBuildCommandPartial(t *testing.T) {
	testutils.RequireGoToolchain(t)
	if testing.Short() {
		t.Skip("skipping toolchain build in short mode")
	}
	host, err := resolver.HostModule()
	if err != nil {
		t.Skip("engine module is not available on disk")
	}

	projectDirectory := testutils.CopyToTestDirectory(t, "testdata/project")
	projectConfig, err := config.GetDefaultProjectConfig(DefaultCompilationPlatform)
	require.NoError(t, err)
	projectConfig.Build.Name = "greetings"
	projectConfig.Build.References = []string{host.Dir}
	projectConfig.Build.LoadCurrentModules = false
	projectConfig.Build.WorkDirectory = "work"
	projectConfig.Build.JournalPath = "journal.db"
	projectConfig.Build.MetricsPath = "metrics.prom"
	configPath := filepath.Join(projectDirectory, DefaultProjectConfigFilename)
	require.NoError(t, projectConfig.WriteToFile(configPath))

	testutils.ExecuteInDirectory(t, projectDirectory, func() {
		_, err = executeRoot(t, "", "build", "--config", configPath, "--budget", "2", "--no-color")
	})
	_, exitCode := exitcodes.GetInnerErrorAndExitCode(err)
	require.Equal(t, exitcodes.ExitCodeBuildPartial, exitCode, "build error: %v", err)

	bundle, err := artifacts.ReadBundle(filepath.Join(projectDirectory, "build", "greetings"+artifacts.FileExtension))
	require.NoError(t, err)
	assert.Equal(t, []string{"templates.Greeting", "templates.Visitor"}, bundle.Units())
	assert.FileExists(t, filepath.Join(projectDirectory, "metrics.prom"))

	buildJournal, err := journal.Open(filepath.Join(projectDirectory, "journal.db"))
	require.NoError(t, err)
	defer buildJournal.Close()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	builds, err := buildJournal.Builds(ctx, 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "partial", builds[0].Outcome)
}
