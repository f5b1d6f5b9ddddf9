package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/crytic/stencil/cmd/exitcodes"
	"github.com/crytic/stencil/compilation"
	"github.com/crytic/stencil/config"
	"github.com/crytic/stencil/journal"
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/logging/colors"
	"github.com/crytic/stencil/metrics"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// buildCmd represents the command provider for build
var buildCmd = &cobra.Command{
	Use:               "build",
	Short:             "Compiles the sources of a project into an artifact",
	Long:              `Compiles the templates and Go units of a project into an artifact, leaving out the units which fail to compile`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cmdValidBuildArgs,
	RunE:              cmdRunBuild,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	err := addBuildFlags(buildCmd.Flags())
	if err != nil {
		cmdLogger.Panic("Failed to initialize the build command", err)
	}
	rootCmd.AddCommand(buildCmd)
}

// cmdValidBuildArgs will return which flags are valid for dynamic completion for the build command
func cmdValidBuildArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdRunBuild executes the build CLI command
func cmdRunBuild(cmd *cobra.Command, args []string) error {
	projectConfig, configPath, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the build command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	err = updateProjectConfigWithBuildFlags(cmd, projectConfig)
	if err == nil {
		err = projectConfig.Validate()
	}
	if err != nil {
		cmdLogger.Error("Failed to run the build command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Relative paths of the configuration are relative to the directory holding it
	err = os.Chdir(filepath.Dir(configPath))
	if err != nil {
		cmdLogger.Error("Failed to run the build command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	closeLog, err := setupLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to set up logging", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	defer closeLog()

	return runBuild(cmd.Context(), projectConfig)
}

// runBuild builds the project described by projectConfig and maps the outcome of the build to an exit code.
func runBuild(ctx context.Context, projectConfig *config.ProjectConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	buildConfig := projectConfig.Build
	platformConfig, err := projectConfig.Compilation.GetPlatformConfig()
	if err != nil {
		cmdLogger.Error("Failed to load the compilation platform", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	options := []compilation.SourceCompilerOption{
		compilation.WithPlatform(platformConfig),
		compilation.WithLogger(logging.GlobalLogger),
		compilation.WithVersion(buildConfig.Version),
		compilation.WithSearchPaths(buildConfig.SearchPaths...),
	}
	if buildConfig.WorkDirectory != "" {
		options = append(options, compilation.WithWorkRoot(buildConfig.WorkDirectory))
	}
	if buildConfig.ModulePath != "" {
		options = append(options, compilation.WithModulePath(buildConfig.ModulePath))
	}

	if buildConfig.JournalPath != "" {
		buildJournal, err := journal.Open(buildConfig.JournalPath)
		if err != nil {
			cmdLogger.Error("Failed to open the build journal", err)
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
		}
		defer buildJournal.Close()
		options = append(options, compilation.WithJournal(buildJournal))
	}

	var recorder *metrics.PrometheusRecorder
	if buildConfig.MetricsPath != "" {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		options = append(options, compilation.WithRecorder(recorder))
	}

	compiler, err := compilation.NewSourceCompiler(buildConfig.Name, buildConfig.OutputDirectory, options...)
	if err != nil {
		cmdLogger.Error("Failed to create the compiler", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	err = addProjectSources(compiler, buildConfig)
	if err != nil {
		cmdLogger.Error("Failed to add the project sources", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	var dropped []string
	compiler.Events.BuildCompleted.Subscribe(func(event compilation.BuildCompletedEvent) error {
		dropped = event.DroppedUnits
		return nil
	})

	artifactPath, buildErr := compiler.Compile(ctx, buildConfig.RetryBudget)

	if recorder != nil {
		if err := recorder.WriteToTextfile(buildConfig.MetricsPath); err != nil {
			cmdLogger.Warn("Failed to write build metrics", err)
		}
	}

	if compiler.HasErrors() {
		cmdLogger.Warn(errorSummary(compiler.Errors()).Args()...)
	}

	if buildErr != nil {
		if errors.Is(buildErr, compilation.ErrBuildFailed) {
			cmdLogger.Error("The build of ", buildConfig.Name, " produced no artifact")
			return exitcodes.NewErrorWithExitCode(buildErr, exitcodes.ExitCodeBuildFailed)
		}
		cmdLogger.Error("Failed to run the build command", buildErr)
		return exitcodes.NewErrorWithExitCode(buildErr, exitcodes.ExitCodeHandledError)
	}

	cmdLogger.Info("Artifact written to: ", colors.Bold, artifactPath, colors.Reset)
	if len(dropped) > 0 {
		buffer := logging.NewLogBuffer()
		buffer.Append("The artifact was built without ", colors.Yellow, len(dropped), colors.Reset, " unit(s):")
		for _, unit := range dropped {
			buffer.Append("\n  ", colors.RedBold, colors.CROSS, colors.Reset, " ", unit)
		}
		cmdLogger.Warn(buffer)
		return exitcodes.NewErrorWithExitCode(nil, exitcodes.ExitCodeBuildPartial)
	}
	return nil
}

// addProjectSources adds the sources, references and signing key of a build configuration to the compiler.
func addProjectSources(compiler *compilation.SourceCompiler, buildConfig config.BuildConfig) error {
	for _, source := range buildConfig.Sources {
		names, err := compiler.AddSourceDirectory(os.DirFS(source.Path), source.Namespace)
		if err != nil {
			return errors.Wrapf(err, "could not add sources from %v", source.Path)
		}
		cmdLogger.Info("Added ", len(names), " unit(s) from ", colors.Bold, source.Path, colors.Reset)
	}

	for _, reference := range buildConfig.References {
		compiler.AddReference(reference)
	}
	if buildConfig.LoadCurrentModules {
		if err := compiler.LoadCurrentModules(); err != nil {
			cmdLogger.Warn("Could not load the modules of the running binary", err)
		}
	}

	if buildConfig.SigningKeyPath != "" {
		compiler.SetSigningKeyPath(buildConfig.SigningKeyPath)
	}
	return nil
}

// errorSummary formats the error lists of the failed passes of a build.
func errorSummary(errorLists [][]string) *logging.LogBuffer {
	buffer := logging.NewLogBuffer()
	buffer.Append(colors.Bold, len(errorLists), " pass(es) failed", colors.Reset)
	for i, errorList := range errorLists {
		buffer.Append("\n", colors.DarkGray, "Failed pass #", i+1, colors.Reset)
		for _, line := range errorList {
			buffer.Append("\n  ", colors.Red, line, colors.Reset)
		}
	}
	return buffer
}
