package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/stencil/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addBuildFlags adds the various flags for the build command to flags
func addBuildFlags(flags *pflag.FlagSet) error {
	defaultConfig, err := config.GetDefaultProjectConfig(DefaultCompilationPlatform)
	if err != nil {
		return err
	}

	// Prevent alphabetical sorting of usage message
	flags.SortFlags = false

	flags.String("config", "", "path to config file")
	flags.String("name", "",
		fmt.Sprintf("name of the artifact (unless a config file is provided, default is %q)", defaultConfig.Build.Name))
	flags.String("out", "",
		fmt.Sprintf("directory the artifact is written to (unless a config file is provided, default is %q)", defaultConfig.Build.OutputDirectory))
	flags.Int("budget", 0,
		fmt.Sprintf("maximum number of compilation passes (unless a config file is provided, default is %d)", defaultConfig.Build.RetryBudget))
	flags.String("artifact-version", "",
		fmt.Sprintf("semantic version recorded in the artifact identity (unless a config file is provided, default is %q)", defaultConfig.Build.Version))
	flags.String("sign-key", "", "path of the key the artifact is signed with")
	flags.StringSlice("references", []string{}, "paths or identifiers of modules the units depend on")
	flags.StringSlice("search-paths", []string{}, "directories searched for references")
	flags.String("work-dir", "", "directory sandboxes are created under")
	flags.String("journal", "", "path of a SQLite database builds are recorded to")
	flags.String("metrics", "", "path of a file build metrics are written to")
	flags.Bool("no-color", false, "disabled colored terminal output")
	return nil
}

// updateProjectConfigWithBuildFlags will update the given projectConfig with any CLI arguments that were provided to
// the build command. Relative paths given as flags are made absolute against the working directory, while relative
// paths of the configuration file stay relative to the file.
func updateProjectConfigWithBuildFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error
	stringFlags := map[string]*string{
		"name":             &projectConfig.Build.Name,
		"artifact-version": &projectConfig.Build.Version,
	}
	for name, target := range stringFlags {
		if cmd.Flags().Changed(name) {
			if *target, err = cmd.Flags().GetString(name); err != nil {
				return err
			}
		}
	}

	pathFlags := map[string]*string{
		"out":      &projectConfig.Build.OutputDirectory,
		"sign-key": &projectConfig.Build.SigningKeyPath,
		"work-dir": &projectConfig.Build.WorkDirectory,
		"journal":  &projectConfig.Build.JournalPath,
		"metrics":  &projectConfig.Build.MetricsPath,
	}
	for name, target := range pathFlags {
		if !cmd.Flags().Changed(name) {
			continue
		}
		value, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}
		if *target, err = absolutePath(value); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("budget") {
		if projectConfig.Build.RetryBudget, err = cmd.Flags().GetInt("budget"); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("references") {
		references, err := cmd.Flags().GetStringSlice("references")
		if err != nil {
			return err
		}
		for _, reference := range references {
			// Identifiers are kept as is, only references found on disk are paths.
			if _, statErr := os.Stat(reference); statErr == nil {
				if reference, err = absolutePath(reference); err != nil {
					return err
				}
			}
			projectConfig.Build.References = append(projectConfig.Build.References, reference)
		}
	}

	if cmd.Flags().Changed("search-paths") {
		searchPaths, err := cmd.Flags().GetStringSlice("search-paths")
		if err != nil {
			return err
		}
		for _, searchPath := range searchPaths {
			if searchPath, err = absolutePath(searchPath); err != nil {
				return err
			}
			projectConfig.Build.SearchPaths = append(projectConfig.Build.SearchPaths, searchPath)
		}
	}

	if cmd.Flags().Changed("no-color") {
		if projectConfig.Logging.NoColor, err = cmd.Flags().GetBool("no-color"); err != nil {
			return err
		}
	}
	return nil
}

// absolutePath returns path made absolute against the working directory, or an empty path as is.
func absolutePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	absolute, err := filepath.Abs(path)
	return absolute, errors.WithStack(err)
}
