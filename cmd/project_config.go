package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/stencil/config"
	"github.com/crytic/stencil/logging/colors"
	"github.com/spf13/cobra"
)

// loadProjectConfig resolves the project configuration of a command:
// #1: The file named by --config, or stencil.json in the working directory, is read if it exists.
// #2: If --config was used and the file does not exist, an error is returned.
// #3: If --config was not used and stencil.json does not exist, the default project configuration is used.
// Returns the configuration and the path it was read from, or would have been read from.
func loadProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, string, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	_, existenceError := os.Stat(configPath)
	if existenceError == nil {
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err := config.ReadProjectConfigFromFile(configPath)
		return projectConfig, configPath, err
	}
	if configFlagUsed {
		return nil, "", existenceError
	}

	cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration for the "+
		"%v compilation platform instead", configPath, DefaultCompilationPlatform))
	projectConfig, err := config.GetDefaultProjectConfig(DefaultCompilationPlatform)
	return projectConfig, configPath, err
}
