package cmd

import (
	"path/filepath"

	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/config"
	"github.com/spf13/cobra"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() error {
	initCmd.Flags().String("out", "", "output path for the new project configuration file")
	initCmd.Flags().String("name", "", "name of the artifact")
	initCmd.Flags().Bool("generate-key", false, "generate a signing key next to the configuration file and sign the artifact with it")
	return nil
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to
// the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig, outputPath string) error {
	if cmd.Flags().Changed("name") {
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}
		projectConfig.Build.Name = name
	}

	generateKey, err := cmd.Flags().GetBool("generate-key")
	if err != nil || !generateKey {
		return err
	}
	keyFileName := projectConfig.Build.Name + artifacts.KeyFileExtension
	if _, err = artifacts.GenerateSigningKey(filepath.Join(filepath.Dir(outputPath), keyFileName)); err != nil {
		return err
	}
	// The key path is relative to the configuration file
	projectConfig.Build.SigningKeyPath = keyFileName
	return nil
}
