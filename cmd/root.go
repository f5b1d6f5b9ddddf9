package cmd

import (
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger of the CLI. It logs to the console until a command configures logging from a project
// configuration.
var cmdLogger = logging.NewConsoleLogger(zerolog.InfoLevel).NewSubLogger("module", logging.CLI_SERVICE)

var rootCmd = &cobra.Command{
	Use:     "stencil",
	Short:   "A best effort template compiler",
	Long:    "stencil transpiles templates into Go sources and compiles them, together with plain Go units, into a single artifact, leaving out the units which fail to compile",
	Version: version.GetInfo().Short(),
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
