package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/crytic/stencil/config"
	"github.com/crytic/stencil/logging"
	"github.com/crytic/stencil/logging/colors"
	"github.com/pkg/errors"
)

// setupLogging configures the global logger from the logging config: colored or plain console output and, if a log
// directory is set, structured output to a new file in it. Returns a function closing the log file.
func setupLogging(loggingConfig config.LoggingConfig) (func(), error) {
	if loggingConfig.NoColor {
		colors.DisableColor()
	}

	logging.GlobalLogger = logging.NewLogger(loggingConfig.Level)
	logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, !loggingConfig.NoColor)
	cmdLogger = logging.GlobalLogger.NewSubLogger("module", logging.CLI_SERVICE)

	if loggingConfig.LogDirectory == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(loggingConfig.LogDirectory, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	fileName := "stencil-" + strconv.FormatInt(time.Now().Unix(), 10) + ".log"
	file, err := os.Create(filepath.Join(loggingConfig.LogDirectory, fileName))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED, false)
	cmdLogger = logging.GlobalLogger.NewSubLogger("module", logging.CLI_SERVICE)
	return func() {
		logging.GlobalLogger.RemoveWriter(file, logging.STRUCTURED, false)
		_ = file.Close()
	}, nil
}
