package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crytic/stencil/cmd/exitcodes"
	"github.com/crytic/stencil/loader"
	"github.com/crytic/stencil/logging/colors"
	"github.com/crytic/stencil/template"
	"github.com/crytic/stencil/utils"
	"github.com/spf13/cobra"
)

// transpileCmd represents the command provider for transpile
var transpileCmd = &cobra.Command{
	Use:           "transpile <template>",
	Short:         "Transpiles a template into Go source",
	Long:          `Transpiles a template file, or a template resource of a resource directory, into the Go source of a class rendering it`,
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunTranspile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	transpileCmd.Flags().SortFlags = false
	transpileCmd.Flags().String("class", "", "name of the generated class (default is the template file name without its extension)")
	transpileCmd.Flags().String("namespace", DefaultNamespace, "namespace of the generated class")
	transpileCmd.Flags().String("resources", "", "directory the template is loaded from as a resource")
	transpileCmd.Flags().String("out", "", "path the generated source is written to (default is standard output)")
	rootCmd.AddCommand(transpileCmd)
}

// cmdRunTranspile executes the transpile CLI command
func cmdRunTranspile(cmd *cobra.Command, args []string) error {
	className, _ := cmd.Flags().GetString("class")
	namespace, _ := cmd.Flags().GetString("namespace")
	resources, _ := cmd.Flags().GetString("resources")
	outputPath, _ := cmd.Flags().GetString("out")

	templateName := args[0]
	if className == "" {
		base := filepath.Base(templateName)
		className = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var (
		text string
		err  error
	)
	if resources != "" {
		text, err = loader.LoadText(os.DirFS(resources), templateName)
	} else {
		var data []byte
		data, err = os.ReadFile(templateName)
		text = string(data)
	}
	if err != nil {
		cmdLogger.Error("Failed to load the template", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	class, err := template.Transpile(text, className, namespace)
	if err != nil {
		cmdLogger.Error("Failed to transpile ", templateName, err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	source := class.Render()
	if outputPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), source)
		return err
	}
	if err = utils.WriteFile(outputPath, []byte(source)); err != nil {
		cmdLogger.Error("Failed to write the generated source", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	cmdLogger.Info("Class ", colors.Bold, class.QualifiedName(), colors.Reset, " written to: ", colors.Bold, outputPath, colors.Reset)
	return nil
}
