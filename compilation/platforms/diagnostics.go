package platforms

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/crytic/stencil/compilation/types"
)

// diagnosticPattern matches a compiler message of the form "file.go:line[:column]: message".
var diagnosticPattern = regexp.MustCompile(`^(.+?\.go):(\d+)(?::(\d+))?: (.+)$`)

// ParseDiagnostics extracts diagnostics from go command output. Relative file paths are resolved against
// workingDirectory. Lines which are not diagnostics, such as package headers, are skipped.
func ParseDiagnostics(output []byte, workingDirectory string) []types.Diagnostic {
	diagnostics := make([]types.Diagnostic, 0)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		match := diagnosticPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		file := filepath.FromSlash(strings.TrimPrefix(match[1], "./"))
		if !filepath.IsAbs(file) {
			file = filepath.Join(workingDirectory, file)
		}
		lineNumber, _ := strconv.Atoi(match[2])
		column, _ := strconv.Atoi(match[3])

		diagnostics = append(diagnostics, types.Diagnostic{
			File:    filepath.Clean(file),
			Line:    lineNumber,
			Column:  column,
			Message: match[4],
		})
	}
	return diagnostics
}
