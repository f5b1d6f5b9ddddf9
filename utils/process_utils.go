package utils

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// RunCommandWithOutputAndError runs a given exec.Cmd and returns the stdout, stderr, and
// combined output as bytes, or an error if one occurred.
func RunCommandWithOutputAndError(command *exec.Cmd) ([]byte, []byte, []byte, error) {
	var bStdout, bStderr, bCombined bytes.Buffer

	// Both streams write into the combined buffer concurrently.
	var combinedWriter io.Writer = &synchronizedWriter{writer: &bCombined}

	command.Stdout = io.MultiWriter(&bStdout, combinedWriter)
	command.Stderr = io.MultiWriter(&bStderr, combinedWriter)

	err := command.Run()
	return bStdout.Bytes(), bStderr.Bytes(), bCombined.Bytes(), err
}

// NewCommand creates an exec.Cmd bound to ctx which runs in the provided working directory. The environment is the
// current process environment with the provided overrides (in "KEY=value" form) applied on top.
func NewCommand(ctx context.Context, workingDirectory string, env []string, name string, args ...string) *exec.Cmd {
	command := exec.CommandContext(ctx, name, args...)
	command.Dir = workingDirectory
	command.Env = MergeEnvironment(os.Environ(), env)
	return command
}

// MergeEnvironment returns base with every "KEY=value" entry of overrides applied. Overridden keys keep their
// position in base, new keys are appended in order.
func MergeEnvironment(base []string, overrides []string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, entry := range append(append([]string{}, base...), overrides...) {
		key, _, _ := strings.Cut(entry, "=")
		if IsWindowsEnvironment() {
			key = strings.ToUpper(key)
		}
		if i, ok := index[key]; ok {
			merged[i] = entry
			continue
		}
		index[key] = len(merged)
		merged = append(merged, entry)
	}
	return merged
}

// IsWindowsEnvironment returns a boolean indicating whether the current execution environment is a Windows platform.
func IsWindowsEnvironment() bool {
	return runtime.GOOS == "windows"
}

// synchronizedWriter wraps an io.Writer to avoid a data race when writing.
type synchronizedWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

func (s *synchronizedWriter) Write(p []byte) (n int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writer.Write(p)
}
