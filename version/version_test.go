package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestInfoFormatting ensures commit information is included when present.
func TestInfoFormatting(t *testing.T) {
	info := Info{Version: "1.2.3", GoVersion: "go1.24.0"}
	assert.Equal(t, "1.2.3", info.Short())
	assert.Equal(t, "unknown", info.FormattedTime())
	assert.NotContains(t, info.String(), "Commit")

	info.GitCommit = "0123456789abcdef"
	info.GitTreeDirty = true
	info.GitCommitTime = "2026-01-02T03:04:05Z"
	assert.Equal(t, "1.2.3+0123456-dirty", info.Short())
	assert.Contains(t, info.String(), "Commit:     0123456-dirty")
	assert.Contains(t, info.String(), "Built:      2026-01-02 03:04:05 UTC")
	assert.Contains(t, info.String(), "stencil version 1.2.3")
}
