package platforms

import (
	"context"

	"github.com/crytic/stencil/compilation/types"
)

// PlatformConfig describes the interface all compiler backend configs must implement. Compile returns an error only
// for faults outside normal compilation: a compilation which fails returns a result with diagnostics and no
// artifact path.
type PlatformConfig interface {
	// Platform returns the identifier of the platform.
	Platform() string

	// Compile compiles the sources described by the request.
	Compile(ctx context.Context, request *types.BuildRequest) (*types.BuildResult, error)
}
