package compilation

import (
	"encoding/json"

	"github.com/crytic/stencil/compilation/platforms"
	"github.com/pkg/errors"
)

// CompilationConfig describes which compiler backend builds the units of a project, and how.
type CompilationConfig struct {
	// Platform is the identifier of the compilation platform to use.
	Platform string `json:"platform"`

	// PlatformConfig holds the configuration of Platform. Its structure depends on the platform.
	PlatformConfig *json.RawMessage `json:"platformConfig"`
}

// NewCompilationConfig returns a CompilationConfig with the default configuration of the provided platform.
func NewCompilationConfig(platform string) (*CompilationConfig, error) {
	if !IsSupportedCompilationPlatform(platform) {
		return nil, errors.Errorf("could not get default compilation config: platform '%s' is unsupported", platform)
	}
	return NewCompilationConfigFromPlatformConfig(GetDefaultPlatformConfig(platform))
}

// NewCompilationConfigFromPlatformConfig wraps a platforms.PlatformConfig in a generic CompilationConfig, so that
// configurations of any platform can be serialized and deserialized alike.
func NewCompilationConfigFromPlatformConfig(platformConfig platforms.PlatformConfig) (*CompilationConfig, error) {
	b, err := json.Marshal(platformConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	platformConfigMsg := (*json.RawMessage)(&b)
	return &CompilationConfig{Platform: platformConfig.Platform(), PlatformConfig: platformConfigMsg}, nil
}

// GetPlatformConfig deserializes the platform specific configuration into the concrete configuration type of the
// platform. Fields missing from the serialized configuration keep their default values.
func (c *CompilationConfig) GetPlatformConfig() (platforms.PlatformConfig, error) {
	if !IsSupportedCompilationPlatform(c.Platform) {
		return nil, errors.Errorf("could not load compilation config: platform '%s' is unsupported", c.Platform)
	}

	// json.Unmarshal needs the concrete structure to populate.
	platformConfig := GetDefaultPlatformConfig(c.Platform)
	if c.PlatformConfig != nil {
		if err := json.Unmarshal(*c.PlatformConfig, platformConfig); err != nil {
			return nil, errors.Wrapf(err, "could not parse '%s' platform config", c.Platform)
		}
	}
	return platformConfig, nil
}
