package compilation

import (
	"fmt"

	"github.com/crytic/stencil/compilation/platforms"
	"golang.org/x/exp/slices"
)

// defaultPlatformConfigGenerator maps a platform identifier to a function creating the default configuration of that
// platform. Every platform with a generator is a supported backend for a CompilationConfig. Populated in init.
var defaultPlatformConfigGenerator map[string]func() platforms.PlatformConfig

func init() {
	generators := []func() platforms.PlatformConfig{
		func() platforms.PlatformConfig { return platforms.NewGoToolchainConfig() },
	}

	defaultPlatformConfigGenerator = make(map[string]func() platforms.PlatformConfig)
	for _, generator := range generators {
		platformId := generator().Platform()

		// Each platform must have a unique identifier.
		if _, platformIdExists := defaultPlatformConfigGenerator[platformId]; platformIdExists {
			panic(fmt.Errorf("the compilation platform '%s' is registered with more than one provider", platformId))
		}
		defaultPlatformConfigGenerator[platformId] = generator
	}
}

// GetSupportedCompilationPlatforms returns the sorted identifiers of the supported compilation platforms.
func GetSupportedCompilationPlatforms() []string {
	platformIds := make([]string, 0, len(defaultPlatformConfigGenerator))
	for k := range defaultPlatformConfigGenerator {
		platformIds = append(platformIds, k)
	}
	slices.Sort(platformIds)
	return platformIds
}

// IsSupportedCompilationPlatform indicates if a platform identifier is supported.
func IsSupportedCompilationPlatform(platform string) bool {
	_, ok := defaultPlatformConfigGenerator[platform]
	return ok
}

// GetDefaultPlatformConfig returns the default PlatformConfig of the provided platform, or nil if it is unsupported.
func GetDefaultPlatformConfig(platform string) platforms.PlatformConfig {
	generator, ok := defaultPlatformConfigGenerator[platform]
	if !ok {
		return nil
	}
	return generator()
}
