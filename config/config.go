// Package config describes the project configuration file of a stencil build.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/crytic/stencil/compilation"
	"github.com/crytic/stencil/compilation/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ProjectConfig describes the configuration of a project built by stencil.
type ProjectConfig struct {
	// Build describes what is built and how failed passes are retried.
	Build BuildConfig `json:"build"`

	// Compilation describes the compiler backend used to build the units.
	Compilation *compilation.CompilationConfig `json:"compilation"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"logging"`
}

// BuildConfig describes the configuration of a build.
type BuildConfig struct {
	// Name is the name of the artifact.
	Name string `json:"name"`

	// Version is the semantic version recorded in the artifact identity.
	Version string `json:"version"`

	// OutputDirectory is the directory the artifact is written to.
	OutputDirectory string `json:"outputDirectory"`

	// WorkDirectory is the directory sandboxes are created under. The system temporary directory is used if empty.
	WorkDirectory string `json:"workDirectory,omitempty"`

	// RetryBudget is the maximum number of compilation passes.
	RetryBudget int `json:"retryBudget"`

	// Sources lists the directories holding templates and Go units.
	Sources []SourceConfig `json:"sources"`

	// References lists the paths or identifiers of the modules the units depend on.
	References []string `json:"references"`

	// SearchPaths lists directories searched for references which are not absolute paths.
	SearchPaths []string `json:"searchPaths"`

	// LoadCurrentModules adds the modules of the stencil binary as references.
	LoadCurrentModules bool `json:"loadCurrentModules"`

	// ModulePath is the module path of the generated module. A default is used if empty.
	ModulePath string `json:"modulePath,omitempty"`

	// SigningKeyPath is the key the artifact is signed with. The artifact is not signed if empty.
	SigningKeyPath string `json:"signingKeyPath,omitempty"`

	// JournalPath is the SQLite database builds are recorded to. Builds are not recorded if empty.
	JournalPath string `json:"journalPath,omitempty"`

	// MetricsPath is the file build metrics are written to in the Prometheus text format. Metrics are not written
	// if empty.
	MetricsPath string `json:"metricsPath,omitempty"`
}

// SourceConfig describes a directory of sources. Files ending with compilation.TemplateFileExtension are transpiled into units,
// other Go files are added as units as is.
type SourceConfig struct {
	// Path is the directory holding the sources.
	Path string `json:"path"`

	// Namespace is the namespace of the units found directly in Path. Units in sub-directories have the
	// sub-directory names appended to it.
	Namespace string `json:"namespace"`
}

// LoggingConfig describes the configuration options for logging.
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	Level zerolog.Level `json:"level"`

	// LogDirectory describes what directory log files should be outputted in. A non-empty LogDirectory enables
	// structured logging to a file.
	LogDirectory string `json:"logDirectory"`

	// NoColor indicates whether log messages should be displayed with colored formatting.
	NoColor bool `json:"noColor"`
}

// isYAML indicates whether path refers to a YAML configuration file.
func isYAML(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	return extension == ".yaml" || extension == ".yml"
}

// ReadProjectConfigFromFile reads a JSON or, by extension, YAML project configuration file. Values missing from the
// file keep their defaults. Environment variables are expanded in YAML files.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if isYAML(path) {
		if b, err = yamlToJSON([]byte(os.ExpandEnv(string(b)))); err != nil {
			return nil, errors.Wrapf(err, "could not parse '%s'", path)
		}
	}

	projectConfig, err := GetDefaultProjectConfig("")
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, projectConfig); err != nil {
		return nil, errors.Wrapf(err, "could not parse '%s'", path)
	}
	if projectConfig.Compilation == nil {
		if projectConfig.Compilation, err = compilation.NewCompilationConfig(DefaultCompilationPlatform); err != nil {
			return nil, err
		}
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to the provided file path, as YAML if the extension says so and as JSON
// otherwise.
func (p *ProjectConfig) WriteToFile(path string) error {
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if isYAML(path) {
		if b, err = jsonToYAML(b); err != nil {
			return err
		}
	}
	return errors.WithStack(os.WriteFile(path, b, 0644))
}

// Validate validates that the ProjectConfig meets certain requirements.
func (p *ProjectConfig) Validate() error {
	if p.Build.Name == "" {
		return errors.New("build name must be provided")
	}
	if strings.ContainsAny(p.Build.Name, `/\`) {
		return errors.Errorf("build name '%s' must not contain path separators", p.Build.Name)
	}
	if _, err := semver.NewVersion(p.Build.Version); err != nil {
		return errors.Errorf("build version '%s' is not a semantic version", p.Build.Version)
	}
	if p.Build.RetryBudget <= 0 {
		return errors.New("retry budget must be a positive number")
	}
	if p.Build.OutputDirectory == "" {
		return errors.New("output directory must be provided")
	}
	for _, source := range p.Build.Sources {
		if source.Path == "" {
			return errors.New("source path must be provided")
		}
		if err := types.ValidateUnitName(source.Namespace, "Source"); err != nil {
			return errors.Errorf("source '%s' has an invalid namespace '%s'", source.Path, source.Namespace)
		}
	}

	if p.Compilation == nil {
		return errors.New("compilation config must be provided")
	}
	if _, err := p.Compilation.GetPlatformConfig(); err != nil {
		return err
	}
	return nil
}

// yamlToJSON converts a YAML document to JSON so a single set of field names serves both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var document any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, errors.WithStack(err)
	}
	if document == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(document)
	return b, errors.WithStack(err)
}

// jsonToYAML converts a JSON document to block style YAML, keeping the order of its keys.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.WithStack(err)
	}
	clearStyle(&node)
	b, err := yaml.Marshal(&node)
	return b, errors.WithStack(err)
}

// clearStyle resets the flow and quoting style JSON parsing leaves on nodes. Strings which need quotes in YAML are
// still quoted by the encoder.
func clearStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearStyle(child)
	}
}
