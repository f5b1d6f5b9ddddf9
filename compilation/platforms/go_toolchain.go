package platforms

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/crytic/stencil/compilation/artifacts"
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/utils"
	"github.com/pkg/errors"
)

// GoToolchainPlatform is the platform identifier of the Go toolchain backend.
const GoToolchainPlatform = "go"

// goVersionPattern matches the toolchain version reported by "go version".
var goVersionPattern = regexp.MustCompile(`go(\d+\.\d+(?:\.\d+)?)`)

// GoToolchainConfig describes the configuration of the backend which compiles units with the go command.
type GoToolchainConfig struct {
	// GoCommand is the go command to run. Defaults to "go" resolved through PATH.
	GoCommand string `json:"goCommand"`

	// BuildFlags holds additional flags passed to every go build invocation.
	BuildFlags []string `json:"buildFlags,omitempty"`

	// Env holds additional environment variables ("KEY=value") for the go command.
	Env []string `json:"env,omitempty"`

	// CacheDirectory overrides GOCACHE when set.
	CacheDirectory string `json:"cacheDirectory,omitempty"`

	// AllowNetwork leaves GOPROXY and GOSUMDB untouched so missing modules can be downloaded.
	AllowNetwork bool `json:"allowNetwork"`
}

// NewGoToolchainConfig returns a GoToolchainConfig with default values.
func NewGoToolchainConfig() *GoToolchainConfig {
	return &GoToolchainConfig{
		GoCommand:  "go",
		BuildFlags: []string{},
		Env:        []string{},
	}
}

// Platform returns the platform identifier of the config.
func (g *GoToolchainConfig) Platform() string {
	return GoToolchainPlatform
}

// goCommand returns the go command to run.
func (g *GoToolchainConfig) goCommand() string {
	if g.GoCommand == "" {
		return "go"
	}
	return g.GoCommand
}

// environment returns the environment overrides for a go invocation serving the provided request.
func (g *GoToolchainConfig) environment(request *types.BuildRequest) []string {
	env := []string{"GOWORK=off", "GOFLAGS=-mod=mod", "GOTOOLCHAIN=local"}
	if !g.AllowNetwork {
		env = append(env, "GOPROXY=off", "GOSUMDB=off")
	}
	if request.ScratchDirectory != "" {
		env = append(env, "GOTMPDIR="+request.ScratchDirectory)
	}
	if g.CacheDirectory != "" {
		env = append(env, "GOCACHE="+g.CacheDirectory)
	}
	env = append(env, g.Env...)
	return append(env, request.Env...)
}

// GetSystemGoVersion runs "go version" with the provided go command and parses the toolchain version.
func GetSystemGoVersion(ctx context.Context, goCommand string) (*semver.Version, error) {
	if goCommand == "" {
		goCommand = "go"
	}
	cmd := utils.NewCommand(ctx, "", []string{"GOTOOLCHAIN=local"}, goCommand, "version")
	_, _, out, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return nil, errors.Errorf("error while executing go version:\nOUTPUT:\n%s\nERROR: %s\n", string(out), err.Error())
	}
	return ParseGoVersion(string(out))
}

// ParseGoVersion parses the toolchain version out of "go version" output.
func ParseGoVersion(output string) (*semver.Version, error) {
	match := goVersionPattern.FindStringSubmatch(output)
	if match == nil {
		return nil, errors.Errorf("could not parse go version from '%s'", strings.TrimSpace(output))
	}
	v, err := semver.NewVersion(match[1])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// Compile builds every package of the request's module. If the build fails, the compiler diagnostics are returned.
// Otherwise, each package is compiled to an archive and the archives, sources and manifest are written to the
// artifact bundle at the request's output path.
func (g *GoToolchainConfig) Compile(ctx context.Context, request *types.BuildRequest) (*types.BuildResult, error) {
	env := g.environment(request)

	// Type check and build everything, reporting all errors instead of stopping after the first few.
	args := append([]string{"build", "-gcflags=-e"}, g.BuildFlags...)
	args = append(args, "./...")
	cmd := utils.NewCommand(ctx, request.WorkingDirectory, env, g.goCommand(), args...)
	_, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		diagnostics := ParseDiagnostics(combined, request.WorkingDirectory)
		if len(diagnostics) == 0 {
			return nil, errors.Errorf("error while executing go build:\n%s\n\nCommand Output:\n%s\n", err.Error(), string(combined))
		}
		return &types.BuildResult{Diagnostics: diagnostics}, nil
	}

	bundle, err := g.buildBundle(ctx, request, env)
	if err != nil {
		return nil, err
	}
	if err = bundle.Write(request.OutputPath); err != nil {
		return nil, err
	}
	return &types.BuildResult{ArtifactPath: request.OutputPath}, nil
}

// buildBundle compiles each package of the request's module to an archive and assembles the artifact bundle.
func (g *GoToolchainConfig) buildBundle(ctx context.Context, request *types.BuildRequest, env []string) (*artifacts.Bundle, error) {
	identity, err := artifacts.NewIdentity(request.ArtifactName, request.Version, "")
	if err != nil {
		return nil, err
	}
	bundle := artifacts.NewBundle(identity)
	bundle.Manifest.References = request.References
	bundle.Manifest.CreatedAt = time.Now().UTC()
	if v, err := GetSystemGoVersion(ctx, g.goCommand()); err == nil {
		bundle.Manifest.Toolchain = "go" + v.String()
	}

	packages, err := g.listPackages(ctx, request, env)
	if err != nil {
		return nil, err
	}

	archiveDirectory := request.ScratchDirectory
	if archiveDirectory == "" {
		archiveDirectory = request.WorkingDirectory
	}
	for i, importPath := range packages {
		archivePath := filepath.Join(archiveDirectory, "archive-"+strconv.Itoa(i)+".a")
		args := append([]string{"build", "-buildmode=archive", "-o", archivePath}, g.BuildFlags...)
		args = append(args, importPath)
		cmd := utils.NewCommand(ctx, request.WorkingDirectory, env, g.goCommand(), args...)
		_, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
		if err != nil {
			return nil, errors.Errorf("error while archiving package '%s':\n%s\n\nCommand Output:\n%s\n", importPath, err.Error(), string(combined))
		}

		data, err := os.ReadFile(archivePath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		bundle.AddArchive(importPath, data)
	}

	for _, sourceFile := range request.SourceFiles {
		data, err := os.ReadFile(sourceFile.Path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		bundle.AddSource(sourceFile.QualifiedName, data)
	}

	if request.SigningKeyPath != "" {
		key, err := artifacts.LoadSigningKey(request.SigningKeyPath)
		if err != nil {
			return nil, err
		}
		if err = bundle.Sign(key); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// listPackages returns the import paths of the non-main packages of the request's module.
func (g *GoToolchainConfig) listPackages(ctx context.Context, request *types.BuildRequest, env []string) ([]string, error) {
	cmd := utils.NewCommand(ctx, request.WorkingDirectory, env, g.goCommand(), "list", "-f", "{{.ImportPath}} {{.Name}}", "./...")
	stdout, _, combined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return nil, errors.Errorf("error while executing go list:\n%s\n\nCommand Output:\n%s\n", err.Error(), string(combined))
	}

	packages := make([]string, 0)
	for _, line := range strings.Split(string(stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] == "main" {
			continue
		}
		packages = append(packages, fields[0])
	}
	return packages, nil
}
