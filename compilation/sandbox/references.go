package sandbox

import (
	"os"
	"path/filepath"

	"github.com/crytic/stencil/compilation/resolver"
	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/logging/colors"
	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"
)

// minimumGoVersion is the lowest go directive written to a generated go.mod.
const minimumGoVersion = "1.21"

// resolveReferences locates each reference on disk. An absolute location is tried first, then the search paths,
// then the registry. A reference which cannot be located is logged and skipped.
func (s *Sandbox) resolveReferences(references []types.Reference) []types.ResolvedReference {
	resolved := make([]types.ResolvedReference, 0, len(references))
	seen := make(map[string]struct{}, len(references))
	for _, reference := range references {
		handle, err := s.locate(reference)
		if err != nil {
			s.logger.Warn("Skipping reference ", colors.Bold, reference.Location, colors.Reset, ": ", err.Error())
			continue
		}

		// The generated module cannot require itself, and each module is only required once.
		if handle.Path == s.options.ModulePath {
			continue
		}
		if _, ok := seen[handle.Path]; ok {
			continue
		}
		seen[handle.Path] = struct{}{}

		resolved = append(resolved, types.ResolvedReference{
			Key:        reference.Key,
			ModulePath: handle.Path,
			Version:    handle.Version,
			Dir:        handle.Dir,
		})
	}
	return resolved
}

// locate returns the module a reference refers to.
func (s *Sandbox) locate(reference types.Reference) (resolver.ModuleHandle, error) {
	if filepath.IsAbs(reference.Location) {
		if handle, err := readModuleAt(reference.Location); err == nil {
			return handle, nil
		}
	}

	for _, searchPath := range s.options.SearchPaths {
		for _, name := range []string{filepath.Base(filepath.FromSlash(reference.Location)), reference.Key} {
			if handle, err := readModuleAt(filepath.Join(searchPath, name)); err == nil {
				return handle, nil
			}
		}
	}

	if handle, ok := s.options.Registry.Lookup(reference.Key); ok {
		if info, err := os.Stat(handle.Dir); err == nil && info.IsDir() {
			return handle, nil
		}
		return resolver.ModuleHandle{}, errors.Errorf("registered directory '%s' of '%s' does not exist", handle.Dir, reference.Key)
	}
	return resolver.ModuleHandle{}, errors.Wrapf(resolver.ErrModuleNotFound, "'%s' was not found", reference.Key)
}

// readModuleAt reads the module at location, which is either a module directory or its go.mod file.
func readModuleAt(location string) (resolver.ModuleHandle, error) {
	info, err := os.Stat(location)
	if err != nil {
		return resolver.ModuleHandle{}, errors.WithStack(err)
	}
	if !info.IsDir() {
		location = filepath.Dir(location)
	}
	return resolver.ReadModule(location)
}

// generateModFile returns the go.mod of the generated module. Every reference is required and replaced by its
// directory, so the build never needs to download a referenced module. The go directive is raised to the highest
// go version required by a reference.
func generateModFile(modulePath string, references []types.ResolvedReference) ([]byte, error) {
	f := new(modfile.File)
	if err := f.AddModuleStmt(modulePath); err != nil {
		return nil, errors.WithStack(err)
	}

	goVersion := minimumGoVersion
	for _, reference := range references {
		if v := moduleGoVersion(reference.Dir); v != "" && semver.Compare("v"+v, "v"+goVersion) > 0 {
			goVersion = v
		}
	}
	if err := f.AddGoStmt(goVersion); err != nil {
		return nil, errors.WithStack(err)
	}

	for _, reference := range references {
		version := reference.Version
		if !semver.IsValid(version) {
			version = "v0.0.0"
		}
		if err := f.AddRequire(reference.ModulePath, version); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := f.AddReplace(reference.ModulePath, "", reference.Dir, ""); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	f.Cleanup()
	data, err := f.Format()
	return data, errors.WithStack(err)
}

// moduleGoVersion returns the go directive of the module in dir, or an empty string if it has none.
func moduleGoVersion(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || f.Go == nil {
		return ""
	}
	return f.Go.Version
}
