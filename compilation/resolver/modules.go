package resolver

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/contract"
	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// HostModulePath is the module path of the module hosting the engine. Generated code imports its contract package.
var HostModulePath = strings.TrimSuffix(contract.ImportPath, "/contract")

// ErrModuleNotFound indicates a directory does not hold a Go module.
var ErrModuleNotFound = errors.New("module not found")

// ReadModule reads the go.mod in dir and returns a handle describing the module. Returns ErrModuleNotFound if dir
// holds no go.mod.
func ReadModule(dir string) (ModuleHandle, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ModuleHandle{}, errors.WithStack(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return ModuleHandle{}, errors.Wrapf(ErrModuleNotFound, "no go.mod in '%s'", dir)
		}
		return ModuleHandle{}, errors.WithStack(err)
	}

	modulePath := modfile.ModulePath(data)
	if modulePath == "" {
		return ModuleHandle{}, errors.Errorf("go.mod in '%s' declares no module path", dir)
	}
	return ModuleHandle{
		Name: types.NormalizeReferenceKey(modulePath),
		Path: modulePath,
		Dir:  dir,
	}, nil
}

// FindModuleRoot walks up from dir to the first directory holding a go.mod and returns a handle for that module.
func FindModuleRoot(dir string) (ModuleHandle, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ModuleHandle{}, errors.WithStack(err)
	}
	for {
		handle, err := ReadModule(dir)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return ModuleHandle{}, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ModuleHandle{}, errors.Wrapf(ErrModuleNotFound, "no go.mod above '%s'", dir)
		}
		dir = parent
	}
}

// HostModule locates the module hosting the engine. The source location of this package is tried first, then the
// build information of the running binary.
func HostModule() (ModuleHandle, error) {
	if _, file, _, ok := runtime.Caller(0); ok && filepath.IsAbs(file) {
		handle, err := FindModuleRoot(filepath.Dir(file))
		if err == nil && handle.Path == HostModulePath {
			return handle, nil
		}
	}

	info, ok := debug.ReadBuildInfo()
	if ok {
		candidates := append([]*debug.Module{&info.Main}, info.Deps...)
		for _, m := range candidates {
			if m == nil || m.Path != HostModulePath {
				continue
			}
			if handle, ok := moduleFromBuildInfo(m); ok {
				return handle, nil
			}
		}
	}
	return ModuleHandle{}, errors.Wrapf(ErrModuleNotFound, "could not locate module '%s'", HostModulePath)
}

// LoadedModules returns a handle for every dependency of the running binary which can be located on disk, in the
// order the build information lists them.
func LoadedModules() []ModuleHandle {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	handles := make([]ModuleHandle, 0, len(info.Deps))
	for _, m := range info.Deps {
		if handle, ok := moduleFromBuildInfo(m); ok {
			handles = append(handles, handle)
		}
	}
	return handles
}

// moduleFromBuildInfo resolves the directory of a module listed in build information. Local replacements are used
// as is, other modules are looked up in the module cache.
func moduleFromBuildInfo(m *debug.Module) (ModuleHandle, bool) {
	if m.Replace != nil {
		if m.Replace.Version == "" {
			if !filepath.IsAbs(m.Replace.Path) {
				return ModuleHandle{}, false
			}
			handle, err := ReadModule(m.Replace.Path)
			if err != nil {
				return ModuleHandle{}, false
			}
			handle.Path = m.Path
			handle.Name = types.NormalizeReferenceKey(m.Path)
			return handle, true
		}
		m = &debug.Module{Path: m.Replace.Path, Version: m.Replace.Version, Sum: m.Replace.Sum}
	}

	if m.Version == "" || m.Version == "(devel)" {
		return ModuleHandle{}, false
	}
	dir, err := ModuleCacheDirectory(m.Path, m.Version)
	if err != nil {
		return ModuleHandle{}, false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ModuleHandle{}, false
	}
	return ModuleHandle{
		Name:    types.NormalizeReferenceKey(m.Path),
		Path:    m.Path,
		Version: m.Version,
		Dir:     dir,
	}, true
}

// ModuleCacheDirectory returns the directory the module cache extracts the given module version to.
func ModuleCacheDirectory(modulePath string, version string) (string, error) {
	escapedPath, err := module.EscapePath(modulePath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	escapedVersion, err := module.EscapeVersion(version)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return filepath.Join(moduleCacheRoot(), filepath.FromSlash(escapedPath)+"@"+escapedVersion), nil
}

// moduleCacheRoot returns the root of the module cache from GOMODCACHE, GOPATH, or the default GOPATH.
func moduleCacheRoot() string {
	if dir := os.Getenv("GOMODCACHE"); dir != "" {
		return dir
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		return filepath.Join(filepath.SplitList(gopath)[0], "pkg", "mod")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("go", "pkg", "mod")
	}
	return filepath.Join(home, "go", "pkg", "mod")
}

// Deduplicate removes handles sharing a normalized name. When names collide the most recently listed handle is kept,
// at the position of its last occurrence.
func Deduplicate(handles []ModuleHandle) []ModuleHandle {
	seen := make(map[string]struct{}, len(handles))
	reversed := make([]ModuleHandle, 0, len(handles))
	for i := len(handles) - 1; i >= 0; i-- {
		key := types.NormalizeReferenceKey(handles[i].Path)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		reversed = append(reversed, handles[i])
	}

	deduplicated := make([]ModuleHandle, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		deduplicated = append(deduplicated, reversed[i])
	}
	return deduplicated
}

// CurrentModules returns the host module followed by the de-duplicated modules of the running binary. A loaded
// module sharing the host module's name is dropped.
func CurrentModules() ([]ModuleHandle, error) {
	host, err := HostModule()
	if err != nil {
		return nil, err
	}

	modules := []ModuleHandle{host}
	hostKey := types.NormalizeReferenceKey(host.Path)
	for _, handle := range Deduplicate(LoadedModules()) {
		if types.NormalizeReferenceKey(handle.Path) == hostKey {
			continue
		}
		modules = append(modules, handle)
	}
	return modules, nil
}
