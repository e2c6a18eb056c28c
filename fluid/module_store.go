// Package fluid resolves WebAssembly module names to files.
//
// Modules live in a directory tree, one subdirectory per module:
//
//	<base>/
//	├── fib/
//	│   └── fib.wat
//	└── math/
//	    └── math.wasm
//
// The tree may be a local directory (development) or a Fluid dataset mount
// (production). Fluid (https://github.com/fluid-cloudnative/fluid) exposes
// remote storage (S3, HDFS, etc.) as a POSIX path through FUSE, so both
// stores read ordinary files and need no Kubernetes client.
package fluid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrModuleNotFound is returned when a module cannot be resolved.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInvalidName is returned for names that could escape the base
	// directory.
	ErrInvalidName = errors.New("invalid module name")
)

// Extensions tried by Resolve, in order. Binary modules win over text.
var Extensions = []string{".wasm", ".wat"}

// ModuleStore resolves module names to filesystem paths.
//
// Implementations must:
//   - Return the path to a .wasm or .wat file
//   - Return ErrModuleNotFound if the module doesn't exist
//   - Return ErrInvalidName for names failing ValidName
//   - NOT modify or cache module files
type ModuleStore interface {
	// Resolve converts a module name to the path of its file:
	// <base>/<name>/<name>.wasm, or <base>/<name>/<name>.wat when no
	// binary exists.
	Resolve(name string) (string, error)
}

// New returns the store for kind "local" or "fluid" rooted at path.
func New(kind, path string) (ModuleStore, error) {
	switch kind {
	case "", "local":
		return NewLocalModuleStore(path), nil
	case "fluid":
		return NewFluidModuleStore(path), nil
	default:
		return nil, fmt.Errorf("unknown module store kind %q", kind)
	}
}

// ValidName reports whether name is safe to use in file paths: non-empty,
// only ASCII letters, digits, underscore and hyphen. This rejects path
// traversal such as "../etc/passwd".
func ValidName(name string) bool {
	if len(name) == 0 {
		return false
	}

	for _, c := range name {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-') {
			return false
		}
	}

	return true
}

// LocalModuleStore resolves modules from a local directory.
type LocalModuleStore struct {
	// basePath is the root directory containing module subdirectories.
	// Example: "./plugins" or "/app/modules"
	basePath string
}

// NewLocalModuleStore creates a LocalModuleStore with the given base path.
//
// Example:
//
//	store := NewLocalModuleStore("./plugins")
//	path, err := store.Resolve("fib") // "plugins/fib/fib.wat"
func NewLocalModuleStore(basePath string) *LocalModuleStore {
	return &LocalModuleStore{basePath: basePath}
}

func (s *LocalModuleStore) Resolve(name string) (string, error) {
	path, err := resolve(s.basePath, name)
	if err != nil && !errors.Is(err, ErrModuleNotFound) && !errors.Is(err, ErrInvalidName) {
		return "", fmt.Errorf("failed to access module: %w", err)
	}
	return path, err
}

// FluidModuleStore resolves modules from a Fluid dataset mount.
//
// A Dataset CR names the remote storage, a runtime (AlluxioRuntime,
// JuiceFSRuntime) caches and mounts it, and the pod mounts the resulting
// PVC, e.g. at /mnt/fluid/modules:
//
//	volumes:
//	  - name: modules
//	    persistentVolumeClaim:
//	      claimName: wasm-modules
//	volumeMounts:
//	  - name: modules
//	    mountPath: /mnt/fluid/modules
type FluidModuleStore struct {
	// mountPath is the Fluid dataset mount point.
	mountPath string
}

// NewFluidModuleStore creates a FluidModuleStore with the given mount path.
func NewFluidModuleStore(mountPath string) *FluidModuleStore {
	return &FluidModuleStore{mountPath: mountPath}
}

func (s *FluidModuleStore) Resolve(name string) (string, error) {
	path, err := resolve(s.mountPath, name)
	if err != nil && !errors.Is(err, ErrModuleNotFound) && !errors.Is(err, ErrInvalidName) {
		// Could be permission issues, mount problems, or network errors
		// (abstracted as filesystem errors by FUSE)
		return "", fmt.Errorf("failed to access module on Fluid mount: %w", err)
	}
	return path, err
}

func resolve(base, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrModuleNotFound)
	}
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	for _, ext := range Extensions {
		path := filepath.Join(base, name, name+ext)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
