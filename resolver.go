package pamedit

import (
	"fmt"
	"os"
)

// Default directories. The system directory is only writable as root; all
// other users get the sandbox so the tool can be exercised safely.
const (
	DefaultSystemDir  = "/etc/pam.d"
	DefaultSandboxDir = "./pam.d"
)

// Resolver selects the active config directory from the process's
// effective UID.
type Resolver struct {
	SystemDir  string
	SandboxDir string

	// euid is swappable for tests; defaults to os.Geteuid.
	euid func() int
}

// NewResolver creates a resolver over the given directories. Empty
// arguments fall back to the defaults.
func NewResolver(systemDir, sandboxDir string) *Resolver {
	if systemDir == "" {
		systemDir = DefaultSystemDir
	}
	if sandboxDir == "" {
		sandboxDir = DefaultSandboxDir
	}
	return &Resolver{
		SystemDir:  systemDir,
		SandboxDir: sandboxDir,
		euid:       os.Geteuid,
	}
}

// Resolve returns the active config directory: the system directory when
// running as root, otherwise the sandbox.
func (r *Resolver) Resolve() string {
	if r.euid() == 0 {
		return r.SystemDir
	}
	return r.SandboxDir
}

// CheckWritable fails with ErrPermission when a mutating action targets
// the system directory without root. It is called before any file is
// opened for writing.
func (r *Resolver) CheckWritable(dir string) error {
	if dir == r.SystemDir && r.euid() != 0 {
		return fmt.Errorf("mutating %s requires root: %w", dir, ErrPermission)
	}
	return nil
}
