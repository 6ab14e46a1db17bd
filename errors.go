package pamedit

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the library. Callers detect them with
// errors.Is; the CLI maps each to a non-zero exit code.
var (
	// ErrPermission means a mutating action targeted the system PAM
	// directory without root privileges.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound means the requested service file does not exist.
	ErrNotFound = errors.New("service not found")

	// ErrNoMatch means a remove operation matched zero rules.
	ErrNoMatch = errors.New("no matching rules")

	// ErrBackupExists means a tree backup already exists and will not
	// be overwritten.
	ErrBackupExists = errors.New("backup already exists")

	// ErrNoBackup means a restore was requested with no backup present.
	ErrNoBackup = errors.New("no backup found")
)

// ValidationError reports a missing or invalid CLI field before any file
// is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
