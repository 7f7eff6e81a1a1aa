package asarpack

import (
	"errors"

	"github.com/meigma/asarpack/asar"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("asarpack: invalid configuration")

	// ErrArchive is matched by every *ArchiveError.
	ErrArchive = errors.New("asarpack: archive stage failed")
)

// Errors re-exported from asar.
var (
	// ErrSymlinkEscape is returned when a symlink resolves outside the application.
	ErrSymlinkEscape = asar.ErrSymlinkEscape

	// ErrIntegrity is returned when archived content does not match its integrity record.
	ErrIntegrity = asar.ErrIntegrity

	// ErrInvalidHeader is returned when an archive header cannot be parsed.
	ErrInvalidHeader = asar.ErrInvalidHeader
)

// ConfigError reports an option set that cannot be packaged. It is returned
// before any file is written for the affected run.
type ConfigError struct {
	// Option names the offending option, such as "prebuiltAsar".
	Option string

	// Reason completes the sentence started by Option.
	Reason string

	// Path is the filesystem path involved, if any.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Option + " " + e.Reason
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ArchiveError reports a failure while building or substituting an archive.
// No archive is left in place when it is returned.
type ArchiveError struct {
	// Op is the failed step: "create", "unpack" or "substitute".
	Op string

	// Path is the file being processed.
	Path string

	Err error
}

func (e *ArchiveError) Error() string {
	return "archive " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrArchive.
func (e *ArchiveError) Is(target error) bool {
	return target == ErrArchive
}
