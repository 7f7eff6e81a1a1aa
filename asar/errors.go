package asar

import "errors"

var (
	// ErrInvalidHeader is returned when an archive header cannot be parsed.
	ErrInvalidHeader = errors.New("asar: invalid header")

	// ErrIntegrity is returned when file content does not match its
	// integrity record.
	ErrIntegrity = errors.New("asar: integrity mismatch")

	// ErrSymlinkEscape is returned when a symlink points outside the
	// archive root.
	ErrSymlinkEscape = errors.New("asar: symlink escapes archive root")

	// ErrPathConflict is returned when two entries claim the same path, or a
	// file path is also used as a directory.
	ErrPathConflict = errors.New("asar: path conflict")

	// ErrUnsupportedType is returned for entries that are neither regular
	// files nor symlinks.
	ErrUnsupportedType = errors.New("asar: unsupported file type")

	// ErrTooManyLinks is returned when resolving a symlink chain exceeds
	// the hop limit.
	ErrTooManyLinks = errors.New("asar: too many levels of symbolic links")
)
