package asarpack

import (
	"fmt"
	"os"
)

// Warning texts delivered when a prebuilt archive overrides other options.
const (
	WarnAsarIgnored = "prebuiltAsar has been specified, all asar options will be ignored"

	warnIncompatible = "prebuiltAsar and %[1]s are incompatible, ignoring the %[1]s option"
)

// IncompatibleWarning returns the warning delivered when option is set
// together with a prebuilt archive.
func IncompatibleWarning(option string) string {
	return fmt.Sprintf(warnIncompatible, option)
}

// Validation is the outcome of ValidatePrebuilt: every applicable warning,
// in order, and the first fatal error if any.
type Validation struct {
	Warnings []string
	Err      error
}

// ValidatePrebuilt checks that path names a regular file and that opts can
// be combined with substituting it for a built archive.
//
// Options that a prebuilt archive makes redundant (asar, ignore, prune,
// derefSymlinks) produce warnings. Hooks that expect a staged tree
// (afterCopy, afterPrune) are fatal, as is a path that is missing or not a
// regular file. All warnings are collected before the first fatal error is
// reported.
func ValidatePrebuilt(path string, opts Options) Validation {
	var v Validation

	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		v.Err = &ConfigError{Option: "prebuiltAsar", Reason: "must be an asar file", Path: path}
	}

	if _, enabled := Normalize(opts.Asar); enabled {
		v.Warnings = append(v.Warnings, WarnAsarIgnored)
	}
	if len(opts.Ignore) > 0 {
		v.Warnings = append(v.Warnings, IncompatibleWarning("ignore"))
	}
	if opts.Prune != nil && !*opts.Prune {
		v.Warnings = append(v.Warnings, IncompatibleWarning("prune"))
	}
	if opts.DerefSymlinks != nil && !*opts.DerefSymlinks {
		v.Warnings = append(v.Warnings, IncompatibleWarning("derefSymlinks"))
	}

	if v.Err != nil {
		return v
	}
	for _, hook := range []struct {
		name  string
		hooks []Hook
	}{
		{"afterCopy", opts.AfterCopy},
		{"afterPrune", opts.AfterPrune},
	} {
		if hook.hooks != nil {
			v.Err = &ConfigError{Option: hook.name, Reason: "is incompatible with prebuiltAsar"}
			return v
		}
	}
	return v
}
