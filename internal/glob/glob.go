// Package glob compiles the doublestar patterns used by unpack and ignore
// rules.
//
// A pattern without a slash matches the base name of a path ("*.node"
// matches "build/Release/addon.node"). A pattern with a slash matches the
// whole slash-separated path relative to the application root.
package glob

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrEmptyPattern is returned when compiling an empty pattern.
var ErrEmptyPattern = errors.New("glob: empty pattern")

// Pattern is a compiled glob.
type Pattern struct {
	raw       string
	expr      string
	matchBase bool
	fold      bool
}

// Compile validates pattern. When fold is true, matching ignores case.
func Compile(pattern string, fold bool) (*Pattern, error) {
	expr := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	expr = strings.TrimSuffix(expr, "/")
	if expr == "" {
		return nil, ErrEmptyPattern
	}
	if fold {
		expr = strings.ToLower(expr)
	}
	if !doublestar.ValidatePattern(expr) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}
	return &Pattern{
		raw:       pattern,
		expr:      expr,
		matchBase: !strings.Contains(expr, "/"),
		fold:      fold,
	}, nil
}

// String returns the pattern as given to Compile.
func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether name matches, applying base-name matching for
// patterns without a slash.
func (p *Pattern) Match(name string) bool {
	if p.matchBase {
		return p.match(path.Base(name))
	}
	return p.match(name)
}

// MatchPath reports whether the whole path name matches.
func (p *Pattern) MatchPath(name string) bool {
	return p.match(name)
}

// MatchAncestor reports whether any directory containing name matches the
// whole-path pattern.
func (p *Pattern) MatchAncestor(name string) bool {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if p.match(dir) {
			return true
		}
	}
	return false
}

func (p *Pattern) match(name string) bool {
	if p.fold {
		name = strings.ToLower(name)
	}
	// The pattern was validated in Compile, so Match cannot fail.
	ok, _ := doublestar.Match(p.expr, name) //nolint:errcheck // validated pattern
	return ok
}

// CompileAll compiles every pattern, stopping at the first invalid one.
func CompileAll(patterns []string, fold bool) ([]*Pattern, error) {
	out := make([]*Pattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := Compile(raw, fold)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// HostFoldCase reports whether the host filesystem conventionally compares
// names without regard to case.
func HostFoldCase() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}
