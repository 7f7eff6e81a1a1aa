// Package unpack decides which staged files stay outside the sealed archive.
//
// A file is unpacked when its path matches the unpack pattern or when one of
// its containing directories matches the unpack directory pattern. Every
// other file is sealed. Decisions depend only on the rules and the path, so
// selecting the same tree twice yields the same result.
package unpack

import "github.com/meigma/asarpack/internal/glob"

// Decision is the per-file outcome of selection.
type Decision uint8

const (
	// Sealed files are stored inside the archive.
	Sealed Decision = iota

	// Unpacked files are materialized next to the archive.
	Unpacked
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Sealed:
		return "sealed"
	case Unpacked:
		return "unpacked"
	default:
		return "unknown"
	}
}

// Decisions maps slash-separated relative paths to their decision.
type Decisions map[string]Decision

// Unpacked returns the paths marked Unpacked, in the order given.
func (d Decisions) Unpacked(order []string) []string {
	var out []string
	for _, p := range order {
		if d[p] == Unpacked {
			out = append(out, p)
		}
	}
	return out
}

// Rules holds the raw unpack patterns. Empty fields are unset.
type Rules struct {
	// Pattern is matched against each file path.
	Pattern string

	// Dir is matched against each directory containing a file.
	Dir string
}

// RuleError reports an invalid rule and names the field it came from.
type RuleError struct {
	// Rule is "unpack" or "unpackDir".
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return e.Rule + ": " + e.Err.Error()
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Option configures a Selector.
type Option func(*Selector)

// WithFoldCase overrides the host default for case-insensitive matching.
func WithFoldCase(fold bool) Option {
	return func(s *Selector) {
		s.fold = fold
	}
}

// Selector evaluates compiled Rules.
type Selector struct {
	fold    bool
	pattern *glob.Pattern
	dir     *glob.Pattern
}

// New compiles rules. Invalid patterns are reported with the name of the
// offending field.
func New(rules Rules, opts ...Option) (*Selector, error) {
	s := &Selector{fold: glob.HostFoldCase()}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if rules.Pattern != "" {
		if s.pattern, err = glob.Compile(rules.Pattern, s.fold); err != nil {
			return nil, &RuleError{Rule: "unpack", Err: err}
		}
	}
	if rules.Dir != "" {
		if s.dir, err = glob.Compile(rules.Dir, s.fold); err != nil {
			return nil, &RuleError{Rule: "unpackDir", Err: err}
		}
	}
	return s, nil
}

// Empty reports whether no rule is set, in which case every file is sealed.
func (s *Selector) Empty() bool {
	return s.pattern == nil && s.dir == nil
}

// Decide returns the decision for a single path.
func (s *Selector) Decide(path string) Decision {
	if s.pattern != nil && s.pattern.Match(path) {
		return Unpacked
	}
	if s.dir != nil && s.dir.MatchAncestor(path) {
		return Unpacked
	}
	return Sealed
}

// Select decides every path.
func (s *Selector) Select(paths []string) Decisions {
	out := make(Decisions, len(paths))
	for _, p := range paths {
		out[p] = s.Decide(p)
	}
	return out
}

// Order returns paths rearranged so that entries listed in ordering come
// first, in their listed order, followed by the remaining paths in their
// original order. Ordering entries that are not in paths are ignored.
func Order(paths, ordering []string) []string {
	if len(ordering) == 0 {
		return append([]string(nil), paths...)
	}

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = false
	}

	out := make([]string, 0, len(paths))
	for _, p := range ordering {
		p = normalizeOrderingPath(p)
		placed, ok := present[p]
		if !ok || placed {
			continue
		}
		present[p] = true
		out = append(out, p)
	}
	for _, p := range paths {
		if !present[p] {
			out = append(out, p)
		}
	}
	return out
}
