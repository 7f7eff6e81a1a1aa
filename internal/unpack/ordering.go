package unpack

import (
	"bufio"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ParseOrdering reads an ordering list: one path per line, blank lines and
// lines starting with '#' skipped. Lines of the form "<prefix>: <path>", as
// emitted by startup tracers, keep only the path.
func ParseOrdering(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.LastIndex(line, ": "); i >= 0 {
			line = strings.TrimSpace(line[i+2:])
		}
		if line = normalizeOrderingPath(line); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func normalizeOrderingPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
