// Package testutil builds fixture trees for tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// BasicApp is the content of the "basic" fixture application.
var BasicApp = map[string]string{
	"main.js":                        "require('./lib/util')\n",
	"package.json":                   `{"name":"basic","main":"main.js"}`,
	"index.html":                     "<!doctype html>\n",
	"proxy.pac":                      "function FindProxyForURL(url, host) { return 'DIRECT' }\n",
	"lib/util.js":                    "module.exports = {}\n",
	"dir_to_unpack/file1.txt":        "unpacked one\n",
	"dir_to_unpack/nested/file2.txt": "unpacked two\n",
}

// WriteTree writes files, keyed by slash-separated relative path, under dir.
func WriteTree(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
}

// NewBasicApp writes the basic fixture application into a fresh temp
// directory and returns its path.
func NewBasicApp(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	WriteTree(tb, dir, BasicApp)
	return dir
}

// NewTemplate writes a runtime template containing the placeholder default
// app under resourcesDir, plus a stand-in executable.
func NewTemplate(tb testing.TB, resourcesDir string) string {
	tb.Helper()
	dir := tb.TempDir()
	res := filepath.ToSlash(resourcesDir)
	WriteTree(tb, dir, map[string]string{
		"runtime":                     "binary",
		res + "/default_app.asar":     "placeholder",
		res + "/default_app/index.js": "placeholder",
		res + "/electron.asar":        "runtime",
	})
	return dir
}

// ListTree returns the slash-separated paths of every file and symlink under
// dir, sorted.
func ListTree(tb testing.TB, dir string) []string {
	tb.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		tb.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(out)
	return out
}

// Recorder collects strings from concurrent callers, such as warnings.
type Recorder struct {
	mu    sync.Mutex
	items []string
}

// Record appends s.
func (r *Recorder) Record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, s)
}

// Items returns a copy of everything recorded, in order.
func (r *Recorder) Items() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}
