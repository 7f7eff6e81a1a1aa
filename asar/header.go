package asar

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Node is one entry of the header tree. Directories have a non-nil Files
// map; links have a non-empty Link; everything else is a file.
type Node struct {
	// Files holds the children of a directory, keyed by base name.
	Files map[string]*Node

	// Size is the file length in bytes.
	Size int64

	// Offset is the body offset relative to the end of the header.
	// Meaningless for unpacked files.
	Offset uint64

	// Unpacked marks files stored outside the archive.
	Unpacked bool

	// Executable marks files with an owner execute bit.
	Executable bool

	// Link is the link target, relative to the archive root.
	Link string

	// Integrity is the content hash record. Nil for links and directories.
	Integrity *Integrity
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Files != nil
}

// IsLink reports whether n is a symbolic link.
func (n *Node) IsLink() bool {
	return n.Link != ""
}

type dirJSON struct {
	Files map[string]*Node `json:"files"`
}

type linkJSON struct {
	Link string `json:"link"`
}

type fileJSON struct {
	Size       int64      `json:"size"`
	Offset     string     `json:"offset,omitempty"`
	Unpacked   bool       `json:"unpacked,omitempty"`
	Executable bool       `json:"executable,omitempty"`
	Integrity  *Integrity `json:"integrity,omitempty"`
}

type nodeJSON struct {
	Files      map[string]*Node `json:"files"`
	Link       string           `json:"link"`
	Size       int64            `json:"size"`
	Offset     string           `json:"offset"`
	Unpacked   bool             `json:"unpacked"`
	Executable bool             `json:"executable"`
	Integrity  *Integrity       `json:"integrity"`
}

// MarshalJSON encodes n in the asar header shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.IsDir():
		return json.Marshal(dirJSON{Files: n.Files})
	case n.IsLink():
		return json.Marshal(linkJSON{Link: n.Link})
	}
	f := fileJSON{
		Size:       n.Size,
		Unpacked:   n.Unpacked,
		Executable: n.Executable,
		Integrity:  n.Integrity,
	}
	if !n.Unpacked {
		f.Offset = strconv.FormatUint(n.Offset, 10)
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes an asar header node.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{
		Files:      raw.Files,
		Link:       raw.Link,
		Size:       raw.Size,
		Unpacked:   raw.Unpacked,
		Executable: raw.Executable,
		Integrity:  raw.Integrity,
	}
	if raw.Offset != "" {
		off, err := strconv.ParseUint(raw.Offset, 10, 64)
		if err != nil {
			return fmt.Errorf("offset %q: %w", raw.Offset, err)
		}
		n.Offset = off
	}
	if n.Size < 0 {
		return fmt.Errorf("negative size %d", n.Size)
	}
	return nil
}

// Header is the parsed directory tree of an archive.
type Header struct {
	root *Node

	// dataOffset is where file bodies begin, from the start of the archive.
	dataOffset int64
}

// Root returns the root directory node.
func (h *Header) Root() *Node {
	return h.root
}

// DataOffset returns the byte offset at which file bodies begin.
func (h *Header) DataOffset() int64 {
	return h.dataOffset
}

// Lookup returns the node at the slash-separated path name without
// following links. "." returns the root.
func (h *Header) Lookup(name string) (*Node, bool) {
	if name == "." || name == "" {
		return h.root, true
	}
	if !fs.ValidPath(name) {
		return nil, false
	}
	n := h.root
	for part := range strings.SplitSeq(name, "/") {
		if !n.IsDir() {
			return nil, false
		}
		child, ok := n.Files[part]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// Walk visits every node below the root in lexical order, parents before
// children.
func (h *Header) Walk(fn func(name string, n *Node) error) error {
	return walkNode(h.root, "", fn)
}

func walkNode(dir *Node, prefix string, fn func(string, *Node) error) error {
	for _, name := range slices.Sorted(maps.Keys(dir.Files)) {
		child := dir.Files[name]
		full := path.Join(prefix, name)
		if err := fn(full, child); err != nil {
			return err
		}
		if child.IsDir() {
			if err := walkNode(child, full, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns the paths of every file and link, sorted.
func (h *Header) Files() []string {
	var out []string
	_ = h.Walk(func(name string, n *Node) error { //nolint:errcheck // callback never fails
		if !n.IsDir() {
			out = append(out, name)
		}
		return nil
	})
	return out
}

// validate checks that every child name is a single valid path element and
// that file extents lie within dataSize bytes of body data. A negative
// dataSize skips the extent check.
func validate(dir *Node, prefix string, dataSize int64) error {
	for name, child := range dir.Files {
		if child == nil || name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: invalid entry name %q under %q", ErrInvalidHeader, name, prefix)
		}
		full := path.Join(prefix, name)
		switch {
		case child.IsDir():
			if err := validate(child, full, dataSize); err != nil {
				return err
			}
		case child.IsLink():
			if !fs.ValidPath(child.Link) || child.Link == "." {
				return fmt.Errorf("%w: %s -> %s", ErrSymlinkEscape, full, child.Link)
			}
		case !child.Unpacked && dataSize >= 0:
			end := child.Offset + uint64(child.Size) //nolint:gosec // Size checked non-negative on decode
			if end < child.Offset || end > uint64(dataSize) {
				return fmt.Errorf("%w: %s extends past end of archive", ErrInvalidHeader, full)
			}
		}
	}
	return nil
}
