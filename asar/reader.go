package asar

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// UnpackedSuffix is appended to an archive path to name its unpacked
// directory.
const UnpackedSuffix = ".unpacked"

// maxLinkHops bounds symlink resolution inside an archive.
const maxLinkHops = 40

// Archive provides read access to an archive on disk.
type Archive struct {
	name   string
	f      *os.File
	header *Header
}

// Open parses the header of the archive at name.
func Open(name string) (*Archive, error) {
	f, err := os.Open(name) //nolint:gosec // caller-controlled path is intentional
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr, err := readHeader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Archive{name: name, f: f, header: hdr}, nil
}

func readHeader(f *os.File, size int64) (*Header, error) {
	headerJSON, dataOffset, err := readFrame(f)
	if err != nil {
		return nil, err
	}
	root := &Node{}
	if err := json.Unmarshal(headerJSON, root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: root is not a directory", ErrInvalidHeader)
	}
	if err := validate(root, "", size-dataOffset); err != nil {
		return nil, err
	}
	return &Header{root: root, dataOffset: dataOffset}, nil
}

// Close releases the archive file.
func (a *Archive) Close() error {
	return a.f.Close()
}

// Header returns the parsed header.
func (a *Archive) Header() *Header {
	return a.header
}

// UnpackedDir returns the directory that holds unpacked files.
func (a *Archive) UnpackedDir() string {
	return a.name + UnpackedSuffix
}

// Stat returns the node at name, following links.
func (a *Archive) Stat(name string) (*Node, error) {
	_, n, err := a.resolve(name)
	return n, err
}

// ReadFile returns the content of the file at name, following links and
// verifying the integrity record when present. Unpacked files are read from
// UnpackedDir.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	resolved, n, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}

	var data []byte
	if n.Unpacked {
		data, err = os.ReadFile(filepath.Join(a.UnpackedDir(), filepath.FromSlash(resolved)))
		if err != nil {
			return nil, err
		}
	} else {
		data = make([]byte, n.Size)
		if _, err := a.f.ReadAt(data, a.header.dataOffset+int64(n.Offset)); err != nil { //nolint:gosec // offset validated on open
			return nil, &fs.PathError{Op: "read", Path: name, Err: err}
		}
	}

	if n.Integrity != nil {
		if err := n.Integrity.Verify(data); err != nil {
			return nil, &fs.PathError{Op: "read", Path: name, Err: err}
		}
	}
	return data, nil
}

// resolve looks up name, following link nodes, and returns the final path
// and node.
func (a *Archive) resolve(name string) (string, *Node, error) {
	for range maxLinkHops {
		n, ok := a.header.Lookup(name)
		if !ok {
			return "", nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		if !n.IsLink() {
			return name, n, nil
		}
		name = n.Link
	}
	return "", nil, &fs.PathError{Op: "open", Path: name, Err: ErrTooManyLinks}
}

// linkRelative converts an archive-root link target back into a target
// relative to the directory containing name.
func linkRelative(name, target string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(name)), filepath.FromSlash(target))
	if err != nil {
		return "", err
	}
	return rel, nil
}
