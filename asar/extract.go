package asar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Extract writes every entry of the archive under dest. Files marked
// executable get mode 0755, everything else 0644. Links are recreated
// relative to their directory.
func (a *Archive) Extract(ctx context.Context, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil { //nolint:gosec // extracted trees are world-readable
		return fmt.Errorf("create destination directory: %w", err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return err
	}
	defer root.Close()

	return a.header.Walk(func(name string, n *Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fsName := filepath.FromSlash(name)
		switch {
		case n.IsDir():
			return root.MkdirAll(fsName, 0o755)
		case n.IsLink():
			target, err := linkRelative(name, n.Link)
			if err != nil {
				return err
			}
			return root.Symlink(target, fsName)
		}

		data, err := a.ReadFile(name)
		if err != nil {
			return err
		}
		var perm os.FileMode = 0o644
		if n.Executable {
			perm = 0o755
		}
		return root.WriteFile(fsName, data, perm)
	})
}
