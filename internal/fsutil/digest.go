package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// ErrDigestMismatch is returned when a copied file does not digest to the
// same value as its source.
var ErrDigestMismatch = errors.New("digest mismatch")

// FileDigest returns the canonical digest of the file at path.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path) //nolint:gosec // caller-controlled path is intentional
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}

// CopyVerified copies src to dst byte for byte and verifies the result by
// digesting the written file. On mismatch dst is removed.
func CopyVerified(ctx context.Context, src, dst string) (digest.Digest, error) {
	in, err := os.Open(src) //nolint:gosec // caller-controlled path is intentional
	if err != nil {
		return "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", src)
	}

	out, err := CreateAtomic(dst)
	if err != nil {
		return "", err
	}
	defer out.Discard() //nolint:errcheck // no-op after Commit

	digester := digest.Canonical.Digester()
	if _, err := CopyWithContext(ctx, io.MultiWriter(out, digester.Hash()), in, nil); err != nil {
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	want := digester.Digest()
	if err := out.Commit(info.Mode().Perm()); err != nil {
		return "", err
	}

	got, err := FileDigest(dst)
	if err != nil {
		return "", err
	}
	if got != want {
		_ = os.Remove(dst) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("%w: %s: expected %s, got %s", ErrDigestMismatch, dst, want, got)
	}
	return got, nil
}
