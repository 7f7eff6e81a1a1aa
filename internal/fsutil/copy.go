// Package fsutil provides the filesystem primitives shared by the archive
// writer, the staging copy and the layout writer.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSizeChanged indicates a file grew or shrank while it was being read.
var ErrSizeChanged = errors.New("file size changed during copy")

// copyBufferSize is the buffer size used when callers do not supply one.
const copyBufferSize = 32 * 1024

// CopyWithContext streams src into dst and returns the bytes written.
// Every file body the packager touches (hashing, archive bodies, staging
// and unpacked copies) goes through here, so a canceled run stops within
// one buffer. A nil buf allocates a 32KB buffer.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	if buf == nil {
		buf = make([]byte, copyBufferSize)
	}
	var written uint64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += uint64(nw) //nolint:gosec // io.Writer guarantees 0 <= nw <= nr
			switch {
			case werr != nil:
				return written, werr
			case nw != nr:
				return written, io.ErrShortWrite
			}
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return written, nil
		case rerr != nil:
			return written, rerr
		}
	}
}

// CopyExact copies exactly size bytes of src into dst. A source that ends
// early or holds more than size bytes yields ErrSizeChanged.
func CopyExact(ctx context.Context, dst io.Writer, src io.Reader, size int64, buf []byte) error {
	n, err := CopyWithContext(ctx, dst, io.LimitReader(src, size+1), buf)
	if err != nil {
		return err
	}
	if n != uint64(size) { //nolint:gosec // sizes come from Stat and are non-negative
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeChanged, size, n)
	}
	return nil
}
