package asar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
)

const (
	// IntegrityAlgorithm is the only hash algorithm written or verified.
	IntegrityAlgorithm = "SHA256"

	// BlockSize is the size of each hashed block.
	BlockSize = 4 << 20
)

// Integrity is the content hash record of a file node.
type Integrity struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	BlockSize int      `json:"blockSize"`
	Blocks    []string `json:"blocks"`
}

// Verify checks data against the record.
func (i *Integrity) Verify(data []byte) error {
	if i.Algorithm != IntegrityAlgorithm {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrIntegrity, i.Algorithm)
	}
	if i.BlockSize <= 0 {
		return fmt.Errorf("%w: invalid block size %d", ErrIntegrity, i.BlockSize)
	}
	w := newIntegrityWriter(i.BlockSize)
	_, _ = w.Write(data) //nolint:errcheck // hash writes never fail
	got := w.Sum()
	if got.Hash != i.Hash || !slices.Equal(got.Blocks, i.Blocks) {
		return ErrIntegrity
	}
	return nil
}

// integrityWriter hashes everything written to it, whole and in blocks.
type integrityWriter struct {
	blockSize int
	whole     hash.Hash
	block     hash.Hash
	blockN    int
	blocks    []string
}

func newIntegrityWriter(blockSize int) *integrityWriter {
	return &integrityWriter{
		blockSize: blockSize,
		whole:     sha256.New(),
		block:     sha256.New(),
	}
}

// Write implements io.Writer.
func (w *integrityWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.whole.Write(p)
	for len(p) > 0 {
		chunk := p[:min(len(p), w.blockSize-w.blockN)]
		w.block.Write(chunk)
		w.blockN += len(chunk)
		p = p[len(chunk):]
		if w.blockN == w.blockSize {
			w.flushBlock()
		}
	}
	return n, nil
}

func (w *integrityWriter) flushBlock() {
	w.blocks = append(w.blocks, hex.EncodeToString(w.block.Sum(nil)))
	w.block.Reset()
	w.blockN = 0
}

// Sum finalizes the record. An empty input yields one block, the hash of
// no bytes.
func (w *integrityWriter) Sum() *Integrity {
	if w.blockN > 0 || len(w.blocks) == 0 {
		w.flushBlock()
	}
	return &Integrity{
		Algorithm: IntegrityAlgorithm,
		Hash:      hex.EncodeToString(w.whole.Sum(nil)),
		BlockSize: w.blockSize,
		Blocks:    w.blocks,
	}
}
