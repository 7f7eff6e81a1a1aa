package asar

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxHeaderSize bounds the header pickle accepted by readHeader.
const maxHeaderSize = 256 << 20

// frameHeader wraps the JSON header in the size pickle and header pickle.
//
//nolint:gosec // header lengths are bounded well below 4GiB
func frameHeader(headerJSON []byte) []byte {
	padded := (len(headerJSON) + 3) &^ 3
	headerPickle := 8 + padded

	buf := make([]byte, 8+headerPickle)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], 4)
	le.PutUint32(buf[4:], uint32(headerPickle))
	le.PutUint32(buf[8:], uint32(4+padded))
	le.PutUint32(buf[12:], uint32(len(headerJSON)))
	copy(buf[16:], headerJSON)
	return buf
}

// readFrame reads the pickled header at the start of r. It returns the JSON
// text and the offset at which file bodies begin.
func readFrame(r io.ReaderAt) ([]byte, int64, error) {
	var size [8]byte
	if _, err := r.ReadAt(size[:], 0); err != nil {
		return nil, 0, fmt.Errorf("%w: read size pickle: %w", ErrInvalidHeader, err)
	}
	if payload := binary.LittleEndian.Uint32(size[0:]); payload != 4 {
		return nil, 0, fmt.Errorf("%w: size pickle payload %d", ErrInvalidHeader, payload)
	}
	headerSize := binary.LittleEndian.Uint32(size[4:])
	if headerSize < 8 || headerSize > maxHeaderSize {
		return nil, 0, fmt.Errorf("%w: header size %d", ErrInvalidHeader, headerSize)
	}

	pickle := make([]byte, headerSize)
	if _, err := r.ReadAt(pickle, 8); err != nil {
		return nil, 0, fmt.Errorf("%w: read header pickle: %w", ErrInvalidHeader, err)
	}
	payload := binary.LittleEndian.Uint32(pickle[0:])
	strLen := binary.LittleEndian.Uint32(pickle[4:])
	if uint64(payload)+4 > uint64(headerSize) || uint64(strLen)+4 > uint64(payload) {
		return nil, 0, fmt.Errorf("%w: header string length %d", ErrInvalidHeader, strLen)
	}
	return pickle[8 : 8+strLen], 8 + int64(headerSize), nil
}
