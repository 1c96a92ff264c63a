package codec

import (
	"encoding/binary"
	"errors"
)

// ErrShortRead is recorded when a read runs past the end of the data.
var ErrShortRead = errors.New("short read")

// Reader reads fixed-width little-endian fields. The first read past the end
// sets Err; later reads return zero.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.data) {
		r.err = ErrShortRead
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadWords fills dst with consecutive uint64 words.
func (r *Reader) ReadWords(dst []uint64) {
	for i := range dst {
		dst[i] = r.ReadQ()
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) Err() error { return r.err }
