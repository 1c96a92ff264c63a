package codec

import "encoding/binary"

// Writer builds a fixed-width little-endian byte stream.
type Writer struct {
	buf []byte
}

func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteWords writes each word as 8 bytes little-endian.
func (w *Writer) WriteWords(words []uint64) {
	for _, v := range words {
		w.WriteQ(v)
	}
}

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Bytes() []byte { return w.buf }
