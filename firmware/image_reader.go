package firmware

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// The mapped bytes. Callers must not modify them.
func (m *MappedImage) Bytes() []byte {
	return m.data
}

func (m *MappedImage) Len() int64 {
	return int64(len(m.data))
}

func (m *MappedImage) Path() string {
	return m.path
}

// A sequential reader over the mapped bytes, positioned at offset
func (m *MappedImage) Reader(offset int64) *ImageReader {
	return NewImageReader(m.data, offset)
}

// Reads a byte slice front to back with relative seeking. Reads from a
// mapping that fault are reported as errors instead of crashing.
type ImageReader struct {
	data []byte
	pos  int64
}

func NewImageReader(data []byte, offset int64) *ImageReader {
	return &ImageReader{data: data, pos: offset}
}

func (r *ImageReader) Offset() int64 {
	return r.pos
}

func (r *ImageReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos < 0 || r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if rec := recover(); rec != nil {
			err = &IOError{Op: "read", Path: fmt.Sprintf("image offset %#x", r.pos), Err: fmt.Errorf("%v", rec)}
		}
	}()
	n = copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *ImageReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Seeking before the start is an error; seeking past the end is allowed and
// reads return io.EOF from there.
func (r *ImageReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = int64(len(r.data)) + offset
	default:
		return r.pos, errors.New("invalid whence")
	}
	if abs < 0 {
		return r.pos, fmt.Errorf("seek to negative position %d", abs)
	}
	r.pos = abs
	return abs, nil
}

// Move forward (or back) relative to the current position
func (r *ImageReader) Skip(n int64) error {
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}
