package firmware

import (
	"io"
)

// A writer which skips everything once a write has failed, so a long series
// of writes only needs its error checked once at the end
type WriteErrorPass struct {
	w       io.Writer
	err     error
	written int64
}

func NewWriteErrorPass(w io.Writer) *WriteErrorPass {
	return &WriteErrorPass{w: w}
}

func (wep *WriteErrorPass) Write(b []byte) (int, error) {
	if wep.err != nil {
		return 0, wep.err
	}
	n, err := wep.w.Write(b)
	wep.written += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		wep.err = err
	}
	return n, err
}

func (wep *WriteErrorPass) WritePass(b []byte) int {
	n, _ := wep.Write(b)
	return n
}

// Total bytes that made it to the underlying writer
func (wep *WriteErrorPass) Written() int64 {
	return wep.written
}

func (wep *WriteErrorPass) IsPass() error {
	return wep.err
}
