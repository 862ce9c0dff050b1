package firmware

import (
	"bytes"
	"errors"
	"testing"
)

// Accepts limit bytes, then fails
type failingWriter struct {
	limit int
	buf   bytes.Buffer
}

var errWriterFull = errors.New("writer full")

func (f *failingWriter) Write(b []byte) (int, error) {
	if f.buf.Len()+len(b) > f.limit {
		n := f.limit - f.buf.Len()
		f.buf.Write(b[:n])
		return n, errWriterFull
	}
	return f.buf.Write(b)
}

func TestWriteErrorPass(t *testing.T) {
	fw := &failingWriter{limit: 5}
	wep := NewWriteErrorPass(fw)
	wep.WritePass([]byte("abc"))
	if wep.IsPass() != nil {
		t.Fatalf("Didn't expect an error yet: %s", wep.IsPass())
	}
	wep.WritePass([]byte("defg"))
	wep.WritePass([]byte("hij"))
	if !errors.Is(wep.IsPass(), errWriterFull) {
		t.Fatalf("Expected the first error to stick, got %v", wep.IsPass())
	}
	if wep.Written() != 5 || fw.buf.String() != "abcde" {
		t.Fatalf("Expected 5 bytes written, got %d (%q)", wep.Written(), fw.buf.String())
	}
}

func TestBuildImage_WriteError(t *testing.T) {
	config := testCarveConfig(t)
	err := BuildImage(&failingWriter{limit: 3}, []byte("HEAD"), []ImageEntry{{Name: "a", Data: []byte("x")}}, config, 0)
	if !errors.Is(err, errWriterFull) {
		t.Fatalf("Expected write error from BuildImage, got %v", err)
	}
}
