package firmware

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestMapImage_RoundTrip(t *testing.T) {
	data := []byte("HD\x00a.bin\x00\x00\x00\x00XY")
	path := writeTestFile(t, "image.bin", data)
	image, err := MapImage(path)
	if err != nil {
		t.Fatalf("Error mapping image: %s", err)
	}
	defer image.Close()
	if !bytes.Equal(image.Bytes(), data) {
		t.Fatalf("Expected %q, got %q", data, image.Bytes())
	}
	if image.Len() != int64(len(data)) {
		t.Fatalf("Expected length %d, got %d", len(data), image.Len())
	}
	if err := image.Close(); err != nil {
		t.Fatalf("Error closing image: %s", err)
	}
}

func TestMapImage_Empty(t *testing.T) {
	path := writeTestFile(t, "empty.bin", nil)
	image, err := MapImage(path)
	if err != nil {
		t.Fatalf("Error mapping empty image: %s", err)
	}
	defer image.Close()
	if image.Bytes() == nil || len(image.Bytes()) != 0 {
		t.Fatalf("Expected empty non-nil slice, got %v", image.Bytes())
	}
	result, err := Carve(image.Bytes(), testCarveConfig(t))
	if err != nil {
		t.Fatalf("Error carving empty image: %s", err)
	}
	if len(result.Files) != 0 || result.BytesRead != 0 {
		t.Fatalf("Expected nothing from an empty image, got %d files", len(result.Files))
	}
}

func TestMapImage_Missing(t *testing.T) {
	_, err := MapImage(filepath.Join(t.TempDir(), "nothere.bin"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected wrapped not-exist error, got %v", err)
	}
}

func TestImageReader(t *testing.T) {
	r := NewImageReader([]byte("0123456789"), 2)
	b, err := r.ReadByte()
	if err != nil || b != '2' {
		t.Fatalf("Expected '2', got %q (%v)", b, err)
	}
	if err := r.Skip(3); err != nil {
		t.Fatalf("Error skipping: %s", err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("Error reading: %s", err)
	}
	if string(buf) != "678" {
		t.Fatalf("Expected 678, got %s", buf)
	}
	if r.Offset() != 9 {
		t.Fatalf("Expected offset 9, got %d", r.Offset())
	}
	if err := r.Skip(-20); err == nil {
		t.Fatalf("Expected seeking before the start to fail")
	}
	if _, err := r.Seek(-1, io.SeekEnd); err != nil {
		t.Fatalf("Error seeking from end: %s", err)
	}
	n, err := r.Read(buf)
	if n != 1 || err != nil || buf[0] != '9' {
		t.Fatalf("Expected to read the last byte, got %d %q %v", n, buf[:n], err)
	}
	if _, err := r.Read(buf); err != io.EOF {
		t.Fatalf("Expected EOF, got %v", err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		t.Fatalf("Expected EOF from ReadByte, got %v", err)
	}
}
