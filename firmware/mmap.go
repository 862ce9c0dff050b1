//go:build darwin || linux

package firmware

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// A whole image file mapped read-only. Pages fault in as the scan reaches them.
type MappedImage struct {
	file *os.File
	data []byte // mmap'd MAP_SHARED, PROT_READ; nil for empty files
	path string
}

func MapImage(path string) (*MappedImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	size := stat.Size()
	if size == 0 {
		// mmap refuses zero length mappings
		return &MappedImage{file: file, data: []byte{}, path: path}, nil
	}
	if int64(int(size)) != size {
		file.Close()
		return nil, &IOError{Op: "map", Path: path, Err: fmt.Errorf("file too large to map (%d bytes)", size)}
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, &IOError{Op: "map", Path: path, Err: err}
	}
	return &MappedImage{file: file, data: data, path: path}, nil
}

// Unmap the region and close the file. The slice from Bytes must not be
// used afterwards.
func (m *MappedImage) Close() error {
	var firstErr error
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			firstErr = &IOError{Op: "unmap", Path: m.path, Err: err}
		}
	}
	m.data = nil
	if m.file != nil {
		if err := m.file.Close(); err != nil && firstErr == nil {
			firstErr = &IOError{Op: "close", Path: m.path, Err: err}
		}
		m.file = nil
	}
	return firstErr
}
