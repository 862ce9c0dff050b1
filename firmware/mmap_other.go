//go:build !(darwin || linux)

package firmware

import (
	"os"
)

// Without mmap the whole image is read into memory up front
type MappedImage struct {
	data []byte
	path string
}

func MapImage(path string) (*MappedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return &MappedImage{data: data, path: path}, nil
}

func (m *MappedImage) Close() error {
	m.data = nil
	return nil
}
