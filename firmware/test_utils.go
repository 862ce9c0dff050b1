package firmware

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// A small carving setup that keeps test images readable
func testCarveConfig(t *testing.T) *CarveConfig {
	config := DefaultCarveConfig()
	config.MinRun = 4
	config.Lookback = 16
	config.OutputDir = filepath.Join(t.TempDir(), "extract")
	return config
}

func buildTestImage(t *testing.T, preamble string, entries []ImageEntry, config *CarveConfig, run int) []byte {
	var buf bytes.Buffer
	if err := BuildImage(&buf, []byte(preamble), entries, config, run); err != nil {
		t.Fatalf("Error building test image: %s", err)
	}
	return buf.Bytes()
}

func writeTestFile(t *testing.T, filename string, data []byte) string {
	path := filepath.Join(t.TempDir(), filename)
	if err := os.WriteFile(path, data, 0660); err != nil {
		t.Fatalf("Error writing test file %s: %s", path, err)
	}
	return path
}

func readTestFile(t *testing.T, path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Error reading %s: %s", path, err)
	}
	return data
}
