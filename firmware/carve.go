package firmware

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinRun      = 15 * 16 // Shortest zero run accepted as a file boundary
	DefaultLookback    = 40      // Bytes kept before a run to find the name in
	DefaultExtractPath = "./extract"
	DefaultReserve     = 1 << 30 // Accumulation buffer reservation for the CLI
)

// Everything needed to cut files out of an image
type CarveConfig struct {
	Marker    []byte // The repeated separator (usually a single zero byte)
	MinRun    int    // How many back to back markers make a boundary
	Lookback  int    // Context kept for name recovery
	OutputDir string
	Reserve   int  // Bytes to reserve up front for a single file's payload
	HexOutput bool // Write Intel HEX (.hex appended) instead of raw binary
}

func DefaultCarveConfig() *CarveConfig {
	return &CarveConfig{
		Marker:    []byte{0},
		MinRun:    DefaultMinRun,
		Lookback:  DefaultLookback,
		OutputDir: DefaultExtractPath,
	}
}

func (c *CarveConfig) Validate() error {
	if err := ValidatePattern(c.Marker); err != nil {
		return &ConfigError{Field: "marker", Err: err}
	}
	// A threshold of 1 would turn the separator byte before every name into
	// a boundary of its own
	if c.MinRun < 2 {
		return &ConfigError{Field: "min_run", Err: fmt.Errorf("must be at least 2, got %d", c.MinRun)}
	}
	if c.Lookback < 2 {
		return &ConfigError{Field: "lookback", Err: fmt.Errorf("must be at least 2, got %d", c.Lookback)}
	}
	if c.OutputDir == "" {
		return &ConfigError{Field: "output", Err: errors.New("output directory is empty")}
	}
	if c.Reserve < 0 {
		return &ConfigError{Field: "reserve", Err: fmt.Errorf("negative reservation %d", c.Reserve)}
	}
	return nil
}

// A single file cut out of the image
type CarvedFile struct {
	Name     string `json:"name"`     // Name as recovered from the image (forward slashes)
	Path     string `json:"path"`     // Where it was written
	Boundary int64  `json:"boundary"` // Offset of the marker run that opened this file
	Start    int64  `json:"start"`    // Offset of the first payload byte
	Length   int    `json:"length"`
	MD5      string `json:"md5"`
	Blake3   string `json:"blake3"`
}

type CarveResult struct {
	Files     []*CarvedFile        `json:"files"`
	Failures  []*NameRecoveryError `json:"failures"`
	Skipped   int                  `json:"skipped"`    // Bytes seen while no file was open
	BytesRead int64                `json:"bytes_read"` // Total bytes pushed through the matcher
}

// Find the name sitting at the end of a context window: everything after the
// last zero byte, with backslashes turned into forward slashes.
func RecoverName(window []byte) (string, error) {
	idx := bytes.LastIndexByte(window, 0)
	if idx < 0 {
		return "", errors.New("no separator byte in context window")
	}
	name := strings.ReplaceAll(string(window[idx+1:]), "\\", "/")
	if err := ValidateRecoveredName(name); err != nil {
		return "", err
	}
	return name, nil
}

// Names come straight out of untrusted image bytes. They must be printable
// UTF-8 and stay inside the output directory.
func ValidateRecoveredName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name %q is not valid UTF-8", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("name %q contains control characters", name)
		}
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("name %q is absolute", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("name %q escapes the output directory", name)
	}
	return nil
}

// All the mutable state of one carving run
type carver struct {
	config   *CarveConfig
	result   *CarveResult
	buffer   []byte
	bufStart int64 // Offset of buffer[0], -1 when empty
	current  *os.File
	info     *CarvedFile
}

// Cut every named file out of the image. Each file runs from the end of one
// marker run to the start of the trailer ("\0" + name of the next file +
// marker run) that opens the next one; the last file runs to the end of the
// data. Boundaries without a usable name are logged and skipped, and their
// bytes stay with whichever file is open.
func Carve(data []byte, config *CarveConfig) (result *CarveResult, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := carver{
		config:   config,
		result:   &CarveResult{Files: make([]*CarvedFile, 0), Failures: make([]*NameRecoveryError, 0)},
		buffer:   make([]byte, 0, config.Reserve),
		bufStart: -1,
	}
	defer c.closeCurrent()

	pattern := NewPattern(config.Marker, config.Lookback, config.MinRun)
	lastBoundary := int64(-1)
	var read int64

	// Data is usually memory mapped; an I/O error under the mapping is a
	// fault, not an error return
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			result = nil
			err = &IOError{Op: "read", Path: fmt.Sprintf("image offset %#x", read), Err: fmt.Errorf("%v", r)}
		}
	}()

	for _, b := range data {
		read++
		n, ok := pattern.Push(b)
		if !ok {
			if c.bufStart < 0 {
				c.bufStart = read - 1
			}
			c.buffer = append(c.buffer, b)
			continue
		}
		boundary := read - int64(n)
		if boundary == lastBoundary {
			// The run grew by one more marker. For multi-byte markers the
			// leading bytes of that repeat went into the buffer, take them back
			c.dropTail(len(config.Marker) - 1)
			continue
		}
		lastBoundary = boundary
		if err := c.boundary(pattern, boundary, n); err != nil {
			return nil, err
		}
	}

	c.result.BytesRead = read
	if c.current != nil {
		if err := c.finalize(len(c.buffer), read); err != nil {
			return nil, err
		}
	} else {
		c.result.Skipped += len(c.buffer)
	}
	return c.result, nil
}

func (c *carver) dropTail(count int) {
	if count <= 0 {
		return
	}
	count = min(count, len(c.buffer))
	c.buffer = c.buffer[:len(c.buffer)-count]
	if len(c.buffer) == 0 {
		c.bufStart = -1
	}
}

// Act on the first signal of a new marker run
func (c *carver) boundary(pattern *Pattern, boundary int64, n int) error {
	window := pattern.Materialize()
	name, err := RecoverName(window)
	if err != nil {
		failure := &NameRecoveryError{
			Boundary: boundary,
			Context:  append([]byte(nil), window...),
			Reason:   err.Error(),
		}
		slog.Warn("name recovery failed", "boundary", boundary, "reason", failure.Reason,
			"context", hexString(window))
		c.result.Failures = append(c.result.Failures, failure)
		return nil
	}

	if c.current != nil {
		// The buffer ends with the trailer for the new file: the separator,
		// the name, then every run byte that came before the signal
		trailer := 1 + len(name) + (n - 1)
		if err := c.finalize(len(c.buffer)-trailer, boundary); err != nil {
			return err
		}
	} else {
		c.result.Skipped += len(c.buffer)
	}
	c.buffer = c.buffer[:0]
	c.bufStart = -1
	return c.open(name, boundary)
}

func (c *carver) open(name string, boundary int64) error {
	outPath := filepath.Join(c.config.OutputDir, filepath.FromSlash(path.Clean(name)))
	if c.config.HexOutput {
		outPath += ".hex"
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}
	file, err := os.Create(outPath)
	if err != nil {
		return &IOError{Op: "create", Path: outPath, Err: err}
	}
	slog.Debug("opened carved file", "name", name, "path", outPath, "boundary", boundary)
	c.current = file
	c.info = &CarvedFile{Name: name, Path: outPath, Boundary: boundary}
	return nil
}

// Write the first length bytes of the buffer to the open file and close it.
// end is where the payload would have ended if it was empty.
func (c *carver) finalize(length int, end int64) error {
	if length < 0 {
		slog.Warn("payload shorter than its trailer, writing empty file",
			"name", c.info.Name, "buffered", len(c.buffer))
		length = 0
	}
	length = min(length, len(c.buffer))
	payload := c.buffer[:length]

	var err error
	if c.config.HexOutput {
		err = BinToHex(payload, c.current)
	} else {
		_, err = c.current.Write(payload)
	}
	if err != nil {
		return &IOError{Op: "write", Path: c.info.Path, Err: err}
	}
	file := c.current
	c.current = nil
	if err := file.Close(); err != nil {
		return &IOError{Op: "close", Path: c.info.Path, Err: err}
	}

	c.info.Length = length
	c.info.Start = c.bufStart
	if length == 0 || c.bufStart < 0 {
		c.info.Start = end
	}
	c.info.MD5 = Md5String(payload)
	c.info.Blake3 = Blake3String(payload)
	c.result.Files = append(c.result.Files, c.info)
	slog.Info("carved file", "name", c.info.Name, "path", c.info.Path,
		"start", c.info.Start, "length", length)
	c.info = nil
	return nil
}

func (c *carver) closeCurrent() {
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
}
