package firmware

import (
	"bytes"
	"fmt"
	"io"
)

// One file to embed into a built image
type ImageEntry struct {
	Name string
	Data []byte
}

// Write an image the carver can cut back apart. Layout is the preamble, then
// for every entry: a zero separator, the name, runLength markers, the data.
// A runLength of 0 uses config.MinRun. Entries that would confuse the carver
// (names that don't fit the lookback, data that looks like a marker run) are
// rejected rather than silently producing an image that carves differently.
func BuildImage(w io.Writer, preamble []byte, entries []ImageEntry, config *CarveConfig, runLength int) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if runLength == 0 {
		runLength = config.MinRun
	}
	if runLength < config.MinRun {
		return fmt.Errorf("run length %d is shorter than the minimum run %d", runLength, config.MinRun)
	}
	run := bytes.Repeat(config.Marker, runLength)
	before := preamble
	for i, e := range entries {
		if err := ValidateRecoveredName(e.Name); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if bytes.ContainsAny([]byte(e.Name), "\x00\\") {
			return fmt.Errorf("entry %d: name %q has bytes that don't survive recovery", i, e.Name)
		}
		if len(e.Name)+1 > config.Lookback {
			return fmt.Errorf("entry %d: name %q doesn't fit a lookback of %d", i, e.Name, config.Lookback)
		}
		if len(e.Data) > 0 && e.Data[0] == config.Marker[0] {
			return fmt.Errorf("entry %d: data starts with a marker byte and would merge into the run", i)
		}
		trailer := append(append(append([]byte{}, before...), 0), e.Name...)
		if containsRun(trailer, config) {
			return fmt.Errorf("entry %d: data before the name contains a marker run", i)
		}
		before = e.Data
	}
	if containsRun(before, config) {
		return fmt.Errorf("final entry contains a marker run")
	}

	wep := NewWriteErrorPass(w)
	wep.WritePass(preamble)
	for _, e := range entries {
		wep.WritePass([]byte{0})
		wep.WritePass([]byte(e.Name))
		wep.WritePass(run)
		wep.WritePass(e.Data)
	}
	return wep.IsPass()
}

func containsRun(data []byte, config *CarveConfig) bool {
	p := NewPattern(config.Marker, 0, config.MinRun)
	for _, b := range data {
		if _, ok := p.Push(b); ok {
			return true
		}
	}
	return false
}
