package firmware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// A named byte signature to look for. Pattern is hex so it survives toml.
type Signature struct {
	Name     string `toml:"name" json:"name"`
	Pattern  string `toml:"pattern" json:"pattern"`
	Lookback int    `toml:"lookback" json:"lookback"`
	Repeats  int    `toml:"repeats" json:"repeats"`
}

// The signatures the scanner looks for when nothing else is configured
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "5a4f", Pattern: "5a4f0000"},
		{Name: "f706", Pattern: "f7060000"},
		{Name: "0108", Pattern: "010801", Lookback: 20},
		{Name: "padding", Pattern: "00", Lookback: 20, Repeats: 15*16 + 7},
	}
}

// Parse and validate the signature into a fresh matcher
func (s *Signature) Compile() (*Pattern, error) {
	field := fmt.Sprintf("signature %q", s.Name)
	if s.Name == "" {
		return nil, &ConfigError{Field: "signature", Err: errors.New("signature has no name")}
	}
	raw, err := ParseHexBytes(s.Pattern)
	if err != nil {
		return nil, &ConfigError{Field: field, Err: err}
	}
	if err := ValidatePattern(raw); err != nil {
		return nil, &ConfigError{Field: field, Err: err}
	}
	if s.Lookback < 0 || s.Repeats < 0 {
		return nil, &ConfigError{Field: field, Err: fmt.Errorf("negative lookback or repeats")}
	}
	return NewPattern(raw, s.Lookback, s.Repeats), nil
}

// One reported signature match
type ScanHit struct {
	Signature   string `json:"signature"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Length      int    `json:"length"`
	Elapsed     int64  `json:"elapsed"` // Bytes since this signature's previous hit ended
	ElapsedSize string `json:"elapsed_size"`
	State       string `json:"state"`
}

func (h *ScanHit) Line() string {
	return fmt.Sprintf("0x%06x %9s 0x%014x: found %s %s", h.Elapsed, h.ElapsedSize, h.Start, h.Signature, h.State)
}

type scanTrack struct {
	name      string
	pattern   *Pattern
	lastStart int64
	lastEnd   int64
}

// Runs several independent matchers over the same bytes
type Scanner struct {
	tracks []*scanTrack
	offset int64
}

func NewScanner(signatures []Signature) (*Scanner, error) {
	result := Scanner{tracks: make([]*scanTrack, 0, len(signatures))}
	names := make(map[string]bool)
	for i := range signatures {
		pattern, err := signatures[i].Compile()
		if err != nil {
			return nil, err
		}
		if names[signatures[i].Name] {
			return nil, &ConfigError{Field: "signature", Err: fmt.Errorf("duplicate signature name %q", signatures[i].Name)}
		}
		names[signatures[i].Name] = true
		slog.Debug("compiled signature", "name", signatures[i].Name, "pattern", hexString(pattern.Bytes()),
			"lookback", pattern.Lookback(), "repeats", pattern.MinMatch())
		result.tracks = append(result.tracks, &scanTrack{
			name:      signatures[i].Name,
			pattern:   pattern,
			lastStart: -1,
		})
	}
	return &result, nil
}

// How many bytes have been pushed so far
func (s *Scanner) Offset() int64 {
	return s.offset
}

// Feed one byte to every signature, in order. Only the first signal of a
// match is reported; a run growing past its threshold isn't reported again.
func (s *Scanner) Push(b byte) []*ScanHit {
	s.offset++
	var hits []*ScanHit
	for _, t := range s.tracks {
		n, ok := t.pattern.Push(b)
		if !ok {
			continue
		}
		start := s.offset - int64(n)
		if start == t.lastStart {
			continue
		}
		elapsed := s.offset - t.lastEnd
		hits = append(hits, &ScanHit{
			Signature:   t.name,
			Start:       start,
			End:         s.offset,
			Length:      n,
			Elapsed:     elapsed,
			ElapsedSize: FormatSize(elapsed),
			State:       t.pattern.String(),
		})
		t.lastStart = start
		t.lastEnd = s.offset
	}
	return hits
}

// Push all of data, handing every hit to emit. An error from emit stops the
// scan and is returned as is.
func (s *Scanner) Scan(data []byte, emit func(*ScanHit) error) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = &IOError{Op: "read", Path: fmt.Sprintf("image offset %#x", s.offset), Err: fmt.Errorf("%v", r)}
		}
	}()
	for _, b := range data {
		for _, hit := range s.Push(b) {
			if err := emit(hit); err != nil {
				return err
			}
		}
	}
	return nil
}
