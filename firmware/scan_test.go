package firmware

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testScanSignatures() []Signature {
	return []Signature{
		{Name: "ab", Pattern: "6162"},
		{Name: "zero", Pattern: "00", Repeats: 3},
	}
}

func TestScanner_Hits(t *testing.T) {
	scanner, err := NewScanner(testScanSignatures())
	if err != nil {
		t.Fatalf("Error creating scanner: %s", err)
	}
	hits := make([]*ScanHit, 0)
	err = scanner.Scan([]byte("xxabyy\x00\x00\x00\x00\x00ab\x00\x00\x00"), func(h *ScanHit) error {
		hits = append(hits, h)
		return nil
	})
	if err != nil {
		t.Fatalf("Error scanning: %s", err)
	}
	expected := []ScanHit{
		{Signature: "ab", Start: 2, End: 4, Length: 2, Elapsed: 4},
		{Signature: "zero", Start: 6, End: 9, Length: 3, Elapsed: 9},
		{Signature: "ab", Start: 11, End: 13, Length: 2, Elapsed: 9},
		{Signature: "zero", Start: 13, End: 16, Length: 3, Elapsed: 7},
	}
	if len(hits) != len(expected) {
		t.Fatalf("Expected %d hits, got %d", len(expected), len(hits))
	}
	for i, e := range expected {
		h := hits[i]
		if h.Signature != e.Signature || h.Start != e.Start || h.End != e.End ||
			h.Length != e.Length || h.Elapsed != e.Elapsed {
			t.Fatalf("Hit %d: expected %+v, got %+v", i, e, *h)
		}
		if h.ElapsedSize != FormatSize(e.Elapsed) {
			t.Fatalf("Hit %d: expected elapsed size %s, got %s", i, FormatSize(e.Elapsed), h.ElapsedSize)
		}
	}
	if scanner.Offset() != 16 {
		t.Fatalf("Expected offset 16, got %d", scanner.Offset())
	}
	if hits[1].State != "( 00 ) * 3 " {
		t.Fatalf("Unexpected run state %q", hits[1].State)
	}
	line := hits[0].Line()
	if line != "0x000004     4.00B 0x00000000000002: found ab 61 62 " {
		t.Fatalf("Unexpected line %q", line)
	}
}

func TestScanHit_Line(t *testing.T) {
	hit := ScanHit{Signature: "pad", Start: 0x12345678, Elapsed: 0xabcdef, ElapsedSize: "10.73M", State: "00 "}
	line := hit.Line()
	if line != "0xabcdef    10.73M 0x00000012345678: found pad 00 " {
		t.Fatalf("Unexpected line %q", line)
	}
	// Wider values grow the field rather than being cut
	hit.Elapsed = 0x123456789
	if line = hit.Line(); !strings.HasPrefix(line, "0x123456789 ") {
		t.Fatalf("Unexpected line %q", line)
	}
}

func TestSignature_Compile(t *testing.T) {
	sig := Signature{Name: "padding", Pattern: "00", Lookback: 20, Repeats: 247}
	p, err := sig.Compile()
	if err != nil {
		t.Fatalf("Error compiling signature: %s", err)
	}
	if !bytes.Equal(p.Bytes(), []byte{0}) {
		t.Fatalf("Expected pattern 00, got %x", p.Bytes())
	}
	if p.Lookback() != 20 {
		t.Fatalf("Expected lookback 20, got %d", p.Lookback())
	}
	if p.MinMatch() != 247 {
		t.Fatalf("Expected 247 repeats, got %d", p.MinMatch())
	}
}

func TestScanner_PushStreaming(t *testing.T) {
	scanner, err := NewScanner([]Signature{{Name: "cd", Pattern: "6364", Lookback: 2, Repeats: 2}})
	if err != nil {
		t.Fatalf("Error creating scanner: %s", err)
	}
	count := 0
	for _, b := range []byte("abccdcdcdcdefcdcd") {
		count += len(scanner.Push(b))
	}
	// Two runs, each reported once however long it grows
	if count != 2 {
		t.Fatalf("Expected 2 hits, got %d", count)
	}
}

func TestScanner_EmitError(t *testing.T) {
	scanner, err := NewScanner(testScanSignatures())
	if err != nil {
		t.Fatalf("Error creating scanner: %s", err)
	}
	stop := errors.New("stop")
	calls := 0
	err = scanner.Scan([]byte("ababab"), func(h *ScanHit) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Expected emit error back, got %v", err)
	}
	if calls != 1 || scanner.Offset() != 2 {
		t.Fatalf("Expected scan to stop at the first hit, got %d calls at %d", calls, scanner.Offset())
	}
}

func TestScanner_BadSignatures(t *testing.T) {
	cases := [][]Signature{
		{{Name: "bad", Pattern: "zz"}},
		{{Name: "overlap", Pattern: "616162"}},
		{{Name: "empty", Pattern: ""}},
		{{Name: "", Pattern: "00"}},
		{{Name: "neg", Pattern: "00", Lookback: -1}},
		{{Name: "dup", Pattern: "00"}, {Name: "dup", Pattern: "01"}},
	}
	for i, c := range cases {
		_, err := NewScanner(c)
		var configErr *ConfigError
		if !errors.As(err, &configErr) {
			t.Fatalf("Case %d: expected config error, got %v", i, err)
		}
	}
}

func TestDefaultSignatures(t *testing.T) {
	sigs := DefaultSignatures()
	if len(sigs) != 4 {
		t.Fatalf("Expected 4 default signatures, got %d", len(sigs))
	}
	if _, err := NewScanner(sigs); err != nil {
		t.Fatalf("Default signatures don't compile: %s", err)
	}
	if sigs[3].Repeats != 247 {
		t.Fatalf("Expected padding to need 247 repeats, got %d", sigs[3].Repeats)
	}
}
