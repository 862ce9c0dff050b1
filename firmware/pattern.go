package firmware

import (
	"fmt"
	"strings"
)

// An online matcher for a fixed byte sequence, fed one byte at a time.
//
// With repeats set to 0 it signals on every match. With repeats set to K it
// only signals once the pattern has been seen K times back to back, and then
// again on every further immediate repeat with a growing total length.
//
// When a lookback is configured, the matcher keeps the last N bytes that were
// NOT part of a confirmed match in a ContextBuffer. That is what lets the
// carver read the filename sitting right before a marker run.
//
// On mismatch the matcher simply restarts (at 0, or at 1 if the byte is the
// first pattern byte). This is only correct for patterns where that restart
// agrees with a real KMP automaton; see IsOverlapFree. NewPattern does not
// check this, config loading does.
type Pattern struct {
	pattern    []byte
	lookback   *ContextBuffer
	i          int // How much of the pattern is currently matched
	matchCount int // Back to back full matches since the last interruption
	minMatch   int
}

// Create a matcher. lookback is the context buffer size (0 disables it),
// repeats the minimum run length before signalling (0 signals every match).
func NewPattern(pattern []byte, lookback int, repeats int) *Pattern {
	if repeats < 0 {
		repeats = 0
	}
	return &Pattern{
		pattern:  append([]byte(nil), pattern...),
		lookback: NewContextBuffer(lookback),
		minMatch: repeats,
	}
}

// Feed one byte. Returns the total matched length and true when the matcher
// signals.
func (p *Pattern) Push(c byte) (int, bool) {
	l := len(p.pattern)
	if l == 0 {
		return 0, false
	}

	if c != p.pattern[p.i] {
		if !p.lookback.IsEmpty() {
			// Confirmed repeats and the failed partial attempt were held back
			// on the assumption they were part of a match. They weren't.
			for r := 0; r < p.matchCount; r++ {
				for _, pc := range p.pattern {
					p.lookback.Append(pc)
				}
			}
			for j := 0; j < p.i; j++ {
				p.lookback.Append(p.pattern[j])
			}
		}
		p.matchCount = 0
		p.i = 0
		if c != p.pattern[0] {
			p.lookback.Append(c)
			return 0, false
		}
		// c starts a fresh attempt, fall through
	}

	if p.i+1 < l {
		p.i++
		return 0, false
	}

	p.i = 0
	if p.minMatch == 0 {
		return l, true
	}

	p.matchCount++
	if p.matchCount < p.minMatch {
		return 0, false
	}
	return l * p.matchCount, true
}

// The context window as it stands. Only complete when no partial match is
// pending, otherwise ErrPendingMatch is returned alongside the (incomplete)
// window. That holds even without a lookback, where the window is empty.
func (p *Pattern) Peek() ([]byte, error) {
	window := []byte{}
	if !p.lookback.IsEmpty() {
		window = p.lookback.Window()
	}
	if p.i != 0 {
		return window, ErrPendingMatch
	}
	return window, nil
}

// The context window including the bytes of any pending partial match, as if
// they had been flushed into it. The ring itself is left alone so a later
// mismatch doesn't flush those bytes a second time.
func (p *Pattern) Materialize() []byte {
	if p.lookback.IsEmpty() {
		return []byte{}
	}
	window := p.lookback.Window()
	if p.i == 0 {
		return window
	}
	l := len(window)
	result := make([]byte, 0, l)
	partial := p.pattern[:p.i]
	if len(partial) < l {
		result = append(result, window[len(partial):]...)
		result = append(result, partial...)
	} else {
		result = append(result, partial[len(partial)-l:]...)
	}
	return result
}

func (p *Pattern) Bytes() []byte {
	return p.pattern
}

func (p *Pattern) Cursor() int {
	return p.i
}

func (p *Pattern) MatchCount() int {
	return p.matchCount
}

func (p *Pattern) MinMatch() int {
	return p.minMatch
}

func (p *Pattern) Lookback() int {
	return p.lookback.Len()
}

func hexString(a []byte) string {
	var sb strings.Builder
	for _, c := range a {
		fmt.Fprintf(&sb, "%02x ", c)
	}
	return sb.String()
}

// Render like "[ ctx ] ( pattern ) * count"
func (p *Pattern) String() string {
	var sb strings.Builder
	buffer := p.Materialize()
	if len(buffer) > 0 {
		sb.WriteString("[ ")
		sb.WriteString(hexString(buffer))
		sb.WriteString("] ")
	}
	if p.minMatch > 0 {
		sb.WriteString("( ")
	}
	sb.WriteString(hexString(p.pattern))
	if p.minMatch > 0 {
		fmt.Fprintf(&sb, ") * %d ", p.matchCount)
	}
	return sb.String()
}

// Report whether the restart-on-mismatch policy of Pattern finds exactly the
// same non-overlapping occurrences as a KMP automaton would. Each mismatch
// transition is compared against the failure function transition.
func IsOverlapFree(pattern []byte) bool {
	l := len(pattern)
	if l < 2 {
		return true
	}
	fail := make([]int, l)
	for i, k := 1, 0; i < l; i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = fail[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		fail[i] = k
	}
	for i := 1; i < l; i++ {
		for c := 0; c < 256; c++ {
			b := byte(c)
			if b == pattern[i] {
				continue
			}
			k := i
			for k > 0 && b != pattern[k] {
				k = fail[k-1]
			}
			if b == pattern[k] {
				k++
			}
			naive := 0
			if b == pattern[0] {
				naive = 1
			}
			if k != naive {
				return false
			}
		}
	}
	return true
}

// Check a pattern is usable for configured matching
func ValidatePattern(pattern []byte) error {
	if len(pattern) == 0 {
		return fmt.Errorf("pattern is empty")
	}
	if !IsOverlapFree(pattern) {
		return fmt.Errorf("pattern %sis self-overlapping and can't be matched reliably", hexString(pattern))
	}
	return nil
}
