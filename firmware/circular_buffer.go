package firmware

import (
	"fmt"
	"strings"
)

// A fixed-capacity ring holding the last N bytes appended to it. Every slot is
// stored twice (at idx and idx+N), so any window of the ring can be handed out
// as one contiguous slice no matter where the write cursor sits. There is
// intentionally no way to write a single index: both halves must always change
// together, and Append is the only thing that does that.
type ContextBuffer struct {
	buffer []byte
	p      int // next write position, always in [0, capacity)
}

// Allocate a context buffer. A capacity of 0 gives a disabled buffer which
// ignores everything appended to it.
func NewContextBuffer(capacity int) *ContextBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &ContextBuffer{
		buffer: make([]byte, capacity*2),
	}
}

// Append a byte, evicting the oldest one
func (b *ContextBuffer) Append(c byte) {
	l := b.Len()
	if l == 0 {
		return
	}
	b.buffer[b.p] = c
	b.buffer[b.p+l] = c
	b.p = (b.p + 1) % l
}

// The configured capacity. This is NOT the amount of bytes written so far;
// slots that were never written read as zero.
func (b *ContextBuffer) Len() int {
	return len(b.buffer) / 2
}

func (b *ContextBuffer) IsEmpty() bool {
	return len(b.buffer) == 0
}

// Return the logical range [start, end) of the ring, where 0 is the oldest
// byte retained. The slice aliases the ring and must not be modified; it is
// only valid until the next Append.
func (b *ContextBuffer) View(start int, end int) []byte {
	l := b.Len()
	if start < 0 || end > l || start > end {
		panic(fmt.Sprintf("context buffer view [%d:%d] out of range for capacity %d", start, end, l))
	}
	return b.buffer[b.p+start : b.p+end : b.p+end]
}

// The whole window, oldest byte first
func (b *ContextBuffer) Window() []byte {
	return b.View(0, b.Len())
}

// Read the logical index i (0 is oldest)
func (b *ContextBuffer) At(i int) byte {
	l := b.Len()
	if i < 0 || i >= l {
		panic(fmt.Sprintf("context buffer index %d out of range for capacity %d", i, l))
	}
	return b.buffer[b.p+i]
}

func (b *ContextBuffer) String() string {
	if b.IsEmpty() {
		return "[]"
	}
	var sb strings.Builder
	for _, c := range b.Window() {
		fmt.Fprintf(&sb, "%02x(%s) ", c, printableByte(c))
	}
	return sb.String()
}

func printableByte(c byte) string {
	if c >= 0x20 && c < 0x7f {
		return string(rune(c))
	}
	return "."
}
