package firmware

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/zeebo/blake3"
)

const (
	HexLineLength = 16 // Data bytes per Intel HEX record
)

var sizeUnits = []string{"B", "K", "M", "G", "T"}

// Scale a byte count down by 1024 until it fits its unit, two decimals.
// Decimals are truncated, so a value never shows as 1024 of its unit.
// Anything past terabytes just stays in T.
func FormatSize(size int64) string {
	v := float64(size)
	for i, u := range sizeUnits {
		if math.Abs(v) < 1024 || i == len(sizeUnits)-1 {
			return fmt.Sprintf("%.2f%s", math.Trunc(v*100)/100, u)
		}
		v /= 1024
	}
	return "" // unreachable
}

// Produce an md5 string from given data (a simple shortcut)
func Md5String(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

func Blake3String(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Write the given binary as Intel HEX, starting at address 0
func BinToHex(data []byte, writer io.Writer) error {
	mem := gohex.NewMemory()
	if len(data) > 0 {
		if err := mem.AddBinary(0, data); err != nil {
			return err
		}
	}
	return mem.DumpIntelHex(writer, HexLineLength)
}

// Read Intel HEX back into a flat binary of the given size (gaps are 0xFF)
func HexToBin(reader io.Reader, size int) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(reader); err != nil {
		return nil, err
	}
	return mem.ToBinary(0, uint32(size), 0xFF), nil
}

// Parse a hex string like "5a4f0000", "5a 4f 00 00" or "0x5a4f" into bytes
func ParseHexBytes(s string) ([]byte, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	clean = strings.TrimPrefix(clean, "0x")
	clean = strings.NewReplacer(" ", "", ":", "", "_", "").Replace(clean)
	return hex.DecodeString(clean)
}
