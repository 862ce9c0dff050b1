package firmware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MpfsSignature      = "MPFS"
	MpfsHeaderSize     = 8
	MpfsFileHeaderSize = 22
	MpfsHashEntrySize  = 2 // Each index entry has a 16 bit hash ahead of the file headers
	MpfsNameLength     = 4
)

// Layout on disk, all big endian
type rawMpfsHeader struct {
	Signature [4]byte
	Major     uint8
	Minor     uint8
	Entries   uint16
}

type rawMpfsFileHeader struct {
	Name      [MpfsNameLength]byte // Stored back to front
	Start     uint32
	Size      uint32
	Timestamp uint32
	Ticks     uint32
	Flags     uint16
}

type MpfsHeader struct {
	Signature string `json:"signature"`
	Major     uint8  `json:"major"`
	Minor     uint8  `json:"minor"`
	Entries   uint16 `json:"entries"`
	Offset    int64  `json:"offset"` // Where the header was read from, -1 if unknown
}

func (h *MpfsHeader) Version() string {
	return fmt.Sprintf("%d.%d", h.Major, h.Minor)
}

// Whether the signature is the expected "MPFS". Decoding doesn't require it.
func (h *MpfsHeader) HasSignature() bool {
	return h.Signature == MpfsSignature
}

func (h *MpfsHeader) String() string {
	return fmt.Sprintf("MPFS Header\n version: %s\n entries: %d\n", h.Version(), h.Entries)
}

type MpfsFileHeader struct {
	Name      string `json:"name"`
	Start     uint32 `json:"start"`
	Size      uint32 `json:"size"`
	Timestamp uint32 `json:"timestamp"`
	Ticks     uint32 `json:"ticks"` // Microseconds past Timestamp
	Flags     uint16 `json:"flags"`
	Offset    int64  `json:"offset"`
}

func (h *MpfsFileHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), int64(h.Ticks)*1000).UTC()
}

func (h *MpfsFileHeader) FlagString() string {
	return fmt.Sprintf("%b", h.Flags)
}

func (h *MpfsFileHeader) String() string {
	var sb strings.Builder
	sb.WriteString("MPFS File Header\n")
	fmt.Fprintf(&sb, " filename: %s\n", h.Name)
	fmt.Fprintf(&sb, " start: %#02x\tsize: %d\n", h.Start, h.Size)
	fmt.Fprintf(&sb, " time: %s\n", h.Time().Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, " flags: %s\n", h.FlagString())
	return sb.String()
}

// A container header plus every file header it lists
type MpfsIndex struct {
	Header *MpfsHeader       `json:"header"`
	Files  []*MpfsFileHeader `json:"files"`
}

// Best effort position of the reader, for error reporting
func readerOffset(r io.Reader) int64 {
	if s, ok := r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			return pos
		}
	}
	return -1
}

func ParseMpfsHeader(r io.Reader) (*MpfsHeader, error) {
	offset := readerOffset(r)
	var raw rawMpfsHeader
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return nil, &MalformedHeaderError{Field: "mpfs header", Offset: offset, Err: truncated(err)}
	}
	return &MpfsHeader{
		Signature: string(raw.Signature[:]),
		Major:     raw.Major,
		Minor:     raw.Minor,
		Entries:   raw.Entries,
		Offset:    offset,
	}, nil
}

func ParseMpfsFileHeader(r io.Reader) (*MpfsFileHeader, error) {
	offset := readerOffset(r)
	var raw rawMpfsFileHeader
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return nil, &MalformedHeaderError{Field: "mpfs file header", Offset: offset, Err: truncated(err)}
	}
	name := make([]byte, MpfsNameLength)
	for i := range raw.Name {
		name[MpfsNameLength-1-i] = raw.Name[i]
	}
	if !utf8.Valid(name) {
		return nil, &MalformedHeaderError{Field: "mpfs filename", Offset: offset,
			Err: fmt.Errorf("name %x is not valid UTF-8", name)}
	}
	return &MpfsFileHeader{
		Name:      string(name),
		Start:     raw.Start,
		Size:      raw.Size,
		Timestamp: raw.Timestamp,
		Ticks:     raw.Ticks,
		Flags:     raw.Flags,
		Offset:    offset,
	}, nil
}

// Read a container header at the reader's position and then all the file
// headers it lists. With a negative fileOffset the hash table (2 bytes per
// entry) is skipped to reach the file headers; otherwise they start
// fileOffset bytes past the end of the container header.
func ReadMpfsIndex(r io.ReadSeeker, fileOffset int64) (*MpfsIndex, error) {
	header, err := ParseMpfsHeader(r)
	if err != nil {
		return nil, err
	}
	skip := int64(header.Entries) * MpfsHashEntrySize
	if fileOffset >= 0 {
		skip = fileOffset
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return nil, &MalformedHeaderError{Field: "mpfs hash table", Offset: readerOffset(r), Err: err}
	}
	result := MpfsIndex{
		Header: header,
		Files:  make([]*MpfsFileHeader, 0, min(int(header.Entries), 1024)),
	}
	for i := 0; i < int(header.Entries); i++ {
		file, err := ParseMpfsFileHeader(r)
		if err != nil {
			return nil, fmt.Errorf("file header %d of %d: %w", i, header.Entries, err)
		}
		result.Files = append(result.Files, file)
	}
	return &result, nil
}

// Running out of data in the middle of a header is always unexpected
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
