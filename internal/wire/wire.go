package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("tillfront: corrupt entry")
	magic4     = [...]byte{'T', 'I', 'L', 'L'}
)

// Entry is the stored form of a cached resource snapshot. Rev is the key's
// revision observed when the snapshot was taken, StoredAt the creation time
// (millisecond precision survives the round trip), and Tag the cache-format
// version the payload was encoded under.
type Entry struct {
	Rev      uint64
	StoredAt time.Time
	Tag      string
	Payload  []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames an entry as:
//
//	magic(4) | ver(1) | kind(1) | rev(u64 be) | storedAt ms (u64 be) |
//	tagLen(u16 be) | tag | vlen(u32 be) | payload
//
// The tag must be non-empty and at most 0xFFFF bytes.
func Encode(e Entry) ([]byte, error) {
	if l := len(e.Tag); l == 0 || l > 0xFFFF {
		return nil, fmt.Errorf("tillfront: invalid format tag length %d", l)
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 8 + 2 + len(e.Tag) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.Rev)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.StoredAt.UnixMilli()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Tag)))
	buf.Write(u2[:])
	buf.WriteString(e.Tag)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// Decode parses a framed entry. Framing is strict: wrong magic, wrong
// version, short buffers, and trailing bytes all return ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6

	rev := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	storedMs := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if tlen == 0 || tlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	tag := string(b[off : off+tlen])
	off += tlen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // strict: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Rev:      rev,
		StoredAt: time.UnixMilli(storedMs),
		Tag:      tag,
		Payload:  b[off : off+vlen],
	}, nil
}
