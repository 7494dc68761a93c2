package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

// Value kinds as stored on the backend.
const (
	KindString  byte = 1
	KindBytes   byte = 2
	KindEncoded byte = 3
)

var (
	ErrCorrupt = errors.New("poolcache: corrupt entry")
	ErrKind    = errors.New("poolcache: unknown value kind")
	magic4     = [...]byte{'P', 'L', 'C', 'V'}
)

const hdr = 4 + 1 + 1 + 4

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func validKind(k byte) bool {
	return k == KindString || k == KindBytes || k == KindEncoded
}

// Encode frames a payload:
//
//	magic(4) | ver(1) | kind(1) | vlen(u32 be) | payload(vlen)
func Encode(kind byte, payload []byte) ([]byte, error) {
	if !validKind(kind) {
		return nil, ErrKind
	}
	if uint64(len(payload)) > 0xFFFFFFFF {
		return nil, errors.New("poolcache: payload too large for wire frame")
	}
	var buf bytes.Buffer
	buf.Grow(hdr + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a frame written by Encode. Trailing bytes are rejected.
// The returned payload aliases b.
func Decode(b []byte) (kind byte, payload []byte, err error) {
	if len(b) < hdr || !hasMagic(b) || b[4] != version || !validKind(b[5]) {
		return 0, nil, ErrCorrupt
	}
	kind = b[5]
	off := 6

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no short frames, no trailing junk
		return 0, nil, ErrCorrupt
	}
	return kind, b[off : off+vlen], nil
}
