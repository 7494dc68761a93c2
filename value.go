package poolcache

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/poolcache/codec"
	"github.com/unkn0wn-root/poolcache/internal/wire"
)

// Kind tags what a Value holds.
type Kind uint8

const (
	// KindAbsent is the zero Value: nothing found, nothing set.
	KindAbsent Kind = iota
	KindString
	KindBytes
	// KindEncoded holds bytes produced by a codec.Codec.
	KindEncoded
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindEncoded:
		return "encoded"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a cache value. The zero Value is the absent sentinel: it is returned for
// misses and can never be stored.
type Value struct {
	kind  Kind
	codec string // KindEncoded only
	data  []byte
}

func StringValue(s string) Value { return Value{kind: KindString, data: []byte(s)} }

// BytesValue copies b.
func BytesValue(b []byte) Value {
	return Value{kind: KindBytes, data: append([]byte{}, b...)}
}

// Marshal encodes v with c into a KindEncoded value tagged with c.Name().
func Marshal[T any](c codec.Codec[T], v T) (Value, error) {
	b, err := c.Encode(v)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s encode: %v", ErrInvalidValue, c.Name(), err)
	}
	return Value{kind: KindEncoded, codec: c.Name(), data: b}, nil
}

// Unmarshal decodes v with c. Encoded values must have been written by a codec of
// the same name. String and bytes values are handed to c as-is, which lets callers
// decode foreign payloads (e.g. JSON written by another service).
func Unmarshal[T any](c codec.Codec[T], v Value) (T, error) {
	var zero T
	switch v.kind {
	case KindAbsent:
		return zero, fmt.Errorf("%w: absent", ErrInvalidValue)
	case KindEncoded:
		if v.codec != c.Name() {
			return zero, fmt.Errorf("%w: value encoded with %q, decoding with %q", ErrCodecMismatch, v.codec, c.Name())
		}
	}
	return c.Decode(v.data)
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Codec names the codec that produced a KindEncoded value.
func (v Value) Codec() string { return v.codec }

// Bytes returns the raw payload. Callers must not modify it.
func (v Value) Bytes() []byte { return v.data }

// String returns the payload as text; empty for the absent value.
func (v Value) String() string { return string(v.data) }

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.codec == o.codec && bytes.Equal(v.data, o.data)
}

func (v Value) clone() Value {
	v.data = append([]byte(nil), v.data...)
	return v
}

// encodeValue produces the storage representation of v.
// Encoded payloads carry their codec name: nameLen(1) | name | data.
func encodeValue(v Value) ([]byte, error) {
	switch v.kind {
	case KindString:
		return wire.Encode(wire.KindString, v.data)
	case KindBytes:
		return wire.Encode(wire.KindBytes, v.data)
	case KindEncoded:
		if v.codec == "" || len(v.codec) > 0xFF {
			return nil, fmt.Errorf("%w: bad codec name %q", ErrInvalidValue, v.codec)
		}
		p := make([]byte, 0, 1+len(v.codec)+len(v.data))
		p = append(p, byte(len(v.codec)))
		p = append(p, v.codec...)
		p = append(p, v.data...)
		return wire.Encode(wire.KindEncoded, p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, v.kind)
	}
}

var errEncodedHeader = errors.New("poolcache: bad encoded header")

// decodeStored reverses encodeValue. An empty payload is absent. A non-empty
// payload without valid framing (a foreign or legacy write) is returned as a
// literal string with fallback=true.
func decodeStored(raw []byte) (v Value, fallback bool) {
	if len(raw) == 0 {
		return Value{}, false
	}
	kind, payload, err := wire.Decode(raw)
	if err != nil {
		return StringValue(string(raw)), true
	}
	switch kind {
	case wire.KindString:
		return Value{kind: KindString, data: append([]byte{}, payload...)}, false
	case wire.KindBytes:
		return Value{kind: KindBytes, data: append([]byte{}, payload...)}, false
	default:
		name, data, err := splitEncoded(payload)
		if err != nil {
			return StringValue(string(raw)), true
		}
		return Value{kind: KindEncoded, codec: name, data: append([]byte{}, data...)}, false
	}
}

func splitEncoded(p []byte) (string, []byte, error) {
	if len(p) < 1 {
		return "", nil, errEncodedHeader
	}
	n := int(p[0])
	if n == 0 || 1+n > len(p) {
		return "", nil, errEncodedHeader
	}
	return string(p[1 : 1+n]), p[1+n:], nil
}
