package codec

import "fmt"

// Limit wraps another codec to enforce a maximum payload size at Decode time,
// and optionally at Encode time so oversized values never reach the backend.
// A limit <= 0 disables that side.
//
// Typical use: protect against oversized inputs coming from a shared Redis.
type Limit[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode is the maximum permitted length (in bytes) of an incoming payload.
	MaxDecode int
	// MaxEncode is the maximum permitted length of an outgoing payload.
	MaxEncode int
}

// Name reports the inner codec's name; the limit does not change the format.
func (c Limit[V]) Name() string { return c.Inner.Name() }

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxEncode)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
