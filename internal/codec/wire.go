package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"dotclock/internal/clock"
)

// fieldFunc consumes the value of one field and returns the number of bytes
// read. Returning 0 marks the field as unknown so it gets skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk iterates over the fields of an encoded message.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("codec: %w", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("codec: field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendInt64Field(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// appendMessageField writes an embedded message. Empty messages are still
// written so presence survives the round trip.
func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return n
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

// consumeMessage reads an embedded message and hands its bytes to decode.
func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, decode(v)
}

// EncodeVector returns the wire form of vv.
func EncodeVector(vv clock.VersionVector) []byte {
	var b []byte
	for _, replicaID := range vv.Replicas() {
		entry := appendStringField(nil, 1, replicaID)
		entry = appendInt64Field(entry, 2, vv.Get(replicaID))
		b = appendMessageField(b, 1, entry)
	}
	return b
}

// DecodeVector parses the wire form of a version vector. Repeated entries for
// the same replica keep the highest counter.
func DecodeVector(b []byte) (clock.VersionVector, error) {
	counters := make(map[string]int64)
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		return consumeMessage(typ, b, func(entry []byte) error {
			d, err := DecodeDot(entry)
			if err != nil {
				return err
			}
			if d.Counter > counters[d.ReplicaID] {
				counters[d.ReplicaID] = d.Counter
			}
			return nil
		})
	})
	if err != nil {
		return clock.VersionVector{}, err
	}
	return clock.FromCounters(counters)
}

// EncodeDot returns the wire form of d. A vector entry and a dot share the
// same layout.
func EncodeDot(d clock.Dot) []byte {
	b := appendStringField(nil, 1, d.ReplicaID)
	return appendInt64Field(b, 2, d.Counter)
}

// DecodeDot parses the wire form of a dot.
func DecodeDot(b []byte) (clock.Dot, error) {
	var d clock.Dot
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &d.ReplicaID), nil
		case 2:
			return consumeInt64(typ, b, &d.Counter), nil
		}
		return 0, nil
	})
	if err != nil {
		return clock.Dot{}, err
	}
	if d.Counter < 0 {
		return clock.Dot{}, fmt.Errorf("%w: %s", clock.ErrNegativeCounter, d)
	}
	return d, nil
}
