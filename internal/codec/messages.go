package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"dotclock/internal/clock"
)

// ErrUnknownMessage is returned when a value that is not a Message is passed
// to Marshal or Unmarshal.
var ErrUnknownMessage = errors.New("codec: unknown message type")

// Message is implemented by every type this package can put on the wire.
type Message interface {
	appendWire(b []byte) []byte
	consumeWire(b []byte) error
}

// Marshal encodes m.
func Marshal(m Message) []byte {
	return m.appendWire(nil)
}

// Unmarshal decodes b into m, replacing its contents.
func Unmarshal(b []byte, m Message) error {
	return m.consumeWire(b)
}

func appendVectorField(b []byte, num protowire.Number, vv clock.VersionVector) []byte {
	return appendMessageField(b, num, EncodeVector(vv))
}

func consumeVector(typ protowire.Type, b []byte, dst *clock.VersionVector) (int, error) {
	return consumeMessage(typ, b, func(v []byte) error {
		vv, err := DecodeVector(v)
		if err != nil {
			return fmt.Errorf("decode vector: %w", err)
		}
		*dst = vv
		return nil
	})
}

func consumeDot(typ protowire.Type, b []byte, dst *clock.Dot) (int, error) {
	return consumeMessage(typ, b, func(v []byte) error {
		d, err := DecodeDot(v)
		if err != nil {
			return fmt.Errorf("decode dot: %w", err)
		}
		*dst = d
		return nil
	})
}

// SyncRequest carries the sender's clock. It is the payload of both the Sync
// RPC and gossip state exchange.
type SyncRequest struct {
	From  string
	Clock clock.VersionVector
}

func (m *SyncRequest) appendWire(b []byte) []byte {
	b = appendStringField(b, 1, m.From)
	return appendVectorField(b, 2, m.Clock)
}

func (m *SyncRequest) consumeWire(b []byte) error {
	*m = SyncRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.From), nil
		case 2:
			return consumeVector(typ, b, &m.Clock)
		}
		return 0, nil
	})
}

// SyncReply carries the responder's clock after merging the request and the
// keys it stores, so the caller can pull their state.
type SyncReply struct {
	From  string
	Clock clock.VersionVector
	Keys  []string
}

func (m *SyncReply) appendWire(b []byte) []byte {
	b = appendStringField(b, 1, m.From)
	b = appendVectorField(b, 2, m.Clock)
	for _, k := range m.Keys {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	return b
}

func (m *SyncReply) consumeWire(b []byte) error {
	*m = SyncReply{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.From), nil
		case 2:
			return consumeVector(typ, b, &m.Clock)
		case 3:
			var k string
			n := consumeString(typ, b, &k)
			if n > 0 {
				m.Keys = append(m.Keys, k)
			}
			return n, nil
		}
		return 0, nil
	})
}

// SeenRequest asks whether a replica has observed a dot.
type SeenRequest struct {
	Dot clock.Dot
}

func (m *SeenRequest) appendWire(b []byte) []byte {
	return appendMessageField(b, 1, EncodeDot(m.Dot))
}

func (m *SeenRequest) consumeWire(b []byte) error {
	*m = SeenRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeDot(typ, b, &m.Dot)
		}
		return 0, nil
	})
}

// SeenReply answers a SeenRequest together with the clock it was checked against.
type SeenReply struct {
	Seen  bool
	Clock clock.VersionVector
}

func (m *SeenReply) appendWire(b []byte) []byte {
	b = appendBoolField(b, 1, m.Seen)
	return appendVectorField(b, 2, m.Clock)
}

func (m *SeenReply) consumeWire(b []byte) error {
	*m = SeenReply{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(typ, b, &m.Seen), nil
		case 2:
			return consumeVector(typ, b, &m.Clock)
		}
		return 0, nil
	})
}

// PutRequest writes a value (or tombstone) under the causal context the
// client last read.
type PutRequest struct {
	Key     string
	Value   []byte
	Context clock.VersionVector
	Deleted bool
}

func (m *PutRequest) appendWire(b []byte) []byte {
	b = appendStringField(b, 1, m.Key)
	b = appendBytesField(b, 2, m.Value)
	b = appendVectorField(b, 3, m.Context)
	return appendBoolField(b, 4, m.Deleted)
}

func (m *PutRequest) consumeWire(b []byte) error {
	*m = PutRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Key), nil
		case 2:
			return consumeBytes(typ, b, &m.Value), nil
		case 3:
			return consumeVector(typ, b, &m.Context)
		case 4:
			return consumeBool(typ, b, &m.Deleted), nil
		}
		return 0, nil
	})
}

// PutReply returns the dot stamped on the write and the key's new context.
type PutReply struct {
	Dot     clock.Dot
	Context clock.VersionVector
}

func (m *PutReply) appendWire(b []byte) []byte {
	b = appendMessageField(b, 1, EncodeDot(m.Dot))
	return appendVectorField(b, 2, m.Context)
}

func (m *PutReply) consumeWire(b []byte) error {
	*m = PutReply{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDot(typ, b, &m.Dot)
		case 2:
			return consumeVector(typ, b, &m.Context)
		}
		return 0, nil
	})
}

// GetRequest reads a key.
type GetRequest struct {
	Key string
}

func (m *GetRequest) appendWire(b []byte) []byte {
	return appendStringField(b, 1, m.Key)
}

func (m *GetRequest) consumeWire(b []byte) error {
	*m = GetRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Key), nil
		}
		return 0, nil
	})
}

// Sibling is one of possibly several concurrent values stored under a key.
type Sibling struct {
	Dot     clock.Dot
	Value   []byte
	Deleted bool
}

func (m *Sibling) appendWire(b []byte) []byte {
	b = appendMessageField(b, 1, EncodeDot(m.Dot))
	b = appendBytesField(b, 2, m.Value)
	return appendBoolField(b, 3, m.Deleted)
}

func (m *Sibling) consumeWire(b []byte) error {
	*m = Sibling{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDot(typ, b, &m.Dot)
		case 2:
			return consumeBytes(typ, b, &m.Value), nil
		case 3:
			return consumeBool(typ, b, &m.Deleted), nil
		}
		return 0, nil
	})
}

// GetReply returns every sibling stored under a key and the key's context.
type GetReply struct {
	Found    bool
	Context  clock.VersionVector
	Siblings []Sibling
}

func (m *GetReply) appendWire(b []byte) []byte {
	b = appendBoolField(b, 1, m.Found)
	b = appendVectorField(b, 2, m.Context)
	for i := range m.Siblings {
		b = appendMessageField(b, 3, m.Siblings[i].appendWire(nil))
	}
	return b
}

func (m *GetReply) consumeWire(b []byte) error {
	*m = GetReply{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(typ, b, &m.Found), nil
		case 2:
			return consumeVector(typ, b, &m.Context)
		case 3:
			return consumeMessage(typ, b, func(v []byte) error {
				var s Sibling
				if err := s.consumeWire(v); err != nil {
					return fmt.Errorf("decode sibling: %w", err)
				}
				m.Siblings = append(m.Siblings, s)
				return nil
			})
		}
		return 0, nil
	})
}
