package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"

	"dotclock/internal/clock"
)

func TestVector_RoundTrip(t *testing.T) {
	vv := clock.New().Increment("A").Increment("A").Increment("B").Increment("")

	decoded, err := DecodeVector(EncodeVector(vv))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(vv), "expected %s, got %s", vv, decoded)
	assert.Equal(t, vv.String(), decoded.String())
}

func TestVector_EmptyEncodesToNothing(t *testing.T) {
	assert.Empty(t, EncodeVector(clock.New()))

	decoded, err := DecodeVector(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())
}

func TestVector_DeterministicBytes(t *testing.T) {
	v1 := clock.New().Increment("z").Increment("a").Increment("m")
	v2 := clock.New().Increment("m").Increment("z").Increment("a")

	assert.Equal(t, EncodeVector(v1), EncodeVector(v2))
}

func TestDecodeVector_RejectsNegativeCounter(t *testing.T) {
	entry := protowire.AppendTag(nil, 1, protowire.BytesType)
	entry = protowire.AppendString(entry, "A")
	entry = protowire.AppendTag(entry, 2, protowire.VarintType)
	negative := int64(-3)
	entry = protowire.AppendVarint(entry, uint64(negative))

	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, entry)

	_, err := DecodeVector(b)
	assert.ErrorIs(t, err, clock.ErrNegativeCounter)
}

func TestDecodeVector_DuplicateEntriesKeepMax(t *testing.T) {
	b := appendMessageField(nil, 1, EncodeDot(clock.NewDot("A", 2)))
	b = appendMessageField(b, 1, EncodeDot(clock.NewDot("A", 5)))
	b = appendMessageField(b, 1, EncodeDot(clock.NewDot("A", 1)))

	vv, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, int64(5), vv.Get("A"))
}

func TestDecodeVector_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 77)
	b = append(b, EncodeVector(clock.New().Increment("A"))...)
	b = protowire.AppendTag(b, 10, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")

	vv, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), vv.Get("A"))
	assert.Equal(t, 1, vv.Len())
}

func TestDecodeVector_Truncated(t *testing.T) {
	b := EncodeVector(clock.New().Increment("replica-with-a-long-name"))

	_, err := DecodeVector(b[:len(b)-3])
	assert.Error(t, err)
}

func TestDot_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dot  clock.Dot
	}{
		{"regular", clock.NewDot("A", 3)},
		{"zero sentinel", clock.NewDot("A", 0)},
		{"empty replica", clock.NewDot("", 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeDot(EncodeDot(tt.dot))
			require.NoError(t, err)
			assert.Equal(t, tt.dot, decoded)
		})
	}
}

func TestGetReply_Siblings(t *testing.T) {
	reply := &GetReply{
		Found:   true,
		Context: clock.New().Increment("n1").Increment("n2"),
		Siblings: []Sibling{
			{Dot: clock.NewDot("n1", 1), Value: []byte("left")},
			{Dot: clock.NewDot("n2", 1), Deleted: true},
		},
	}

	var decoded GetReply
	require.NoError(t, Unmarshal(Marshal(reply), &decoded))

	assert.True(t, decoded.Found)
	assert.True(t, decoded.Context.Equal(reply.Context))
	require.Len(t, decoded.Siblings, 2)
	assert.Equal(t, clock.NewDot("n1", 1), decoded.Siblings[0].Dot)
	assert.Equal(t, []byte("left"), decoded.Siblings[0].Value)
	assert.True(t, decoded.Siblings[1].Deleted)
}

func TestSyncReply_Keys(t *testing.T) {
	in := &SyncReply{
		From:  "n2",
		Clock: clock.New().Increment("n2"),
		Keys:  []string{"a", "", "b"},
	}

	var out SyncReply
	require.NoError(t, Unmarshal(Marshal(in), &out))
	assert.Equal(t, "n2", out.From)
	assert.Equal(t, []string{"a", "", "b"}, out.Keys)
	assert.True(t, out.Clock.Equal(in.Clock))
}

func TestUnmarshal_ResetsMessage(t *testing.T) {
	req := &PutRequest{Key: "stale", Value: []byte("v"), Deleted: true}
	require.NoError(t, Unmarshal(Marshal(&PutRequest{Key: "fresh"}), req))

	assert.Equal(t, "fresh", req.Key)
	assert.Nil(t, req.Value)
	assert.False(t, req.Deleted)
}

func TestGRPCCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(Name)
	require.NotNil(t, c)
	assert.Equal(t, Name, c.Name())

	in := &SyncRequest{From: "n1", Clock: clock.New().Increment("n1")}
	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out SyncRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "n1", out.From)
	assert.True(t, out.Clock.Equal(in.Clock))
}

func TestGRPCCodec_RejectsForeignTypes(t *testing.T) {
	c := grpcCodec{}

	_, err := c.Marshal("not a message")
	assert.ErrorIs(t, err, ErrUnknownMessage)

	err = c.Unmarshal(nil, &struct{}{})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}
