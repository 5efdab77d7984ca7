package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Action string `cbor:"action,omitempty"`
	Chunk  []byte `cbor:"chunk,omitempty"`
	Start  int    `cbor:"start"`
}

func TestStreamOfItems(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	sent := []frame{
		{Action: "start"},
		{Chunk: []byte{0x89, 'P', 'N', 'G'}, Start: 0},
		{Chunk: []byte{1, 2, 3}, Start: 4},
		{Action: "process"},
	}
	for _, f := range sent {
		require.NoError(t, enc.Encode(f))
	}

	dec := NewDecoder(&buf)
	var got []frame
	for {
		var f frame
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, f)
	}
	assert.Equal(t, sent, got)
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(v))
	return buf.Bytes()
}

func TestDeterministicEncoding(t *testing.T) {
	a := encode(t, map[string]int{"b": 2, "a": 1, "c": 3})
	b := encode(t, map[string]int{"c": 3, "a": 1, "b": 2})
	assert.Equal(t, a, b)
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data := encode(t, map[string]any{"action": "clear", "requestId": 7})

	var f frame
	require.NoError(t, NewDecoder(bytes.NewReader(data)).Decode(&f))
	assert.Equal(t, "clear", f.Action)

	var generic any
	require.NoError(t, NewDecoder(bytes.NewReader(data)).Decode(&generic))
	assert.IsType(t, map[string]any{}, generic)
}
