package worker

import (
	"io"
	"sync"

	"github.com/ocinpp/mosaic-generator/codec"
)

// StreamInbox reads CBOR-framed messages from a byte stream.
type StreamInbox struct {
	dec *codec.Decoder
}

func NewStreamInbox(r io.Reader) *StreamInbox {
	return &StreamInbox{dec: codec.NewDecoder(r)}
}

func (s *StreamInbox) Receive() (Message, error) {
	var msg Message
	err := s.dec.Decode(&msg)
	return msg, err
}

// StreamOutbox writes CBOR-framed replies to a byte stream. It is safe for
// concurrent use.
type StreamOutbox struct {
	mu  sync.Mutex
	enc *codec.Encoder
}

func NewStreamOutbox(w io.Writer) *StreamOutbox {
	return &StreamOutbox{enc: codec.NewEncoder(w)}
}

func (s *StreamOutbox) Send(r Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(r)
}

// ChanInbox adapts a channel. A closed channel reads as io.EOF.
type ChanInbox <-chan Message

func (c ChanInbox) Receive() (Message, error) {
	msg, ok := <-c
	if !ok {
		return Message{}, io.EOF
	}
	return msg, nil
}
