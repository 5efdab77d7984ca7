// Package session reassembles chunked image transfers for one mosaic job.
//
// A session moves through an explicit state machine:
//
//	Idle --start--> AwaitingTarget --target complete--> AwaitingPool
//	     --pool image complete--> Ready --pool image complete--> Ready
//
// The target arrives first, then pool images one after another. Chunks of
// one image arrive in order starting at offset 0; the first chunk allocates
// the whole image. Take hands the buffers to a job and resets the session.
package session

import (
	"bytes"
	"math"

	"github.com/zeebo/blake3"

	"github.com/ocinpp/mosaic-generator/mosaicerr"
)

// State is the phase of a session.
type State uint8

const (
	Idle State = iota
	AwaitingTarget
	AwaitingPool
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingTarget:
		return "awaiting-target"
	case AwaitingPool:
		return "awaiting-pool"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Params are the numeric job parameters set by Start.
type Params struct {
	TileSize   int
	ColorBlend float64
}

// Limits bound what a session accepts. Zero means unlimited.
type Limits struct {
	MaxImageBytes int
	MaxPoolImages int
}

// EventKind says what a chunk completed, if anything.
type EventKind uint8

const (
	NoEvent EventKind = iota
	TargetComplete
	PoolComplete
)

// Event is the result of a successfully written chunk.
type Event struct {
	Kind EventKind
	// PoolCount is the number of complete pool images, set on PoolComplete.
	PoolCount int
	// Written is the number of uncompressed bytes the chunk carried.
	Written int
}

// Job is the input of one mosaic build, detached from the session.
type Job struct {
	Params
	Target []byte
	Pool   [][]byte
}

type transfer struct {
	buf     []byte
	written int
}

// Session holds the buffers of one job. It is not safe for concurrent use;
// the owning worker serialises access.
type Session struct {
	limits Limits

	state   State
	params  Params
	target  []byte
	pool    [][]byte
	current *transfer
}

// New returns an Idle session.
func New(limits Limits) *Session {
	return &Session{limits: limits}
}

// Start resets the session and stores the job parameters.
func (s *Session) Start(tileSize int, colorBlend float64) error {
	s.Clear()
	if tileSize <= 0 {
		return mosaicerr.Config("start", "tile size must be positive, got %d", tileSize)
	}
	if math.IsNaN(colorBlend) || colorBlend < 0 || colorBlend > 1 {
		return mosaicerr.Config("start", "color adjustment %v outside [0,1]", colorBlend)
	}
	s.params = Params{TileSize: tileSize, ColorBlend: colorBlend}
	s.state = AwaitingTarget
	return nil
}

// Clear drops all buffers and parameters. It is idempotent.
func (s *Session) Clear() {
	s.state = Idle
	s.params = Params{}
	s.target = nil
	s.pool = nil
	s.current = nil
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// InTransfer reports whether an image is partially received.
func (s *Session) InTransfer() bool {
	return s.current != nil
}

// Params returns the parameters set by Start.
func (s *Session) Params() Params {
	return s.params
}

// PoolCount returns the number of complete pool images.
func (s *Session) PoolCount() int {
	return len(s.pool)
}

// Receive writes one chunk into the image being filled.
func (s *Session) Receive(c Chunk) (Event, error) {
	if s.state == Idle {
		return Event{}, mosaicerr.State("chunk", "no session started")
	}
	if err := c.validate(); err != nil {
		return Event{}, err
	}
	if s.limits.MaxImageBytes > 0 && c.Total > s.limits.MaxImageBytes {
		return Event{}, mosaicerr.Protocol("chunk", "image of %d bytes exceeds limit of %d", c.Total, s.limits.MaxImageBytes)
	}

	if s.current == nil {
		if c.Offset != 0 {
			return Event{}, mosaicerr.Protocol("chunk", "continuation chunk at offset %d with no image in progress", c.Offset)
		}
		if s.state != AwaitingTarget && s.limits.MaxPoolImages > 0 && len(s.pool) >= s.limits.MaxPoolImages {
			return Event{}, mosaicerr.Protocol("chunk", "pool exceeds limit of %d images", s.limits.MaxPoolImages)
		}
	} else {
		switch {
		case c.Offset == 0:
			return Event{}, mosaicerr.Protocol("chunk", "new image started after %d of %d bytes of the previous one",
				s.current.written, len(s.current.buf))
		case c.Total != len(s.current.buf):
			return Event{}, mosaicerr.Protocol("chunk", "total %d does not match image size %d", c.Total, len(s.current.buf))
		case c.Offset != s.current.written:
			return Event{}, mosaicerr.Protocol("chunk", "chunk at offset %d, expected %d", c.Offset, s.current.written)
		}
	}

	payload, err := c.payload()
	if err != nil {
		return Event{}, err
	}

	t := s.current
	if t == nil {
		t = &transfer{buf: make([]byte, c.Total)}
	}
	if c.End == c.Total && len(c.Digest) > 0 {
		if err := verifyDigest(t.buf[:c.Offset], payload, c.Digest); err != nil {
			return Event{}, err
		}
	}

	copy(t.buf[c.Offset:], payload)
	t.written = c.End
	s.current = t

	event := Event{Written: len(payload)}
	if c.End < c.Total {
		return event, nil
	}

	s.current = nil
	if s.state == AwaitingTarget {
		s.target = t.buf
		s.state = AwaitingPool
		event.Kind = TargetComplete
		return event, nil
	}
	s.pool = append(s.pool, t.buf)
	s.state = Ready
	event.Kind = PoolComplete
	event.PoolCount = len(s.pool)
	return event, nil
}

// verifyDigest checks the BLAKE3-256 digest of head followed by tail.
func verifyDigest(head, tail, want []byte) error {
	if len(want) != 32 {
		return mosaicerr.Protocol("chunk", "digest is %d bytes, want 32", len(want))
	}
	h := blake3.New()
	h.Write(head)
	h.Write(tail)
	if !bytes.Equal(h.Sum(nil), want) {
		return mosaicerr.Protocol("chunk", "image digest mismatch")
	}
	return nil
}

// Take detaches the received buffers as a Job and resets the session.
// It is only legal in Ready with no transfer in progress.
func (s *Session) Take() (Job, error) {
	switch {
	case s.state == Idle:
		return Job{}, mosaicerr.State("process", "no session started")
	case s.current != nil:
		return Job{}, mosaicerr.State("process", "image transfer in progress (%d of %d bytes)",
			s.current.written, len(s.current.buf))
	case s.state == AwaitingTarget:
		return Job{}, mosaicerr.State("process", "no target image received")
	case s.state == AwaitingPool:
		return Job{}, mosaicerr.State("process", "no pool images received")
	}
	job := Job{Params: s.params, Target: s.target, Pool: s.pool}
	s.Clear()
	return job, nil
}
