package feeder

import (
	"context"
	"fmt"

	"github.com/ocinpp/mosaic-generator/session"
	"github.com/ocinpp/mosaic-generator/worker"
)

// DefaultChunkSize is the payload size used when Options.ChunkSize is zero.
const DefaultChunkSize = 256 << 10

// Handler accepts worker messages. *worker.Worker implements it.
type Handler interface {
	Handle(ctx context.Context, msg worker.Message) error
}

// Options controls how images are chunked.
type Options struct {
	ChunkSize   int
	Compression session.Compression
	// Digest attaches a BLAKE3 digest of the image to its final chunk.
	Digest bool
}

// Split cuts one image into sequential chunk messages.
func Split(data []byte, opts Options) ([]worker.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	msgs := make([]worker.Message, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		payload, used, err := session.Compress(data[start:end], opts.Compression)
		if err != nil {
			return nil, err
		}
		msg := worker.Message{
			Chunk: payload,
			Start: start,
			End:   end,
			Total: len(data),
		}
		if used != session.CompressionNone {
			msg.Compression = string(used)
		}
		if end == len(data) && opts.Digest {
			msg.Digest = session.Digest(data)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Feed sends the target and then every pool image, in order.
func Feed(ctx context.Context, h Handler, target []byte, pool [][]byte, opts Options) error {
	images := append([][]byte{target}, pool...)
	for i, img := range images {
		msgs, err := Split(img, opts)
		if err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		for _, msg := range msgs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := h.Handle(ctx, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run drives a whole job: start, feed, process.
func Run(ctx context.Context, h Handler, tileSize int, colorBlend float64, target []byte, pool [][]byte, opts Options) error {
	if err := h.Handle(ctx, worker.StartMessage(tileSize, colorBlend)); err != nil {
		return err
	}
	if err := Feed(ctx, h, target, pool, opts); err != nil {
		return err
	}
	return h.Handle(ctx, worker.Message{Action: worker.ActionProcess})
}
