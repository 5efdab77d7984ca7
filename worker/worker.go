// Package worker is the mosaic engine: it owns one session, turns caller
// messages into session operations and mosaic jobs, and replies with
// progress, the finished image, or an error.
//
// A Worker handles one message at a time. The tile loop runs to completion
// inside Handle; a second Handle call made while a job is running is
// rejected with a StateError reply and does not disturb that job. Every
// failure is reported as a single error reply and clears the session, so
// the caller recovers by sending a new start.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/ocinpp/mosaic-generator/config"
	"github.com/ocinpp/mosaic-generator/imageio"
	"github.com/ocinpp/mosaic-generator/metrics"
	"github.com/ocinpp/mosaic-generator/mosaicerr"
	"github.com/ocinpp/mosaic-generator/session"
	"github.com/ocinpp/mosaic-generator/tiler"
)

// Outbox receives replies. Send errors are transport failures and stop
// the worker.
type Outbox interface {
	Send(Reply) error
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(Reply) error

func (f OutboxFunc) Send(r Reply) error { return f(r) }

// Inbox yields messages. Receive returns io.EOF when the caller is done.
type Inbox interface {
	Receive() (Message, error)
}

// Options configures a Worker.
type Options struct {
	Limits            session.Limits
	DefaultColorBlend float64
	ProgressEvery     int
	Scaler            draw.Scaler
	Decode            imageio.DecodeOptions
	Encode            imageio.EncodeOptions

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	opts, err := OptionsFromConfig(config.Default())
	if err != nil {
		panic("worker: default config is invalid: " + err.Error())
	}
	return opts
}

// OptionsFromConfig translates a validated config. Logger and Metrics are
// left for the caller.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	scaler, err := tiler.Interpolator(cfg.Mosaic.Interpolator)
	if err != nil {
		return Options{}, err
	}
	pngLevel, err := imageio.ParsePNGCompression(cfg.Output.PNGCompression)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Limits: session.Limits{
			MaxImageBytes: cfg.Limits.MaxImageBytes,
			MaxPoolImages: cfg.Limits.MaxPoolImages,
		},
		DefaultColorBlend: cfg.Mosaic.DefaultColorBlend,
		ProgressEvery:     cfg.Mosaic.ProgressEvery,
		Scaler:            scaler,
		Decode: imageio.DecodeOptions{
			Parallelism: cfg.Decode.Parallelism,
			MaxPixels:   cfg.Limits.MaxPixels,
		},
		Encode: imageio.EncodeOptions{
			Format:         cfg.Output.Format,
			Quality:        cfg.Output.JPEGQuality,
			PNGCompression: pngLevel,
		},
	}, nil
}

// Worker is one mosaic engine instance.
type Worker struct {
	opts    Options
	out     Outbox
	logger  *slog.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	session *session.Session
}

// New creates a Worker replying to out.
func New(out Outbox, opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		opts:    opts,
		out:     out,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		session: session.New(opts.Limits),
	}
}

// sendError marks a failed Outbox.Send so it is not answered with another
// reply on the same broken outbox.
type sendError struct {
	err error
}

func (e *sendError) Error() string { return "sending reply: " + e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

func (w *Worker) send(r Reply) error {
	if err := w.out.Send(r); err != nil {
		return &sendError{err: err}
	}
	return nil
}

// Handle processes one message. It returns an error only when the outbox
// fails; every other failure becomes an error reply.
func (w *Worker) Handle(ctx context.Context, msg Message) (err error) {
	if !w.mu.TryLock() {
		reject := mosaicerr.State(msg.Action, "a job is already in flight")
		w.logger.Warn("rejected overlapping message", "action", msg.Action)
		w.metrics.Error(reject.Kind.String())
		return w.send(Reply{Error: reject.Error(), ErrorKind: reject.Kind.String(), Rejected: true})
	}
	defer w.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while handling message", "action", msg.Action, "panic", r)
			err = w.fail(mosaicerr.Newf(mosaicerr.KindInternal, msg.Action, "panic: %v", r))
		}
	}()

	if err := w.dispatch(ctx, msg); err != nil {
		return w.fail(err)
	}
	return nil
}

// fail reports err and clears the session.
func (w *Worker) fail(err error) error {
	var se *sendError
	if errors.As(err, &se) {
		w.session.Clear()
		return se
	}
	w.session.Clear()
	kind := mosaicerr.KindOf(err)
	w.logger.Warn("job failed", "kind", kind.String(), "error", err)
	w.metrics.Error(kind.String())
	return w.send(Reply{Error: err.Error(), ErrorKind: kind.String()})
}

func (w *Worker) dispatch(ctx context.Context, msg Message) error {
	switch msg.Action {
	case ActionStart:
		return w.start(msg)
	case ActionClear:
		w.session.Clear()
		w.logger.Debug("session cleared")
		percentage := 0
		return w.send(Reply{Progress: "Session cleared", Percentage: &percentage})
	case ActionProcess:
		return w.process(ctx)
	case "":
		if msg.isChunk() {
			return w.receive(msg)
		}
		return mosaicerr.Protocol("message", "neither an action nor a chunk")
	default:
		return mosaicerr.Protocol("message", "unknown action %q", msg.Action)
	}
}

func (w *Worker) start(msg Message) error {
	blend := w.opts.DefaultColorBlend
	if msg.ColorAdjustment != nil {
		blend = *msg.ColorAdjustment
	}
	if err := w.session.Start(msg.TileSize, blend); err != nil {
		return err
	}
	w.logger.Info("session started", "tile_size", msg.TileSize, "color_blend", blend)
	return nil
}

func (w *Worker) receive(msg Message) error {
	ev, err := w.session.Receive(session.Chunk{
		Payload:     msg.Chunk,
		Offset:      msg.Start,
		End:         msg.End,
		Total:       msg.Total,
		Compression: session.Compression(msg.Compression),
		Digest:      msg.Digest,
	})
	if err != nil {
		return err
	}
	w.metrics.Received(ev.Written)

	switch ev.Kind {
	case session.TargetComplete:
		w.metrics.ImageComplete("target")
		w.logger.Debug("target received", "bytes", msg.Total)
		return w.send(Reply{Progress: "Target image received. Processing pool images..."})
	case session.PoolComplete:
		w.metrics.ImageComplete("pool")
		w.logger.Debug("pool image received", "bytes", msg.Total, "pool", ev.PoolCount)
		return w.send(Reply{Progress: fmt.Sprintf("Received %d pool images", ev.PoolCount)})
	}
	return nil
}

func (w *Worker) process(ctx context.Context) (err error) {
	job, err := w.session.Take()
	if err != nil {
		return err
	}

	var (
		started = w.opts.Now()
		logger  = w.logger.With("job", uuid.NewString())
		rep     = &reporter{send: w.send}
	)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		w.metrics.JobFinished(outcome, w.opts.Now().Sub(started))
	}()
	logger.Info("job started", "tile_size", job.TileSize, "color_blend", job.ColorBlend,
		"target_bytes", len(job.Target), "pool", len(job.Pool))

	if err := rep.progress("Processing images...", 0); err != nil {
		return err
	}
	target, pool, err := imageio.DecodeAll(ctx, job.Target, job.Pool, w.opts.Decode)
	if err != nil {
		return w.interrupted("decode", err)
	}
	job.Target, job.Pool = nil, nil

	if err := rep.progress("Generating mosaic...", tilesStart); err != nil {
		return err
	}
	canvas, layout, err := tiler.Build(target, pool, tiler.Options{
		TileSize:      job.TileSize,
		ColorBlend:    job.ColorBlend,
		Scaler:        w.opts.Scaler,
		ProgressEvery: w.opts.ProgressEvery,
		Progress:      rep.tiles,
	})
	if err != nil {
		return err
	}
	if rep.err != nil {
		return rep.err
	}
	cols, rows := layout.Size()
	w.metrics.Tiles(cols * rows)

	if err := rep.progress("Finalizing mosaic...", tilesEnd); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return w.interrupted("encode", err)
	}
	data, mimeType, err := imageio.Encode(canvas, w.opts.Encode)
	if err != nil {
		return err
	}
	if err := rep.done(imageio.DataURI(mimeType, data)); err != nil {
		return err
	}

	logger.Info("job finished",
		"width", canvas.Bounds().Dx(), "height", canvas.Bounds().Dy(),
		"tiles", cols*rows, "distinct_matches", layout.Distinct(),
		"bytes", len(data), "elapsed", w.opts.Now().Sub(started))
	return nil
}

// interrupted classifies a context error at a suspension point.
func (w *Worker) interrupted(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return mosaicerr.New(mosaicerr.KindInternal, op, err)
	}
	return err
}

// Serve handles messages from in until it returns io.EOF, ctx is done, or
// the outbox fails. A malformed message is answered with a ProtocolError
// and ends Serve, since the stream can no longer be trusted.
func (w *Worker) Serve(ctx context.Context, in Inbox) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := in.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			w.mu.Lock()
			sendErr := w.fail(mosaicerr.New(mosaicerr.KindProtocol, "receive", err))
			w.mu.Unlock()
			return errors.Join(fmt.Errorf("receiving message: %w", err), sendErr)
		}
		if err := w.Handle(ctx, msg); err != nil {
			return err
		}
	}
}
