package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"velocli/api/verrors"
	"velocli/api/wire"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// completionDrainGrace bounds how long the channel watches for a trailing
// error frame after a successful completion before settling the outcome.
const completionDrainGrace = 2 * time.Second

// FrameStream is the transport stream a query channel drives. The gRPC
// client stream satisfies it; tests substitute scripted fakes.
type FrameStream interface {
	Send(*wire.ClientFrame) error
	Recv() (*wire.ServerFrame, error)
	CloseSend() error
}

// Options configures one query channel.
type Options struct {
	// IdleTimeout bounds the wait for the next inbound frame while the
	// consumer is pulling. Zero disables the bound.
	IdleTimeout time.Duration
	// Logger receives server-side log lines out-of-band.
	Logger zerolog.Logger
}

// QueryChannel is the per-query state machine. It transmits one request,
// pumps the response stream and feeds a single ResultSequence. Cancel is
// safe from any goroutine; everything else is driven by the consumer.
type QueryChannel struct {
	stream       FrameStream
	cancelStream context.CancelFunc
	idle         time.Duration
	log          zerolog.Logger

	frames   chan []Record
	stopped  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	state    State
	terminal error // io.EOF for success, *verrors.E otherwise
}

// New wraps a transport stream in an Idle query channel. cancelStream must
// cancel the context the stream was opened with.
func New(fs FrameStream, cancelStream context.CancelFunc, opts Options) *QueryChannel {
	logger := opts.Logger
	return &QueryChannel{
		stream:       fs,
		cancelStream: cancelStream,
		idle:         opts.IdleTimeout,
		log:          logger,
		frames:       make(chan []Record, 1),
		stopped:      make(chan struct{}),
		state:        StateIdle,
	}
}

var errResubmit = errors.New("stream: channel already carried a request")

// Submit serializes and transmits the query request, then starts pumping
// response frames. A channel carries exactly one request; a second call
// fails without touching the wire.
func (ch *QueryChannel) Submit(req *wire.QueryRequest) error {
	ch.mu.Lock()
	if ch.state != StateIdle {
		ch.mu.Unlock()
		return errResubmit
	}
	ch.state = StateSent
	ch.mu.Unlock()

	if err := ch.stream.Send(&wire.ClientFrame{Request: req}); err != nil {
		werr := verrors.Wrap(verrors.ConnectionClosed, "transmit query request", err)
		ch.fail(werr)
		close(ch.frames)
		return werr
	}
	go ch.pump()
	return nil
}

// Results returns the channel's result sequence. One sequence per channel;
// it is not restartable and not safe for concurrent consumption.
func (ch *QueryChannel) Results() *ResultSequence {
	return &ResultSequence{ch: ch}
}

// Cancel terminates the channel from the caller's side. It signals the
// remote end best-effort, never waits for acknowledgment, and is a no-op on
// a channel that already reached a terminal state.
func (ch *QueryChannel) Cancel() {
	ch.mu.Lock()
	if ch.terminal != nil || ch.state.Terminal() {
		ch.mu.Unlock()
		return
	}
	wasIdle := ch.state == StateIdle
	ch.state = StateCancelled
	ch.terminal = verrors.New(verrors.Cancelled, "query cancelled by caller")
	ch.mu.Unlock()

	if !wasIdle {
		_ = ch.stream.Send(&wire.ClientFrame{Cancel: true})
		_ = ch.stream.CloseSend()
	}
	ch.stop()
	if wasIdle {
		// No pump was ever started, so nothing else closes frames.
		close(ch.frames)
	}
}

// State reports the channel's current lifecycle state.
func (ch *QueryChannel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// pump reads frames until a terminal condition, handing record batches to
// the consumer. It owns closing the frames channel.
func (ch *QueryChannel) pump() {
	defer close(ch.frames)
	for {
		f, err := ch.stream.Recv()
		if err != nil {
			ch.failTransport(err)
			return
		}

		ch.mu.Lock()
		if ch.state == StateSent {
			ch.state = StateStreaming
		}
		st := ch.state
		ch.mu.Unlock()
		if st.Terminal() {
			// Cancelled (or failed) concurrently; drop the frame.
			return
		}

		act, err := Dispatch(st, f)
		if err != nil {
			ch.fail(err)
			return
		}
		switch act.Kind {
		case ActionEmitLog:
			ch.emitLog(act.Log)
		case ActionEmitRecords:
			if len(act.Records) == 0 {
				continue
			}
			select {
			case ch.frames <- act.Records:
			case <-ch.stopped:
				return
			}
		case ActionTerminate:
			if act.Outcome != nil {
				ch.fail(act.Outcome)
				return
			}
			ch.drainAfterCompletion()
			return
		}
	}
}

// drainAfterCompletion watches the stream briefly after a successful
// completion. A conforming server closes immediately; a malformed one may
// still send an error frame, which takes precedence over the completion.
func (ch *QueryChannel) drainAfterCompletion() {
	ch.mu.Lock()
	if ch.terminal != nil {
		ch.mu.Unlock()
		return
	}
	ch.state = StateCompleted
	ch.mu.Unlock()

	_ = ch.stream.CloseSend()
	guard := time.AfterFunc(completionDrainGrace, ch.cancelStream)
	defer guard.Stop()

	for {
		f, err := ch.stream.Recv()
		if err != nil {
			// Stream closed (or the grace guard fired): the
			// completion stands.
			ch.complete()
			return
		}
		act, derr := Dispatch(StateCompleted, f)
		if derr != nil {
			ch.fail(derr)
			return
		}
		// Only the error-overrides-completion verdict reaches here.
		ch.fail(act.Outcome)
		return
	}
}

// emitLog routes a server log line to the side channel.
func (ch *QueryChannel) emitLog(l *wire.LogLine) {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	ch.log.WithLevel(level).Str("source", "server").Msg(l.Message)
}

// fail records a terminal error unless one is already set.
func (ch *QueryChannel) fail(err error) {
	ch.mu.Lock()
	if ch.terminal != nil {
		ch.mu.Unlock()
		return
	}
	ch.terminal = err
	if verrors.IsKind(err, verrors.Cancelled) {
		ch.state = StateCancelled
	} else {
		ch.state = StateFailed
	}
	ch.mu.Unlock()
	ch.stop()
}

// failTransport classifies a Recv failure. A bare EOF before completion and
// gRPC transport errors are both connection faults, never remote errors.
func (ch *QueryChannel) failTransport(err error) {
	ch.mu.Lock()
	already := ch.terminal != nil
	ch.mu.Unlock()
	if already {
		// Cancelled or failed locally; the Recv error is fallout.
		return
	}
	switch {
	case errors.Is(err, io.EOF):
		ch.fail(verrors.New(verrors.ConnectionClosed, "stream closed before completion"))
	case status.Code(err) == codes.Canceled, errors.Is(err, context.Canceled):
		ch.fail(verrors.Wrap(verrors.ConnectionClosed, "stream context cancelled", err))
	case status.Code(err) == codes.DeadlineExceeded, errors.Is(err, context.DeadlineExceeded):
		ch.fail(verrors.Wrap(verrors.Timeout, "stream deadline exceeded", err))
	default:
		ch.fail(verrors.Wrap(verrors.ConnectionClosed, "stream terminated", err))
	}
}

// complete settles the channel as successfully exhausted.
func (ch *QueryChannel) complete() {
	ch.mu.Lock()
	if ch.terminal == nil {
		ch.terminal = io.EOF
		ch.state = StateCompleted
	}
	ch.mu.Unlock()
	ch.stop()
}

// stop releases the pump and the transport stream. Idempotent.
func (ch *QueryChannel) stop() {
	ch.stopOnce.Do(func() { close(ch.stopped) })
	ch.cancelStream()
}

// terminalErr returns the settled outcome. Defensive default: if the frames
// channel closed without a recorded outcome, the connection went away.
func (ch *QueryChannel) terminalErr() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.terminal != nil {
		return ch.terminal
	}
	return verrors.New(verrors.ConnectionClosed, "channel closed without outcome")
}

// cancelled reports whether the caller cancelled the channel.
func (ch *QueryChannel) cancelled() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state == StateCancelled
}
