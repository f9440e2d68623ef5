package stream

import (
	"context"
	"time"

	"velocli/api/verrors"
)

// ResultSequence is the lazy, finite, non-restartable sequence of decoded
// records produced by one query channel. Consuming it pumps frames on
// demand. It is owned by a single consumer goroutine; Cancel on the
// underlying channel may be called from anywhere.
type ResultSequence struct {
	ch  *QueryChannel
	buf []Record
	pos int
	err error
}

// Next pulls the next record. It returns io.EOF once the server completed
// the stream and the buffered records are exhausted, or the channel's
// terminal error. After a terminal outcome every further call returns the
// same error.
func (rs *ResultSequence) Next(ctx context.Context) (Record, error) {
	for {
		if rs.pos < len(rs.buf) {
			r := rs.buf[rs.pos]
			rs.pos++
			return r, nil
		}
		if rs.err != nil {
			return nil, rs.err
		}

		var timeout <-chan time.Time
		if rs.ch.idle > 0 {
			t := time.NewTimer(rs.ch.idle)
			defer t.Stop()
			timeout = t.C
		}

		select {
		case records, ok := <-rs.ch.frames:
			if !ok {
				rs.err = rs.ch.terminalErr()
				return nil, rs.err
			}
			if rs.ch.cancelled() {
				// A batch already queued when the caller
				// cancelled is discarded: cancellation stops
				// emission immediately.
				rs.err = rs.ch.terminalErr()
				return nil, rs.err
			}
			rs.buf, rs.pos = records, 0
		case <-ctx.Done():
			rs.err = rs.failWait(ctx.Err())
			return nil, rs.err
		case <-timeout:
			rs.err = rs.failWait(context.DeadlineExceeded)
			return nil, rs.err
		}
	}
}

// Cancel cancels the underlying channel. See QueryChannel.Cancel.
func (rs *ResultSequence) Cancel() { rs.ch.Cancel() }

// Err returns the terminal outcome observed so far, nil while streaming.
func (rs *ResultSequence) Err() error { return rs.err }

// failWait converts an interrupted frame wait into the channel's terminal
// outcome: deadline expiry is a Timeout, caller cancellation is Cancelled.
func (rs *ResultSequence) failWait(cause error) error {
	if cause == context.DeadlineExceeded {
		err := verrors.Wrap(verrors.Timeout, "no frame within the configured bound", cause)
		rs.ch.fail(err)
		return err
	}
	rs.ch.Cancel()
	return rs.ch.terminalErr()
}
