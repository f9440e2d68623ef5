// Package stream implements the query channel: the client side of one
// logical request/response stream multiplexed over a shared connection.
// A channel transmits exactly one query request, demultiplexes the server's
// streamed response frames (data batches, log lines, completion and error
// markers) and exposes the decoded rows as a lazily-pulled ResultSequence.
//
// The pump goroutine reads frames from the transport and hands record
// batches to the consumer over a capacity-one channel, so the transport is
// not read faster than the consumer pulls and memory stays bounded.
package stream

// State is the lifecycle state of a query channel.
type State string

const (
	// StateIdle means no request has been submitted yet.
	StateIdle State = "idle"
	// StateSent means the request went out and no frame has arrived.
	StateSent State = "sent"
	// StateStreaming means at least one response frame has been processed.
	StateStreaming State = "streaming"
	// StateCompleted means the server finished the stream successfully.
	StateCompleted State = "completed"
	// StateFailed means the channel terminated with an error.
	StateFailed State = "failed"
	// StateCancelled means the caller cancelled the channel.
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further frames are accepted in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
