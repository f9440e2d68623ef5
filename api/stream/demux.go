package stream

import (
	"encoding/json"

	"velocli/api/verrors"
	"velocli/api/wire"
)

// ActionKind identifies what the channel must do with a dispatched frame.
type ActionKind int

const (
	// ActionEmitRecords hands decoded rows to the result sequence.
	ActionEmitRecords ActionKind = iota
	// ActionEmitLog routes a log line to the side channel; the result
	// sequence is not affected.
	ActionEmitLog
	// ActionTerminate ends the channel with Outcome (nil means success).
	ActionTerminate
)

// Action is the demultiplexer's verdict for one frame.
type Action struct {
	Kind    ActionKind
	Records []Record
	Log     *wire.LogLine
	// Outcome is set for ActionTerminate: nil for a successful
	// completion, the terminal error otherwise.
	Outcome error
}

// Dispatch interprets one inbound frame against the channel's current state.
// It returns an error for protocol violations: frames arriving before a
// request was sent, or after a terminal state. The single exception is an
// error frame after a successful completion, which takes precedence over the
// completion and terminates the channel with the server's error.
func Dispatch(state State, f *wire.ServerFrame) (Action, error) {
	kind := f.Kind()
	if kind == wire.KindInvalid {
		return Action{}, verrors.New(verrors.OutOfOrderFrame, "frame carries no recognizable variant")
	}
	if state == StateIdle {
		return Action{}, verrors.Newf(verrors.OutOfOrderFrame, "%s frame before request was sent", kind)
	}
	if state.Terminal() {
		if kind == wire.KindError {
			// Malformed server sent both completion and error; the
			// error wins.
			return Action{Kind: ActionTerminate, Outcome: verrors.Remote(f.Fail.Code, f.Fail.Message)}, nil
		}
		return Action{}, verrors.Newf(verrors.OutOfOrderFrame, "%s frame after terminal state %s", kind, state)
	}

	switch kind {
	case wire.KindDataBatch:
		records, err := decodeBatch(f.Batch)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionEmitRecords, Records: records}, nil
	case wire.KindLogLine:
		return Action{Kind: ActionEmitLog, Log: f.Log}, nil
	case wire.KindCompletion:
		if f.Done.Status != 0 {
			return Action{
				Kind:    ActionTerminate,
				Outcome: verrors.Remote(f.Done.Status, "query completed with failure status"),
			}, nil
		}
		return Action{Kind: ActionTerminate}, nil
	case wire.KindError:
		return Action{Kind: ActionTerminate, Outcome: verrors.Remote(f.Fail.Code, f.Fail.Message)}, nil
	default:
		return Action{}, verrors.Newf(verrors.OutOfOrderFrame, "unhandled frame kind %s", kind)
	}
}

// Record is one decoded result row.
type Record map[string]any

// decodeBatch splits a batch's JSON row array into records, preserving order.
func decodeBatch(b *wire.DataBatch) ([]Record, error) {
	if len(b.RowsJSON) == 0 {
		return nil, nil
	}
	var rows []Record
	if err := json.Unmarshal(b.RowsJSON, &rows); err != nil {
		return nil, verrors.Wrap(verrors.MalformedEncoding, "decode data batch rows", err)
	}
	return rows, nil
}
