package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"velocli/api/stream"
)

// Flow is a collection scheduled on a remote endpoint client. It is created
// by ScheduleFlow and queried through the same session.
type Flow struct {
	s        *Session
	ClientID string
	FlowID   string
}

// FlowLogEntry is one line of a flow's server-side execution log.
type FlowLogEntry struct {
	ClientTime int64  `json:"client_time"`
	Level      string `json:"level"`
	Message    string `json:"message"`
}

// flowPollInterval paces completion polling.
const flowPollInterval = 2 * time.Second

// ScheduleFlow starts a collection of the named artifact on a client,
// passing spec as the artifact's parameters, and returns the flow handle.
// The flow runs asynchronously; use Wait before reading results.
func (s *Session) ScheduleFlow(ctx context.Context, clientID, artifact string, spec map[string]string) (*Flow, error) {
	env := map[string]string{"ClientId": clientID, "Artifact": artifact}
	specJSON, err := json.Marshal(map[string]map[string]string{artifact: spec})
	if err != nil {
		return nil, err
	}
	env["Spec"] = string(specJSON)

	rows, err := s.Query(ctx,
		`SELECT collect_client(client_id=ClientId, artifacts=Artifact, spec=parse_json(data=Spec)) AS Flow FROM scope()`,
		env)
	if err != nil {
		return nil, err
	}
	rec, err := firstRecord(ctx, rows)
	if err != nil {
		return nil, err
	}
	flowID := nestedString(rec, "Flow", "session_id")
	if flowID == "" {
		return nil, fmt.Errorf("api: scheduling %s on %s returned no flow id", artifact, clientID)
	}
	s.log.Debug().Str("client", clientID).Str("flow", flowID).Str("artifact", artifact).Msg("flow scheduled")
	return &Flow{s: s, ClientID: clientID, FlowID: flowID}, nil
}

func (f *Flow) String() string { return f.FlowID }

// Wait polls the flow until it leaves the RUNNING state or ctx ends.
func (f *Flow) Wait(ctx context.Context) error {
	ticker := time.NewTicker(flowPollInterval)
	defer ticker.Stop()
	for {
		rows, err := f.s.Query(ctx,
			`SELECT state FROM flows(client_id=ClientId, flow_id=FlowId)`,
			f.env())
		if err != nil {
			return err
		}
		rec, err := firstRecord(ctx, rows)
		if err != nil {
			return err
		}
		if state, _ := rec["state"].(string); state != "" && state != "RUNNING" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Log fetches the flow's execution log entries.
func (f *Flow) Log(ctx context.Context) ([]FlowLogEntry, error) {
	rows, err := f.s.Query(ctx,
		`SELECT client_time, level, message FROM flow_logs(client_id=ClientId, flow_id=FlowId)`,
		f.env())
	if err != nil {
		return nil, err
	}
	var out []FlowLogEntry
	for {
		rec, err := rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var entry FlowLogEntry
		if err := decodeRecord(rec, &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
}

// Results fetches all records the flow collected.
func (f *Flow) Results(ctx context.Context) ([]stream.Record, error) {
	rows, err := f.s.Query(ctx,
		`SELECT * FROM flow_results(client_id=ClientId, flow_id=FlowId)`,
		f.env())
	if err != nil {
		return nil, err
	}
	var out []stream.Record
	for {
		rec, err := rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (f *Flow) env() map[string]string {
	return map[string]string{"ClientId": f.ClientID, "FlowId": f.FlowID}
}

// firstRecord consumes a sequence expecting at least one record and drains
// the remainder so the channel settles.
func firstRecord(ctx context.Context, rows *stream.ResultSequence) (stream.Record, error) {
	rec, err := rows.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("api: query returned no records")
		}
		return nil, err
	}
	rows.Cancel()
	return rec, nil
}

// decodeRecord maps a generic record onto a typed struct via its JSON tags.
func decodeRecord(rec stream.Record, v any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// nestedString digs a string out of nested record objects.
func nestedString(rec stream.Record, outer, inner string) string {
	obj, ok := rec[outer].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[inner].(string)
	return s
}
