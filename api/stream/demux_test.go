// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package stream

import (
	"testing"

	"velocli/api/verrors"
	"velocli/api/wire"
)

func TestDispatch(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		frame      *wire.ServerFrame
		wantAction ActionKind
		wantErr    verrors.Kind
		wantRemote bool
	}{
		{
			name:       "batch while streaming",
			state:      StateStreaming,
			frame:      &wire.ServerFrame{Batch: &wire.DataBatch{RowsJSON: []byte(`[{"a":1}]`)}},
			wantAction: ActionEmitRecords,
		},
		{
			name:       "batch right after send",
			state:      StateSent,
			frame:      &wire.ServerFrame{Batch: &wire.DataBatch{RowsJSON: []byte(`[]`)}},
			wantAction: ActionEmitRecords,
		},
		{
			name:       "log line",
			state:      StateStreaming,
			frame:      &wire.ServerFrame{Log: &wire.LogLine{Level: "INFO", Message: "hi"}},
			wantAction: ActionEmitLog,
		},
		{
			name:       "successful completion",
			state:      StateStreaming,
			frame:      &wire.ServerFrame{Done: &wire.Completion{}},
			wantAction: ActionTerminate,
		},
		{
			name:       "completion with failure status",
			state:      StateStreaming,
			frame:      &wire.ServerFrame{Done: &wire.Completion{Status: 2}},
			wantAction: ActionTerminate,
			wantRemote: true,
		},
		{
			name:       "error frame",
			state:      StateStreaming,
			frame:      &wire.ServerFrame{Fail: &wire.ErrorInfo{Code: 1, Message: "bad"}},
			wantAction: ActionTerminate,
			wantRemote: true,
		},
		{
			name:    "empty frame",
			state:   StateStreaming,
			frame:   &wire.ServerFrame{},
			wantErr: verrors.OutOfOrderFrame,
		},
		{
			name:  "two variants set",
			state: StateStreaming,
			frame: &wire.ServerFrame{
				Done: &wire.Completion{},
				Fail: &wire.ErrorInfo{Code: 1},
			},
			wantErr: verrors.OutOfOrderFrame,
		},
		{
			name:    "frame before request",
			state:   StateIdle,
			frame:   &wire.ServerFrame{Batch: &wire.DataBatch{}},
			wantErr: verrors.OutOfOrderFrame,
		},
		{
			name:    "batch after completion",
			state:   StateCompleted,
			frame:   &wire.ServerFrame{Batch: &wire.DataBatch{}},
			wantErr: verrors.OutOfOrderFrame,
		},
		{
			name:       "error frame after completion wins",
			state:      StateCompleted,
			frame:      &wire.ServerFrame{Fail: &wire.ErrorInfo{Code: 9, Message: "late"}},
			wantAction: ActionTerminate,
			wantRemote: true,
		},
		{
			name:    "malformed batch json",
			state:   StateStreaming,
			frame:   &wire.ServerFrame{Batch: &wire.DataBatch{RowsJSON: []byte(`{not json`)}},
			wantErr: verrors.MalformedEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := Dispatch(tt.state, tt.frame)
			if tt.wantErr != "" {
				if !verrors.IsKind(err, tt.wantErr) {
					t.Fatalf("Dispatch() error = %v, want kind %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dispatch() unexpected error: %v", err)
			}
			if act.Kind != tt.wantAction {
				t.Errorf("Dispatch() action = %v, want %v", act.Kind, tt.wantAction)
			}
			if tt.wantRemote {
				if !verrors.IsKind(act.Outcome, verrors.RemoteError) {
					t.Errorf("Dispatch() outcome = %v, want RemoteError", act.Outcome)
				}
			} else if act.Kind == ActionTerminate && act.Outcome != nil {
				t.Errorf("Dispatch() outcome = %v, want success", act.Outcome)
			}
		})
	}
}

func TestDecodeBatchOrder(t *testing.T) {
	b := &wire.DataBatch{RowsJSON: []byte(`[{"n":1},{"n":2},{"n":3}]`)}
	records, err := decodeBatch(b)
	if err != nil {
		t.Fatalf("decodeBatch() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("decodeBatch() returned %d records, want 3", len(records))
	}
	for i, rec := range records {
		if got := rec["n"].(float64); got != float64(i+1) {
			t.Errorf("record %d: n = %v, want %d", i, got, i+1)
		}
	}
}

func TestDecodeBatchEmpty(t *testing.T) {
	records, err := decodeBatch(&wire.DataBatch{})
	if err != nil {
		t.Fatalf("decodeBatch() error: %v", err)
	}
	if records != nil {
		t.Errorf("decodeBatch() = %v, want nil", records)
	}
}
