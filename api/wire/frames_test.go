// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package wire

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestClientFrameRequestRoundTrip(t *testing.T) {
	in := &ClientFrame{Request: &QueryRequest{
		Query:   "SELECT * FROM info()",
		Env:     []Param{{Key: "ClientId", Value: "C.123"}, {Key: "Depth", Value: "2"}},
		OrgID:   "O123",
		MaxRows: 50,
	}}
	raw, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out ClientFrame
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.Request == nil {
		t.Fatal("Request not decoded")
	}
	if out.Request.Query != in.Request.Query {
		t.Errorf("Query = %q, want %q", out.Request.Query, in.Request.Query)
	}
	if out.Request.OrgID != "O123" || out.Request.MaxRows != 50 {
		t.Errorf("OrgID/MaxRows = %q/%d", out.Request.OrgID, out.Request.MaxRows)
	}
	if len(out.Request.Env) != 2 || out.Request.Env[0].Key != "ClientId" || out.Request.Env[1].Value != "2" {
		t.Errorf("Env = %+v", out.Request.Env)
	}
}

func TestClientFrameCancelRoundTrip(t *testing.T) {
	raw, err := (&ClientFrame{Cancel: true}).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out ClientFrame
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !out.Cancel || out.Request != nil {
		t.Errorf("decoded %+v, want cancel frame", out)
	}
}

func TestClientFrameEmptyRejected(t *testing.T) {
	if _, err := (&ClientFrame{}).Marshal(); err == nil {
		t.Error("Marshal() of empty frame succeeded, want error")
	}
}

func TestServerFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *ServerFrame
		kind  FrameKind
	}{
		{
			name: "data batch",
			frame: &ServerFrame{Batch: &DataBatch{
				RowsJSON: []byte(`[{"a":1}]`),
				Columns:  []string{"a"},
				Part:     7,
			}},
			kind: KindDataBatch,
		},
		{
			name:  "log line",
			frame: &ServerFrame{Log: &LogLine{Message: "collecting", Level: "INFO"}},
			kind:  KindLogLine,
		},
		{
			name:  "completion",
			frame: &ServerFrame{Done: &Completion{Status: 0}},
			kind:  KindCompletion,
		},
		{
			name:  "completion with status",
			frame: &ServerFrame{Done: &Completion{Status: 3}},
			kind:  KindCompletion,
		},
		{
			name:  "error",
			frame: &ServerFrame{Fail: &ErrorInfo{Code: 5, Message: "denied"}},
			kind:  KindError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.frame.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var out ServerFrame
			if err := out.Unmarshal(raw); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if got := out.Kind(); got != tt.kind {
				t.Fatalf("Kind() = %s, want %s", got, tt.kind)
			}
			switch tt.kind {
			case KindDataBatch:
				if !bytes.Equal(out.Batch.RowsJSON, tt.frame.Batch.RowsJSON) {
					t.Errorf("RowsJSON = %q", out.Batch.RowsJSON)
				}
				if out.Batch.Part != tt.frame.Batch.Part {
					t.Errorf("Part = %d, want %d", out.Batch.Part, tt.frame.Batch.Part)
				}
			case KindLogLine:
				if *out.Log != *tt.frame.Log {
					t.Errorf("Log = %+v", out.Log)
				}
			case KindCompletion:
				if out.Done.Status != tt.frame.Done.Status {
					t.Errorf("Status = %d, want %d", out.Done.Status, tt.frame.Done.Status)
				}
			case KindError:
				if *out.Fail != *tt.frame.Fail {
					t.Errorf("Fail = %+v", out.Fail)
				}
			}
		})
	}
}

func TestServerFrameKindExclusivity(t *testing.T) {
	tests := []struct {
		name  string
		frame ServerFrame
		want  FrameKind
	}{
		{name: "empty", frame: ServerFrame{}, want: KindInvalid},
		{name: "single variant", frame: ServerFrame{Done: &Completion{}}, want: KindCompletion},
		{
			name: "two variants",
			frame: ServerFrame{
				Done: &Completion{},
				Fail: &ErrorInfo{Code: 1},
			},
			want: KindInvalid,
		},
		{
			name: "all variants",
			frame: ServerFrame{
				Batch: &DataBatch{},
				Log:   &LogLine{},
				Done:  &Completion{},
				Fail:  &ErrorInfo{},
			},
			want: KindInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Kind(); got != tt.want {
				t.Errorf("Kind() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	// A frame from a newer server carrying extra fields the client does
	// not know about.
	b := (&ServerFrame{Log: &LogLine{Message: "hi", Level: "INFO"}}).mustMarshal(t)
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future extension")
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 11, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)

	var out ServerFrame
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.Kind() != KindLogLine || out.Log.Message != "hi" {
		t.Errorf("decoded %+v", out)
	}
}

func (f *ServerFrame) mustMarshal(t *testing.T) []byte {
	t.Helper()
	b, err := f.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	raw := (&ServerFrame{Batch: &DataBatch{RowsJSON: []byte(`[{"a":1}]`)}}).mustMarshal(t)
	var out ServerFrame
	if err := out.Unmarshal(raw[:len(raw)-3]); err == nil {
		t.Error("Unmarshal() of truncated input succeeded, want error")
	}
}

func TestVFSFileBufferRoundTrip(t *testing.T) {
	in := &VFSFileBuffer{
		Components: []string{"clients", "C.123", "collections", "F.456", "uploads", "data.bin"},
		Offset:     65536,
		Length:     4096,
	}
	raw, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out VFSFileBuffer
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(out.Components) != len(in.Components) {
		t.Fatalf("Components = %v", out.Components)
	}
	for i := range in.Components {
		if out.Components[i] != in.Components[i] {
			t.Errorf("Components[%d] = %q, want %q", i, out.Components[i], in.Components[i])
		}
	}
	if out.Offset != in.Offset || out.Length != in.Length {
		t.Errorf("Offset/Length = %d/%d", out.Offset, out.Length)
	}
}

func TestVFSChunkRoundTrip(t *testing.T) {
	in := &VFSChunk{Data: []byte{0x00, 0x01, 0xff, 0xfe}}
	raw, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out VFSChunk
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Errorf("Data = %x, want %x", out.Data, in.Data)
	}
}

func TestVFSChunkEmptyMarksEOF(t *testing.T) {
	raw, err := (&VFSChunk{}).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out VFSChunk
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(out.Data) != 0 {
		t.Errorf("Data = %x, want empty", out.Data)
	}
}
