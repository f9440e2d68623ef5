// Package wire defines the frame types exchanged on a query channel and
// their binary encoding.
//
// The server speaks standard protobuf on the wire. No generated stubs are
// used: the message set is small and stable, so frames are marshalled by
// hand with protowire and carried by a custom gRPC codec, the same way the
// stream itself is opened with a literal method path instead of a generated
// client. Unknown fields are skipped on decode, preserving compatibility
// with newer servers.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// FrameKind identifies the variant carried by a ServerFrame.
type FrameKind int

const (
	// KindInvalid marks a frame carrying no variant, or more than one.
	KindInvalid FrameKind = iota
	// KindDataBatch carries an ordered batch of result rows.
	KindDataBatch
	// KindLogLine carries one server-side log line.
	KindLogLine
	// KindCompletion marks the end of the stream with a status.
	KindCompletion
	// KindError reports a server-side query failure.
	KindError
)

func (k FrameKind) String() string {
	switch k {
	case KindDataBatch:
		return "data_batch"
	case KindLogLine:
		return "log_line"
	case KindCompletion:
		return "completion"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// Param is one query environment entry.
type Param struct {
	Key   string
	Value string
}

// QueryRequest is the single request transmitted on a query channel.
// Immutable once submitted.
type QueryRequest struct {
	// Query is the VQL text.
	Query string
	// Env is the query environment passed to the server.
	Env []Param
	// OrgID selects the organization to run under. Optional.
	OrgID string
	// MaxRows bounds the number of rows per DataBatch frame.
	MaxRows uint64
}

// ClientFrame is the client→server message: either the initial request or a
// best-effort cancellation signal. Exactly one field is set.
type ClientFrame struct {
	Request *QueryRequest
	Cancel  bool
}

// DataBatch is an ordered batch of result rows, JSON-encoded as the server
// produced them. Part carries the server's frame sequence number; a logical
// batch may be split across several frames and the split is transparent to
// consumers.
type DataBatch struct {
	RowsJSON []byte
	Columns  []string
	Part     uint64
}

// LogLine is one line of server-side query log output.
type LogLine struct {
	Message string
	Level   string
}

// Completion marks the end of a response stream. Status 0 is success.
type Completion struct {
	Status int32
}

// ErrorInfo reports a server-side query failure.
type ErrorInfo struct {
	Code    int32
	Message string
}

// ServerFrame is the server→client message, a closed tagged variant.
type ServerFrame struct {
	Batch *DataBatch
	Log   *LogLine
	Done  *Completion
	Fail  *ErrorInfo
}

// Kind reports which variant the frame carries. A frame with zero or more
// than one variant set is KindInvalid and must be treated as a protocol
// violation.
func (f *ServerFrame) Kind() FrameKind {
	kind, n := KindInvalid, 0
	if f.Batch != nil {
		kind, n = KindDataBatch, n+1
	}
	if f.Log != nil {
		kind, n = KindLogLine, n+1
	}
	if f.Done != nil {
		kind, n = KindCompletion, n+1
	}
	if f.Fail != nil {
		kind, n = KindError, n+1
	}
	if n != 1 {
		return KindInvalid
	}
	return kind
}

// VFSFileBuffer requests one chunk of a server-side file.
type VFSFileBuffer struct {
	Components []string
	Offset     uint64
	Length     uint32
}

// VFSChunk is one chunk of file data. An empty chunk marks the end.
type VFSChunk struct {
	Data []byte
}

func (p *Param) marshal(b []byte) []byte {
	if p.Key != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, p.Key)
	}
	if p.Value != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, p.Value)
	}
	return b
}

func (p *Param) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			p.Key = string(b)
		case 2:
			p.Value = string(b)
		}
		return nil
	})
}

func (q *QueryRequest) marshal(b []byte) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, q.Query)
	for i := range q.Env {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, q.Env[i].marshal(nil))
	}
	if q.OrgID != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, q.OrgID)
	}
	if q.MaxRows != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, q.MaxRows)
	}
	return b
}

func (q *QueryRequest) unmarshal(b []byte) error {
	return walkMixed(b, func(num protowire.Number, v uint64) {
		if num == 4 {
			q.MaxRows = v
		}
	}, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			q.Query = string(b)
		case 2:
			var p Param
			if err := p.unmarshal(b); err != nil {
				return err
			}
			q.Env = append(q.Env, p)
		case 3:
			q.OrgID = string(b)
		}
		return nil
	})
}

// Marshal encodes the frame for transmission.
func (f *ClientFrame) Marshal() ([]byte, error) {
	var b []byte
	switch {
	case f.Request != nil:
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Request.marshal(nil))
	case f.Cancel:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	default:
		return nil, fmt.Errorf("wire: empty client frame")
	}
	return b, nil
}

// Unmarshal decodes a frame received from the peer.
func (f *ClientFrame) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			f.Request = new(QueryRequest)
			return f.Request.unmarshal(b)
		case 2:
			f.Cancel = true
		}
		return nil
	})
}

func (d *DataBatch) unmarshal(b []byte) error {
	return walkMixed(b, func(num protowire.Number, v uint64) {
		if num == 3 {
			d.Part = v
		}
	}, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			d.RowsJSON = append([]byte(nil), b...)
		case 2:
			d.Columns = append(d.Columns, string(b))
		}
		return nil
	})
}

func (d *DataBatch) marshal(b []byte) []byte {
	if len(d.RowsJSON) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, d.RowsJSON)
	}
	for _, c := range d.Columns {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, c)
	}
	if d.Part != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, d.Part)
	}
	return b
}

func (l *LogLine) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			l.Message = string(b)
		case 2:
			l.Level = string(b)
		}
		return nil
	})
}

func (l *LogLine) marshal(b []byte) []byte {
	if l.Message != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, l.Message)
	}
	if l.Level != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, l.Level)
	}
	return b
}

func (c *Completion) unmarshal(b []byte) error {
	return walkMixed(b, func(num protowire.Number, v uint64) {
		if num == 1 {
			c.Status = int32(v)
		}
	}, nil)
}

func (c *Completion) marshal(b []byte) []byte {
	if c.Status != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(c.Status)))
	}
	return b
}

func (e *ErrorInfo) unmarshal(b []byte) error {
	return walkMixed(b, func(num protowire.Number, v uint64) {
		if num == 1 {
			e.Code = int32(v)
		}
	}, func(num protowire.Number, b []byte) error {
		if num == 2 {
			e.Message = string(b)
		}
		return nil
	})
}

func (e *ErrorInfo) marshal(b []byte) []byte {
	if e.Code != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(e.Code)))
	}
	if e.Message != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, e.Message)
	}
	return b
}

// Marshal encodes the frame for transmission.
func (f *ServerFrame) Marshal() ([]byte, error) {
	var b []byte
	switch {
	case f.Batch != nil:
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Batch.marshal(nil))
	case f.Log != nil:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Log.marshal(nil))
	case f.Done != nil:
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Done.marshal(nil))
	case f.Fail != nil:
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Fail.marshal(nil))
	default:
		return nil, fmt.Errorf("wire: empty server frame")
	}
	return b, nil
}

// Unmarshal decodes a frame received from the peer.
func (f *ServerFrame) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, b []byte) error {
		switch num {
		case 1:
			f.Batch = new(DataBatch)
			return f.Batch.unmarshal(b)
		case 2:
			f.Log = new(LogLine)
			return f.Log.unmarshal(b)
		case 3:
			f.Done = new(Completion)
			return f.Done.unmarshal(b)
		case 4:
			f.Fail = new(ErrorInfo)
			return f.Fail.unmarshal(b)
		}
		return nil
	})
}

// Marshal encodes the request for transmission.
func (v *VFSFileBuffer) Marshal() ([]byte, error) {
	var b []byte
	for _, c := range v.Components {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, c)
	}
	if v.Offset != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, v.Offset)
	}
	if v.Length != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Length))
	}
	return b, nil
}

// Unmarshal decodes a request received from the peer.
func (v *VFSFileBuffer) Unmarshal(b []byte) error {
	return walkMixed(b, func(num protowire.Number, val uint64) {
		switch num {
		case 2:
			v.Offset = val
		case 3:
			v.Length = uint32(val)
		}
	}, func(num protowire.Number, b []byte) error {
		if num == 1 {
			v.Components = append(v.Components, string(b))
		}
		return nil
	})
}

// Marshal encodes the chunk for transmission.
func (v *VFSChunk) Marshal() ([]byte, error) {
	var b []byte
	if len(v.Data) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Data)
	}
	return b, nil
}

// Unmarshal decodes a chunk received from the peer.
func (v *VFSChunk) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, b []byte) error {
		if num == 1 {
			v.Data = append([]byte(nil), b...)
		}
		return nil
	})
}

// walkFields iterates length-delimited fields, skipping everything else.
func walkFields(b []byte, onBytes func(protowire.Number, []byte) error) error {
	return walkMixed(b, nil, onBytes)
}

// walkMixed iterates a message's fields, dispatching varint fields to
// onVarint and length-delimited fields to onBytes. Fields of other wire
// types, and field numbers neither callback recognizes, are skipped.
func walkMixed(b []byte, onVarint func(protowire.Number, uint64), onBytes func(protowire.Number, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if onVarint != nil {
				onVarint(num, v)
			}
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if onBytes != nil {
				if err := onBytes(num, v); err != nil {
					return err
				}
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
