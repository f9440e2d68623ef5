package api

import (
	"bytes"
	"context"
	"io"
	"strings"

	"velocli/api/wire"
)

// fetchChunkLen is the chunk size requested per VFS read.
const fetchChunkLen = 64 * 1024

// Fetch downloads a server-side file (for example a collection archive under
// downloads/) into memory. Prefer FetchTo for large files.
func (s *Session) Fetch(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.FetchTo(ctx, path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchTo streams a server-side file to w, issuing chunked reads at
// increasing offsets until the server returns an empty chunk. It reports the
// number of bytes written.
func (s *Session) FetchTo(ctx context.Context, path string, w io.Writer) (int64, error) {
	components := pathComponents(path)
	var written int64
	for {
		chunk, err := s.conn.FetchChunk(ctx, &wire.VFSFileBuffer{
			Components: components,
			Offset:     uint64(written),
			Length:     fetchChunkLen,
		})
		if err != nil {
			return written, err
		}
		if len(chunk.Data) == 0 {
			return written, nil
		}
		n, err := w.Write(chunk.Data)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// pathComponents splits a server VFS path, dropping empty and relative
// segments.
func pathComponents(path string) []string {
	var out []string
	for _, c := range strings.Split(path, "/") {
		switch c {
		case "", ".", "..":
		default:
			out = append(out, c)
		}
	}
	return out
}
