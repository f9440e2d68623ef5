// Package transport owns the authenticated connection to the API server.
// It dials a single mutually-authenticated gRPC connection, keeps it alive,
// and opens independent query channels over it. The Conn is the sole owner
// of the underlying client connection; channels hold non-owning stream
// references and are all cancelled when the Conn closes.
package transport

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"velocli/api/stream"
	"velocli/api/verrors"
	"velocli/api/wire"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
)

// Full gRPC method paths on the remote API service. Streams are opened with
// a literal StreamDesc instead of generated stubs.
const (
	QueryMethod        = "/velociraptor.API/Query"
	VFSGetBufferMethod = "/velociraptor.API/VFSGetBuffer"
)

// DefaultDialTimeout bounds connection establishment when the caller does
// not configure one.
const DefaultDialTimeout = 30 * time.Second

// Options configures connection establishment and the channels opened on it.
type Options struct {
	// DialTimeout bounds the connect+handshake. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
	// Channel carries per-channel options (idle timeout, log sink).
	Channel stream.Options
}

// Conn is one open, authenticated connection to the API server.
type Conn struct {
	cc   *grpc.ClientConn
	opts Options

	// ctx is the connection-scoped context; closing the Conn cancels it,
	// which terminates every channel opened on this connection.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Open dials addr and completes the mutual-TLS handshake, blocking until the
// connection is ready or the dial timeout expires. Error kinds:
// HandshakeFailed for certificate problems, Unreachable for network-level
// failures, ConnectTimeout when the bound expires first.
func Open(ctx context.Context, addr string, tlsCfg *tls.Config, opts Options) (*Conn, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cc, err := grpc.DialContext(dctx, addr,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)),
		grpc.WithBlock(),
		grpc.WithReturnConnectionError(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, classifyDialError(addr, err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	return &Conn{cc: cc, opts: opts, ctx: connCtx, cancel: connCancel}, nil
}

// OpenChannel opens an independent query channel over the shared connection.
// The channel dies with ctx, with its own cancellation, or when the Conn
// closes, whichever comes first.
func (c *Conn) OpenChannel(ctx context.Context) (*stream.QueryChannel, error) {
	select {
	case <-c.ctx.Done():
		return nil, verrors.New(verrors.ConnectionClosed, "connection is closed")
	default:
	}

	sctx, cancel := context.WithCancel(ctx)
	// Tie the stream's lifetime to the connection: Close cancels every
	// open channel.
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-sctx.Done():
		}
	}()

	desc := &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}
	cs, err := c.cc.NewStream(sctx, desc, QueryMethod, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		cancel()
		return nil, verrors.Wrap(verrors.ConnectionClosed, "open query channel", err)
	}
	fs := &grpc.GenericClientStream[wire.ClientFrame, wire.ServerFrame]{ClientStream: cs}
	return stream.New(fs, cancel, c.opts.Channel), nil
}

// FetchChunk requests one chunk of a server-side file via the unary VFS
// method.
func (c *Conn) FetchChunk(ctx context.Context, req *wire.VFSFileBuffer) (*wire.VFSChunk, error) {
	var out wire.VFSChunk
	err := c.cc.Invoke(ctx, VFSGetBufferMethod, req, &out, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		return nil, verrors.Wrap(verrors.ConnectionClosed, "fetch file chunk", err)
	}
	return &out, nil
}

// Close tears the connection down. Every open channel terminates with a
// ConnectionClosed error. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.cc.Close()
	})
	return c.closeErr
}
