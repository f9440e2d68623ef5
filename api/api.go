// Package api is the client library for the server's gRPC API. A Session
// wraps one mutually-authenticated connection; queries stream their results
// back lazily and independently of each other.
//
// Typical use:
//
//	cfg, err := config.Load(path)
//	sess, err := api.Open(ctx, cfg, api.Options{})
//	defer sess.Close()
//	rows, err := sess.Query(ctx, "SELECT * FROM info()", nil)
//	for {
//		rec, err := rows.Next(ctx)
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"velocli/api/config"
	"velocli/api/stream"
	"velocli/api/wire"
	"velocli/internal/transport"

	"github.com/rs/zerolog"
)

// DefaultMaxRows is the per-batch row bound sent with queries when the
// caller does not configure one.
const DefaultMaxRows = 10

// Options enumerates every recognized session option. The zero value is
// usable; validation happens eagerly at Open, never later.
type Options struct {
	// DialTimeout bounds connection establishment including the TLS
	// handshake. Zero applies the transport default.
	DialTimeout time.Duration
	// IdleTimeout bounds the wait for the next response frame on an
	// active query. Zero disables the bound.
	IdleTimeout time.Duration
	// MaxRows bounds rows per data batch. Zero applies DefaultMaxRows.
	MaxRows uint64
	// OrgID selects the organization queries run under. Optional.
	OrgID string
	// Logger receives client diagnostics and server-side query log
	// lines. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

func (o *Options) validate() error {
	if o.DialTimeout < 0 {
		return fmt.Errorf("api: negative DialTimeout %v", o.DialTimeout)
	}
	if o.IdleTimeout < 0 {
		return fmt.Errorf("api: negative IdleTimeout %v", o.IdleTimeout)
	}
	return nil
}

func (o *Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

// Session is one authenticated connection to an API server. It supports any
// number of concurrent queries; closing it cancels all of them.
type Session struct {
	conn *transport.Conn
	opts Options
	log  zerolog.Logger
}

// Open validates opts, builds the mutual-TLS context from the credential
// bundle and establishes the connection. Credential and connect errors are
// surfaced directly and never retried here; retry policy belongs to the
// caller.
func Open(ctx context.Context, cfg *config.ClientConfig, opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	logger := opts.logger()
	conn, err := transport.Open(ctx, cfg.Address(), tlsCfg, transport.Options{
		DialTimeout: opts.DialTimeout,
		Channel: stream.Options{
			IdleTimeout: opts.IdleTimeout,
			Logger:      logger,
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("server", cfg.Address()).Str("sni", cfg.ServerName()).Msg("session opened")
	return &Session{conn: conn, opts: opts, log: logger}, nil
}

// Query opens a fresh channel on the shared connection, submits the VQL text
// with its parameter environment and returns the lazy result sequence
// immediately; consuming the sequence pumps frames on demand. Each call is
// independent: a failed query terminates only its own channel.
func (s *Session) Query(ctx context.Context, vql string, params map[string]string) (*stream.ResultSequence, error) {
	ch, err := s.conn.OpenChannel(ctx)
	if err != nil {
		return nil, err
	}
	maxRows := s.opts.MaxRows
	if maxRows == 0 {
		maxRows = DefaultMaxRows
	}
	req := &wire.QueryRequest{
		Query:   vql,
		Env:     envParams(params),
		OrgID:   s.opts.OrgID,
		MaxRows: maxRows,
	}
	if err := ch.Submit(req); err != nil {
		return nil, err
	}
	s.log.Debug().Str("vql", vql).Msg("query submitted")
	return ch.Results(), nil
}

// Close tears down the connection. All in-flight queries terminate with a
// ConnectionClosed outcome.
func (s *Session) Close() error {
	s.log.Debug().Msg("session closed")
	return s.conn.Close()
}

// envParams flattens the parameter map in a stable order. Key order on the
// wire is irrelevant to the server but kept deterministic.
func envParams(params map[string]string) []wire.Param {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]wire.Param, 0, len(keys))
	for _, k := range keys {
		env = append(env, wire.Param{Key: k, Value: params[k]})
	}
	return env
}
