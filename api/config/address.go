package config

import (
	"net"
	"strconv"
	"strings"

	"velocli/api/verrors"
)

// DefaultAPIPort is the port the server exposes its gRPC API on when the
// bundle's server_address carries no explicit port.
const DefaultAPIPort = "8001"

// normalizeAddress accepts "host" or "host:port" and returns a dialable
// host:port, applying DefaultAPIPort when the port is absent.
func normalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", verrors.New(verrors.MissingField, "server_address is empty")
	}
	if strings.Contains(addr, "://") {
		return "", verrors.New(verrors.MalformedEncoding, "server_address must be host:port, not a URL")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// No port (or bare IPv6). Bracketed IPv6 without port also lands here.
		host = strings.Trim(addr, "[]")
		port = DefaultAPIPort
	}
	if host == "" {
		return "", verrors.New(verrors.MalformedEncoding, "server_address has no host")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", verrors.Newf(verrors.MalformedEncoding, "server_address has invalid port %q", port)
	}
	return net.JoinHostPort(host, port), nil
}
