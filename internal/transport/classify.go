package transport

import (
	"context"
	"errors"
	"strings"

	"velocli/api/verrors"
)

// classifyDialError sorts a failed dial into the connect error taxonomy.
// gRPC flattens most causes into wrapped strings, so classification matches
// on well-known substrings, handshake causes first.
func classifyDialError(addr string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !containsAny(err.Error(), handshakeMarkers) {
		return verrors.Wrap(verrors.ConnectTimeout, "handshake with "+addr+" did not complete in time", err)
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, handshakeMarkers) {
		return verrors.Wrap(verrors.HandshakeFailed, "certificate validation with "+addr, err)
	}
	return verrors.Wrap(verrors.Unreachable, "connect to "+addr, err)
}

var handshakeMarkers = []string{
	"x509",
	"tls:",
	"certificate",
	"handshake",
	"authentication handshake failed",
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
