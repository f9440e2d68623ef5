// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package verrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: ""},
		{name: "direct", err: New(Timeout, "slow"), want: Timeout},
		{name: "wrapped once", err: fmt.Errorf("query: %w", New(RemoteError, "denied")), want: RemoteError},
		{name: "wrapped twice", err: fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", New(Cancelled, "stop"))), want: Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ConnectionClosed, "stream terminated", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() lost the cause")
	}
	if !IsKind(err, ConnectionClosed) {
		t.Errorf("IsKind() = false, kind %q", KindOf(err))
	}
}

func TestRemoteCarriesCode(t *testing.T) {
	err := Remote(13, "vql compile error")
	var e *E
	if !errors.As(err, &e) {
		t.Fatal("errors.As() failed")
	}
	if e.Code != 13 || e.Kind != RemoteError {
		t.Errorf("E = %+v", e)
	}
}
