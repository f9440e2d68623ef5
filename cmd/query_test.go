// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"reflect"
	"testing"
)

func TestParseEnvPairs(t *testing.T) {
	tests := []struct {
		name      string
		pairs     []string
		want      map[string]string
		expectErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{
			name:  "single pair",
			pairs: []string{"ClientId=C.123"},
			want:  map[string]string{"ClientId": "C.123"},
		},
		{
			name:  "value with equals sign",
			pairs: []string{"Query=SELECT 1 = 1 FROM scope()"},
			want:  map[string]string{"Query": "SELECT 1 = 1 FROM scope()"},
		},
		{
			name:  "last duplicate wins",
			pairs: []string{"Depth=1", "Depth=2"},
			want:  map[string]string{"Depth": "2"},
		},
		{
			name:  "empty value allowed",
			pairs: []string{"Filter="},
			want:  map[string]string{"Filter": ""},
		},
		{name: "no equals sign", pairs: []string{"ClientId"}, expectErr: true},
		{name: "empty key", pairs: []string{"=value"}, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEnvPairs(tt.pairs)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("parseEnvPairs(%v) = %v, want error", tt.pairs, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEnvPairs(%v) error: %v", tt.pairs, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseEnvPairs(%v) = %v, want %v", tt.pairs, got, tt.want)
			}
		})
	}
}

func TestCellString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "hello", want: "hello"},
		{name: "number", in: float64(42), want: "42"},
		{name: "bool", in: true, want: "true"},
		{name: "nested object", in: map[string]any{"a": float64(1)}, want: `{"a":1}`},
		{name: "array", in: []any{"x", "y"}, want: `["x","y"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cellString(tt.in); got != tt.want {
				t.Errorf("cellString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
