// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"velocli/api/verrors"
)

// testKeyPair generates a self-signed keypair and returns PEM-encoded
// certificate and key, standing in for server-issued API credentials.
func testKeyPair(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-api-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return certPEM, keyPEM
}

func validBundleYAML(t *testing.T) string {
	t.Helper()
	certPEM, keyPEM := testKeyPair(t)
	var b strings.Builder
	b.WriteString("name: test\n")
	b.WriteString("server_address: velo.example.com:8001\n")
	b.WriteString("client_key: |\n" + indent(keyPEM))
	b.WriteString("client_cert: |\n" + indent(certPEM))
	b.WriteString("trust_anchor_cert: |\n" + indent(certPEM))
	return b.String()
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func TestLoadBytesValid(t *testing.T) {
	cfg, err := LoadBytes([]byte(validBundleYAML(t)))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.Name != "test" {
		t.Errorf("Name = %q, want %q", cfg.Name, "test")
	}
	if got := cfg.Address(); got != "velo.example.com:8001" {
		t.Errorf("Address() = %q, want %q", got, "velo.example.com:8001")
	}
	if got := cfg.ServerName(); got != DefaultServerName {
		t.Errorf("ServerName() = %q, want %q", got, DefaultServerName)
	}
}

func TestLoadBytesErrors(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t)
	tests := []struct {
		name     string
		yaml     string
		wantKind verrors.Kind
	}{
		{
			name:     "not yaml",
			yaml:     "{{{{",
			wantKind: verrors.MalformedEncoding,
		},
		{
			name:     "missing client key",
			yaml:     "client_cert: x\ntrust_anchor_cert: x\nserver_address: h\n",
			wantKind: verrors.MissingField,
		},
		{
			name:     "missing server address",
			yaml:     "client_key: x\nclient_cert: x\ntrust_anchor_cert: x\n",
			wantKind: verrors.MissingField,
		},
		{
			name: "key not pem",
			yaml: "client_key: garbage\nclient_cert: |\n" + indent(certPEM) +
				"trust_anchor_cert: |\n" + indent(certPEM) + "server_address: h\n",
			wantKind: verrors.MalformedEncoding,
		},
		{
			name: "address is a url",
			yaml: "client_key: |\n" + indent(keyPEM) + "client_cert: |\n" + indent(certPEM) +
				"trust_anchor_cert: |\n" + indent(certPEM) +
				"server_address: https://velo.example.com:8001\n",
			wantKind: verrors.MalformedEncoding,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			if !verrors.IsKind(err, tt.wantKind) {
				t.Errorf("LoadBytes() error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !verrors.IsKind(err, verrors.UnreadableFile) {
		t.Errorf("Load() error = %v, want kind %s", err, verrors.UnreadableFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiclient.yaml")
	if err := os.WriteFile(path, []byte(validBundleYAML(t)), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerAddress != "velo.example.com:8001" {
		t.Errorf("ServerAddress = %q", cfg.ServerAddress)
	}
}

func TestServerNameOverride(t *testing.T) {
	cfg := &ClientConfig{ServerNameOverride: "custom.internal"}
	if got := cfg.ServerName(); got != "custom.internal" {
		t.Errorf("ServerName() = %q, want %q", got, "custom.internal")
	}
}

func TestTLSConfig(t *testing.T) {
	cfg, err := LoadBytes([]byte(validBundleYAML(t)))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		t.Fatalf("TLSConfig() error: %v", err)
	}
	if tlsCfg.ServerName != DefaultServerName {
		t.Errorf("ServerName = %q, want %q", tlsCfg.ServerName, DefaultServerName)
	}
	if len(tlsCfg.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(tlsCfg.Certificates))
	}
	if tlsCfg.RootCAs == nil {
		t.Error("RootCAs is nil")
	}
}

func TestTLSConfigMismatchedPair(t *testing.T) {
	certPEM, _ := testKeyPair(t)
	_, otherKey := testKeyPair(t)
	cfg := &ClientConfig{
		ClientKey:       otherKey,
		ClientCert:      certPEM,
		TrustAnchorCert: certPEM,
		ServerAddress:   "h",
	}
	if _, err := cfg.TLSConfig(); !verrors.IsKind(err, verrors.MalformedEncoding) {
		t.Errorf("TLSConfig() error = %v, want kind %s", err, verrors.MalformedEncoding)
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "host and port", in: "velo.example.com:8001", want: "velo.example.com:8001"},
		{name: "host only gets default port", in: "velo.example.com", want: "velo.example.com:8001"},
		{name: "surrounding whitespace", in: "  velo.example.com:9999 ", want: "velo.example.com:9999"},
		{name: "ipv4", in: "10.0.0.5:8001", want: "10.0.0.5:8001"},
		{name: "ipv6 with port", in: "[::1]:8001", want: "[::1]:8001"},
		{name: "ipv6 without port", in: "[::1]", want: "[::1]:8001"},
		{name: "empty", in: "", wantErr: true},
		{name: "url scheme", in: "grpc://velo:8001", wantErr: true},
		{name: "port out of range", in: "velo:99999", wantErr: true},
		{name: "port not numeric", in: "velo:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeAddress(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeAddress(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeAddress(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
