// Package config loads the API client credential bundle.
// The bundle is the YAML file emitted by the server's
// `velociraptor config api_client --name $NAME $OUT_FILE` command: a client
// key and certificate, the trust-anchor certificate used to validate the
// server, and the server's API address. Only parsing and PEM decodability are
// checked here; the cryptographic binding between key and certificate is
// validated by the TLS stack at handshake time.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"velocli/api/verrors"

	"gopkg.in/yaml.v3"
)

// DefaultServerName is the SNI / certificate name the server presents on its
// API endpoint regardless of its public DNS name.
const DefaultServerName = "VelociraptorServer"

// ClientConfig holds the credential bundle for one API server instance.
// Immutable once loaded; the transport owns it for the session's lifetime.
type ClientConfig struct {
	// Name is an informational label for the bundle (the --name it was
	// generated with). Optional.
	Name string `yaml:"name"`
	// ClientKey is the PEM-encoded client private key.
	ClientKey string `yaml:"client_key"`
	// ClientCert is the PEM-encoded client certificate.
	ClientCert string `yaml:"client_cert"`
	// TrustAnchorCert is the PEM-encoded CA certificate used to validate
	// the server's identity.
	TrustAnchorCert string `yaml:"trust_anchor_cert"`
	// ServerAddress is the API endpoint as host or host:port.
	ServerAddress string `yaml:"server_address"`
	// ServerNameOverride replaces DefaultServerName for certificate
	// validation. Optional.
	ServerNameOverride string `yaml:"server_name_override"`
}

// Load reads and validates a credential bundle from a YAML file.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.Wrap(verrors.UnreadableFile, "read credential bundle "+path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a credential bundle from raw YAML.
// Used for bundles held in the OS keyring rather than on disk.
func LoadBytes(data []byte) (*ClientConfig, error) {
	var c ClientConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, verrors.Wrap(verrors.MalformedEncoding, "parse credential bundle", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate checks required fields and PEM decodability.
func (c *ClientConfig) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"client_key", c.ClientKey},
		{"client_cert", c.ClientCert},
		{"trust_anchor_cert", c.TrustAnchorCert},
		{"server_address", c.ServerAddress},
	}
	for _, f := range required {
		if f.value == "" {
			return verrors.New(verrors.MissingField, "credential bundle is missing "+f.name)
		}
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"client_key", c.ClientKey},
		{"client_cert", c.ClientCert},
		{"trust_anchor_cert", c.TrustAnchorCert},
	} {
		if block, _ := pem.Decode([]byte(f.value)); block == nil {
			return verrors.New(verrors.MalformedEncoding, f.name+" is not PEM encoded")
		}
	}
	if _, err := normalizeAddress(c.ServerAddress); err != nil {
		return err
	}
	return nil
}

// ServerName returns the name used for server certificate validation.
func (c *ClientConfig) ServerName() string {
	if c.ServerNameOverride != "" {
		return c.ServerNameOverride
	}
	return DefaultServerName
}

// Address returns the normalized host:port of the API endpoint.
func (c *ClientConfig) Address() string {
	addr, err := normalizeAddress(c.ServerAddress)
	if err != nil {
		// validate() already accepted the address at load time.
		return c.ServerAddress
	}
	return addr
}

// TLSConfig builds the mutual-TLS context: client keypair, trust-anchor
// pool and server name. The returned config is what the gRPC transport
// credentials consume.
func (c *ClientConfig) TLSConfig() (*tls.Config, error) {
	keypair, err := tls.X509KeyPair([]byte(c.ClientCert), []byte(c.ClientKey))
	if err != nil {
		return nil, verrors.Wrap(verrors.MalformedEncoding, "client key/certificate pair", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(c.TrustAnchorCert)) {
		return nil, verrors.New(verrors.MalformedEncoding, "trust_anchor_cert contains no usable certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{keypair},
		RootCAs:      pool,
		ServerName:   c.ServerName(),
		MinVersion:   tls.VersionTLS12,
	}, nil
}
