// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for velocli.
// This module manages all interactions with the OS keychain/credential store.
// Credential bundles (the YAML files carrying the client key, certificate and
// trust anchor) can be imported into the keychain so private key material
// does not have to stay on disk; bundles are stored per instance name.
//
// The package supports multiple operating systems including macOS Keychain and
// Windows Credential Manager, with thread-safe operations and proper error handling.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "velocli"

// bundleKeyPrefix namespaces credential bundle entries. The default bundle
// (no instance name) lives under the bare prefix.
const bundleKeyPrefix = "api_bundle"

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}

	return &Manager{
		ring: ring,
	}, nil
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	// If already initialized successfully, return it
	if globalManager != nil {
		return globalManager, nil
	}

	// If previous initialization failed, retry
	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}

	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
// Forces use of macOS Keychain or Windows Credential Manager - no file fallback.
func openRing() (keyring.Keyring, error) {
	// Only support darwin/windows platforms
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		return nil, errors.New("secure storage not supported on this OS (macOS/Windows only)")
	}

	// Use platform-specific native backends only
	var allowedBackends []keyring.BackendType
	if runtime.GOOS == "darwin" {
		// Try macOS Keychain first, then pass (password store) as fallback
		// Pass requires 'pass' utility installed: brew install pass
		allowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.PassBackend,
		}
	} else if runtime.GOOS == "windows" {
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
	}

	// Hint prefixes where supported to minimize namespace collisions
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}

	return ring, nil
}

// bundleKey maps an instance name to its keychain entry key.
func bundleKey(instance string) string {
	if instance == "" {
		return bundleKeyPrefix
	}
	return bundleKeyPrefix + "-" + instance
}

// SaveBundle stores a credential bundle's raw YAML under an instance name.
// An empty instance selects the default bundle. This method is thread-safe.
func (m *Manager) SaveBundle(instance string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty credential bundle")
	}
	key := bundleKey(instance)
	if m.backend != nil {
		return m.backend.Set(key, string(data))
	}
	return m.ring.Set(keyring.Item{Key: key, Data: data})
}

// LoadBundle retrieves a stored credential bundle's raw YAML.
// This method is thread-safe.
func (m *Manager) LoadBundle(instance string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := bundleKey(instance)
	if m.backend != nil {
		data, err := m.backend.Get(key)
		if err != nil {
			return nil, err
		}
		if data == "" {
			return nil, errors.New("empty credential bundle in keychain")
		}
		return []byte(data), nil
	}

	it, err := m.ring.Get(key)
	if err != nil {
		return nil, err
	}
	if len(it.Data) == 0 {
		return nil, errors.New("empty credential bundle in keychain")
	}
	return it.Data, nil
}

// DeleteBundle removes a stored credential bundle.
// This method is thread-safe.
func (m *Manager) DeleteBundle(instance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bundleKey(instance)
	if m.backend != nil {
		return m.backend.Delete(key)
	}
	return m.ring.Remove(key)
}
