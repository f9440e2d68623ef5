// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package profile persists the active instance selection: which stored
// credential bundle commands use when neither --config nor --instance is
// given. Only the instance name lives here; the bundles themselves are in
// the OS keychain or on disk.
package profile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"velocli/internal/xdg"
)

// State represents the persisted CLI profile.
type State struct {
	ActiveInstance string `json:"active_instance"`
}

// path returns the path to the profile file.
func path() (string, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// Load reads the profile; a missing file yields the zero value.
func Load() (State, error) {
	var s State
	p, err := path()
	if err != nil {
		return s, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// Save writes the profile with 0600 permissions.
func Save(s State) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// Clear removes the profile file.
func Clear() error {
	p, err := path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
