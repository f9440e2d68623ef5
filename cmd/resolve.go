// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"velocli/api"
	"velocli/api/config"
	"velocli/internal/keychain"
	"velocli/internal/logging"
	"velocli/internal/profile"
	"velocli/internal/xdg"

	"github.com/rs/zerolog"
)

// resolveBundle locates the credential bundle for this invocation.
// Order: --config path, then the OS keychain entry for the selected
// instance, then the default file under the config dir. The instance comes
// from --instance or the saved profile.
func resolveBundle() (*config.ClientConfig, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}

	instance := flagInst
	if instance == "" {
		if st, err := profile.Load(); err == nil {
			instance = st.ActiveInstance
		}
	}

	if km, err := keychain.GetManager(); err == nil {
		if data, err := km.LoadBundle(instance); err == nil {
			return config.LoadBytes(data)
		}
	}

	dir, err := xdg.ConfigDir()
	if err != nil {
		return nil, err
	}
	name := "apiclient.yaml"
	if instance != "" {
		name = fmt.Sprintf("apiclient-%s.yaml", instance)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no credential bundle found: pass --config, run 'velocli creds import', or place one at %s", path)
	}
	return config.Load(path)
}

// openSession resolves credentials and establishes the authenticated
// connection, showing an inline spinner while the handshake runs.
func openSession(ctx context.Context, logger zerolog.Logger, dialTimeout, idleTimeout time.Duration, orgID string, maxRows uint64) (*api.Session, *config.ClientConfig, error) {
	cfg, err := resolveBundle()
	if err != nil {
		return nil, nil, err
	}

	stopSpinner := startInlineSpinner(os.Stderr,
		fmt.Sprintf("connecting to %s", cfg.Address()),
		[]string{"|", "/", "-", "\\"}, 120*time.Millisecond)
	sess, err := api.Open(ctx, cfg, api.Options{
		DialTimeout: dialTimeout,
		IdleTimeout: idleTimeout,
		MaxRows:     maxRows,
		OrgID:       orgID,
		Logger:      &logger,
	})
	stopSpinner()
	if err != nil {
		return nil, nil, fmt.Errorf("%s", logging.PresentError("open session", err))
	}
	return sess, cfg, nil
}
