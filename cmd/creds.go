// Copyright (c) 2025 Velocli
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"

	"velocli/api/config"
	"velocli/internal/keychain"
	"velocli/internal/logging"
	"velocli/internal/profile"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage stored API credential bundles",
	Long: `Imports credential bundles into the OS keychain so the private key does
not have to stay on disk. Bundles are stored per instance name; the default
bundle has no name. Use 'creds use' to pick the instance commands default to.`,
}

var credsImportCmd = &cobra.Command{
	Use:   "import BUNDLE_FILE",
	Short: "Validate a bundle file and store it in the OS keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Parse first so broken bundles never reach the keychain.
		cfg, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("read bundle", err))
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("open keychain", err))
		}
		if err := km.SaveBundle(flagInst, raw); err != nil {
			return fmt.Errorf("%s", logging.PresentError("store bundle", err))
		}
		label := flagInst
		if label == "" {
			label = "default"
		}
		pterm.Success.Printfln("stored bundle for %s as instance %q", cfg.Address(), label)
		return nil
	},
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored bundle for an instance, with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("open keychain", err))
		}
		raw, err := km.LoadBundle(flagInst)
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("load bundle", err))
		}
		cfg, err := config.LoadBytes(raw)
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("parse bundle", err))
		}
		data := pterm.TableData{
			{"Field", "Value"},
			{"name", cfg.Name},
			{"server_address", cfg.Address()},
			{"sni", cfg.ServerName()},
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		// Key material never leaves the keychain unmasked.
		fmt.Println(logging.Mask(string(raw)))
		return nil
	},
}

var credsForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove a stored bundle from the OS keychain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("open keychain", err))
		}
		if err := km.DeleteBundle(flagInst); err != nil {
			return fmt.Errorf("%s", logging.PresentError("delete bundle", err))
		}
		if st, err := profile.Load(); err == nil && st.ActiveInstance == flagInst {
			_ = profile.Clear()
		}
		pterm.Success.Println("bundle removed")
		return nil
	},
}

var credsUseCmd = &cobra.Command{
	Use:   "use INSTANCE",
	Short: "Select the default instance for future commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return fmt.Errorf("%s", logging.PresentError("open keychain", err))
		}
		if _, err := km.LoadBundle(args[0]); err != nil {
			return fmt.Errorf("no stored bundle for instance %q: run 'velocli creds import --instance %s' first", args[0], args[0])
		}
		if err := profile.Save(profile.State{ActiveInstance: args[0]}); err != nil {
			return err
		}
		pterm.Success.Printfln("active instance set to %q", args[0])
		return nil
	},
}

func init() {
	credsCmd.AddCommand(credsImportCmd, credsShowCmd, credsForgetCmd, credsUseCmd)
	rootCmd.AddCommand(credsCmd)
}
