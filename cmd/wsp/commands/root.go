// Package commands implements the wsp CLI's subcommands: init, relay,
// chat, fingerprint, and safety-number, following the teacher's
// cmd/ciphera/commands package-per-binary layout with one file per
// subcommand.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wsp/internal/logging"
	"wsp/internal/services/identity"
	"wsp/internal/store"
)

var (
	home       string
	passphrase string
	relayURL   string
	verbose    bool
)

// Execute builds and runs the root wsp command.
func Execute() error {
	root := &cobra.Command{
		Use:   "wsp",
		Short: "Zero-knowledge end-to-end encrypted terminal chat",
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default $HOME/.wsp)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local identity")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay URL, e.g. ws://127.0.0.1:8443")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(initCmd(), relayCmd(), chatCmd(), fingerprintCmd(), safetyNumberCmd())
	return root.Execute()
}

// resolveHome returns the configured --home, defaulting to $HOME/.wsp and
// creating it if necessary.
func resolveHome() (string, error) {
	if home != "" {
		return home, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	home = filepath.Join(dir, ".wsp")
	return home, nil
}

// newLogger builds the process logger at debug or info level depending on
// --verbose.
func newLogger() (*zap.Logger, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logging.New(level)
}

// loadIdentityService returns an identity service backed by the resolved
// home directory's identity file, without loading the identity itself.
func loadIdentityService() (*identity.Service, error) {
	h, err := resolveHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(h, 0o700); err != nil {
		return nil, fmt.Errorf("create home directory: %w", err)
	}
	idStore := store.NewIdentityStore(filepath.Join(h, "identity"))
	return identity.New(idStore), nil
}

// requirePassphrase fails fast with a clear message rather than letting a
// missing passphrase surface as an opaque decrypt error.
func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
