// Package main implements memoctl, the command-line client for memoforge.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL of the memoforge daemon
	serverURL string
	// token is the API bearer token, if the daemon requires one
	token string
	// version information
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memoctl",
		Short: "Generate and browse memos",
		Long: `memoctl talks to a memoforge daemon: it streams memo generation section by
section and lists or shows saved memos.

With --offline, generation runs in-process against the built-in demo model,
no daemon needed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultToken := os.Getenv("MEMOFORGE_TOKEN")
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "memoforge server URL")
	root.PersistentFlags().StringVar(&token, "token", defaultToken, "API token (default $MEMOFORGE_TOKEN)")

	root.AddCommand(newGenerateCmd(), newListCmd(), newShowCmd(), newHealthCmd())
	return root
}
