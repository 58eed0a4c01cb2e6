package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "shares-sniper",
	Short: "Bonding-curve shares sniper bot",
	Long: `Shares sniper bot that watches a bonding-curve contract for token
creations, scores each creator through the room and profile APIs, and
buys into tokens whose creators clear the follower or verification bar.

The bot subscribes to Trade events over WebSocket, keeps a durable ledger
of every position it holds, and exits a holding the moment the creator
sells their own shares. All buys and sells go through a single in-flight
transaction slot so nonces never race.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
