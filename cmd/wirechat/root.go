package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wirechat",
		Short:         "Realtime chat feed server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A missing .env is normal outside development.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(newServeCmd(), newTailCmd(), newSendCmd(), newSmokeCmd())
	return root
}
