package main

import (
	"os"

	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aspectctl",
		Short:         "Aspect-based sentiment analysis for customer feedback",
		SilenceUsage:  true,
	}
	root.AddCommand(newAnalyzeCmd())
	return root
}

func main() {
	config.LoadEnv(config.AppEnv())
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
