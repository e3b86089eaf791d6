package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/briefq/internal/config"
)

var (
	flagConfig string
	flagServer string
	flagAPIKey string
)

func main() {
	root := &cobra.Command{
		Use:           "briefq",
		Short:         "briefq is a persistent work queue for daily briefing replies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: $BRIEFQ_CONFIG or the data dir)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "server base URL (default: from config addr)")
	root.PersistentFlags().StringVar(&flagAPIKey, "key", "", "API key for remote servers")

	root.AddCommand(
		newServeCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newAgentsCmd(),
		newWorkerCmd(),
		newWatchCmd(),
		newKeysCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "briefq:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}

// serverURL picks the API base URL: explicit flag first, then the config's
// listen address.
func serverURL(cfg config.Config) string {
	if flagServer != "" {
		return flagServer
	}
	return "http://" + cfg.Addr
}
