package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/briefq/internal/auth"
	"github.com/mistakeknot/briefq/internal/config"
	"github.com/mistakeknot/briefq/internal/core"
	httpapi "github.com/mistakeknot/briefq/internal/http"
	"github.com/mistakeknot/briefq/internal/queue"
	"github.com/mistakeknot/briefq/internal/server"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage/sqlite"
	"github.com/mistakeknot/briefq/internal/ws"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the briefq daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath, cfg.BusyTimeoutMS)
	if err != nil {
		return err
	}
	defer store.Close()
	resilient := sqlite.NewResilient(store)

	hub := ws.NewHub()
	q := queue.New(resilient, statusfile.NewWriter(cfg.StatusDir), hub, cfg.HeartbeatTimeout())

	ring, err := auth.LoadKeyring(cfg.KeysFile)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.NewService(q), hub.Handler(), auth.Middleware(ring))
	srv, err := server.New(server.Config{
		Addr:       cfg.Addr,
		SocketPath: cfg.SocketPath,
		Handler:    router,
	})
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	// The sweeper is a safety net for orphaned work on dates no worker is
	// polling; claim-time reclamation stays the primary mechanism.
	if cfg.SweepInterval() > 0 {
		sweeper := sqlite.NewSweeper(resilient, cfg.SweepInterval(), cfg.HeartbeatTimeout(),
			func(ctx context.Context, reclaimed []core.Message) {
				q.RefreshDates(ctx, reclaimed)
			})
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	log.Printf("briefq listening on %s (db %s)", srv.Addr(), cfg.DBPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
