package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/RediSearch/suggestd/logging"
	"github.com/RediSearch/suggestd/rest"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the suggest HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New("serve")

	eng, err := selectEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()
	svc, dispatcher := newService(cfg, eng)
	defer dispatcher.Close()

	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	rest.NewHandler(svc, maxBody, logging.New("")).RegisterRoutes(mux)
	srv := &http.Server{Addr: cfg.Server.Listen, Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen, "engine", cfg.Engine.Type,
			"pool", cfg.Pool.Name, "queue", cfg.Pool.QueueSize)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
