package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vrp/internal/api"
	"vrp/internal/buildinfo"
	"vrp/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (defaults to $VRP_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start webhook worker
	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	go srvDeps.SweepLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s version=%s workers=%d auth=%s", addr, buildinfo.Version, cfg.Jobs.Workers, cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
	}
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.SolveTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	worker.Shutdown()
	if err := srvDeps.Shutdown(shutdownCtx); err != nil {
		log.Printf("job pool shutdown: %v", err)
	}
	log.Printf("stopped")
}
