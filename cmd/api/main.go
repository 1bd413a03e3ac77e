package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/jaskrrish/Go-BB84/internal/config"
	"github.com/jaskrrish/Go-BB84/internal/handlers"
	"github.com/jaskrrish/Go-BB84/internal/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

var configFile = flag.String("config", "", "Path to a YAML configuration file. Optional.")

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("Failed to load configuration: %v", err)
	}

	keys, err := cfg.Store.Open()
	if err != nil {
		glog.Exitf("Failed to open key store: %v", err)
	}
	defer keys.Close()

	// Sessions draw from the system entropy source
	sessionManager := qkd.NewSessionManager(quantum.CryptoSource{}, keys, cfg.Protocol.ManagerOptions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessionManager.RunCleanup(ctx, cfg.Server.CleanupInterval.Duration)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.NewQKDHandler(sessionManager))

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.LoggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("Server shutdown: %v", err)
		}
	}()

	glog.Infof("Server starting on port %s (store %s, backend %s)", cfg.Server.Port, cfg.Store.Driver, cfg.Protocol.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		glog.Errorf("Server failed: %v", err)
		return
	}
	glog.Info("Server stopped")
}
