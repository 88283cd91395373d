package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomasstrnad1997/sweeper/config"
	"github.com/tomasstrnad1997/sweeper/db"
	"github.com/tomasstrnad1997/sweeper/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.NewLogger()

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer store.Close()
	if err := store.InitializeTables(); err != nil {
		log.WithError(err).Fatal("Failed to create tables")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(store, cfg, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.Addr).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Shutdown did not finish cleanly")
	}
}
