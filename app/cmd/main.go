package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ragagent/app/server"
	"ragagent/config"
	"ragagent/types"
)

func init() {
	loadEnvVariables()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, types.ErrConfiguration) {
			log.Fatalf("configuration error: %v", err)
		}
		log.Fatal("error to load config: ", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatal("error to start agent: ", err)
	}

	go func() {
		if err := s.Run(); err != nil {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
}
