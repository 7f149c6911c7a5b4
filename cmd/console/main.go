package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bookstore-console/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	a, err := app.New()
	if err != nil {
		log.Fatalf("failed to build console: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := a.Run(ctx); err != nil {
			log.Fatalf("console failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	a.Shutdown(shutdownCtx)
}
