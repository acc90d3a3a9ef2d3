package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibedocs/internal/gateway/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	log.Println("Shutting down gateway...")

	// Open streams are cut after the grace period; clients resume from
	// their checkpoint.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		log.Fatalf("Gateway forced to shutdown: %v", err)
	}

	log.Println("Gateway exiting")
}
