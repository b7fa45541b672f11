package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendbot/internal/attendance"
	"attendbot/internal/bot"
	"attendbot/internal/config"
	"attendbot/internal/db"
	"attendbot/internal/gform"

	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting attendbot application...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Wire the submission pipeline: one gate and one form client for the
	// whole process, injected rather than ambient
	gate := attendance.NewGate(cfg.Attendance.FormMaxConcurrency, cfg.Attendance.StoreMaxConcurrency)
	forms := gform.New()
	marker := attendance.NewOrchestrator(database, database, gate, forms,
		time.Duration(cfg.Attendance.AttemptTimeoutSeconds)*time.Second)
	admin := attendance.NewConfigurator(database, forms,
		time.Duration(cfg.Attendance.ConfigureTimeoutSeconds)*time.Second)

	discordBot, err := bot.New(cfg, marker, admin)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		s := <-signals
		log.Printf("Received signal: %v", s)
		cancel()
	}()

	go func() {
		if err := discordBot.Start(ctx); err != nil {
			log.Printf("Error running bot: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	if err := discordBot.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}

	database.Close()
	log.Println("Application shutdown complete")
}
