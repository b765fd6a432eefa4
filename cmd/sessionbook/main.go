package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/susu3304/sessionbook/internal/api"
	"github.com/susu3304/sessionbook/internal/booking"
	"github.com/susu3304/sessionbook/internal/bot"
	"github.com/susu3304/sessionbook/internal/config"
	"github.com/susu3304/sessionbook/internal/db"
	"github.com/susu3304/sessionbook/internal/memstore"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		store     booking.Store
		directory booking.Directory
	)
	if cfg.DatabaseURL != "" {
		// Connect to database
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		// Run migrations
		if err := database.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store, directory = database, database
	} else {
		log.Println("DATABASE_URL not set, keeping sessions in memory")
		store, directory = memstore.New(), memstore.NewRegistry()
	}

	clock := booking.SystemClock{}
	engine := booking.NewEngine(store, directory, clock, cfg.Policy)

	// Start Discord bot
	if cfg.DiscordToken != "" {
		discordBot, err := bot.New(cfg.DiscordToken, engine, directory, clock, cfg.AnnounceChannelID)
		if err != nil {
			log.Fatalf("Failed to create discord bot: %v", err)
		}
		if err := discordBot.Start(ctx); err != nil {
			log.Fatalf("Failed to start discord bot: %v", err)
		}
		defer discordBot.Stop()
	} else {
		log.Println("DISCORD_TOKEN not set, discord bot disabled")
	}

	// Start API server
	apiServer := api.New(cfg, engine, directory)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
}
