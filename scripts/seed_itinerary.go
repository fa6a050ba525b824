package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	database "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/db"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/config"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/customization"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/generation"
	generativeAI "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/generative_ai"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

var (
	destination = flag.String("destination", "Hanoi", "trip destination")
	days        = flag.Int("days", 3, "trip length in days")
	budget      = flag.Int64("budget", 0, "total budget in VND, 0 for none")
	interests   = flag.String("interests", "", "comma separated interests")
)

// Generates one itinerary with the configured model and stores it in postgres,
// for local development against store.driver=postgres.
func main() {
	flag.Parse()
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		log.Fatalf("Failed to generate database config: %v", err)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Generation)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	req := types.GenerateItineraryRequest{Destination: *destination, DurationDays: *days, Budget: *budget}
	if *interests != "" {
		for _, i := range strings.Split(*interests, ",") {
			req.Interests = append(req.Interests, strings.TrimSpace(i))
		}
	}

	svc := generation.NewServiceImpl(aiClient, customization.NewRepositoryImpl(pool, logger), logger)
	resp, err := svc.GenerateItinerary(ctx, req)
	if err != nil {
		log.Fatalf("Failed to generate itinerary: %v", err)
	}
	logger.Info("Seeded itinerary",
		slog.String("ai_generated_id", resp.Itinerary.AIGeneratedID),
		slog.Int("days", resp.Totals.Days),
		slog.Int64("total_cost", resp.Totals.Cost))
}
