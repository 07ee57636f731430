package main

import (
	"context"
	"log"
	"time"

	"schoolhub-server-go/auth"
	"schoolhub-server-go/config"
	"schoolhub-server-go/db"
	"schoolhub-server-go/handlers"
)

func main() {
	cfg := config.Load("")

	// Initialize Redis Client
	redisClient, err := db.InitializeRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}

	// Create Redis Service
	redisService := db.NewRedisService(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bootstrap(ctx, cfg, redisService)
	cancel()

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Invalid token configuration: %v", err)
	}

	// Create API Handler (injecting the service)
	apiHandler := handlers.NewAPIHandler(redisService, signer, cfg)
	router := handlers.SetupRouter(apiHandler)

	log.Printf("Starting server on %s", cfg.Addr())
	if err := router.Run(cfg.Addr()); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// bootstrap makes sure an admin account exists and seeds demo data into an empty store
func bootstrap(ctx context.Context, cfg *config.Config, s *db.RedisService) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Invalid ADMIN_PASSWORD: %v", err)
	}
	admin, err := s.EnsureAdmin(ctx, cfg.AdminUsername, hash)
	if err != nil {
		log.Fatalf("Could not create the admin account: %v", err)
	}
	log.Printf("Admin account: %s", admin.Username)

	if !cfg.SeedDemo {
		return
	}
	seeded, err := s.SeedIfEmpty(ctx)
	if err != nil {
		log.Printf("Warning: could not seed demo data: %v", err)
		return
	}
	if seeded {
		log.Println("Store was empty, demo classes, teachers and students added.")
	} else {
		log.Println("Existing data found, skipping demo data.")
	}
}
