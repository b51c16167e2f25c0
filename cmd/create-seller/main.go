package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/repository/postgres"
)

func main() {
	nameFlag := flag.String("name", "", "Seller shop name")
	emailFlag := flag.String("email", "", "Seller contact email")
	apiKeyFlag := flag.String("api-key", "", "API key for this seller; generated when empty (save it; it cannot be retrieved later)")
	flag.Parse()

	sellerName := strings.TrimSpace(*nameFlag)
	if sellerName == "" && flag.NArg() >= 1 {
		sellerName = strings.TrimSpace(flag.Arg(0))
	}
	if sellerName == "" {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/create-seller --name \"Shop Name\" [--email owner@example.com] [--api-key key]")
		fmt.Println("Example: go run ./cmd/create-seller --name \"Kickside Kicks\" --email kicks@example.com")
		os.Exit(1)
	}

	// Trim so the stored hash matches what the server receives (AuthMiddleware trims the Bearer token)
	apiKey := strings.TrimSpace(*apiKeyFlag)
	if apiKey == "" {
		generated, err := generateAPIKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate API key: %v\n", err)
			os.Exit(1)
		}
		apiKey = generated
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Hash the API key (bcrypt for verification; SHA256 hex for fast lookup)
	apiKeyHash, err := middleware.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(db, logger)

	seller := &domain.Seller{
		Name:         sellerName,
		Email:        strings.TrimSpace(*emailFlag),
		APIKeyHash:   apiKeyHash,
		APIKeyLookup: repository.APIKeyLookup(apiKey),
		IsActive:     true,
	}
	if err := repos.Seller.Create(context.Background(), seller); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create seller: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seller created successfully!\n\n")
	fmt.Printf("Seller ID: %s\n", seller.ID.String())
	fmt.Printf("Seller Name: %s\n", seller.Name)
	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("\nIMPORTANT: Save this API key securely! You won't be able to see it again.\n")
	fmt.Printf("\nUse this API key in the Authorization header:\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "kss_" + hex.EncodeToString(b), nil
}
