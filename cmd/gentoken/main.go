// Command gentoken prints an API bearer token for an existing admin user,
// signed with the key the server derives from JWT_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/storage"
)

func main() {
	username := flag.String("user", "admin", "username to issue the token for")
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	if err := run(*configPath, *username); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, username string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	user, err := repo.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("load user %q: %w", username, err)
	}

	key, err := auth.DeriveAPIJWTKey([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	token, err := auth.NewJWTManager(key, cfg.Auth.JWTExpiry, cfg.Server.BaseURL).Generate(*user)
	if err != nil {
		return err
	}

	fmt.Println("JWT Token:")
	fmt.Println(token)
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' %s/api/v1/posts\n", token, cfg.Server.BaseURL)
	return nil
}
