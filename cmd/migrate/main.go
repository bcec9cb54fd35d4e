package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/galvanai/portal/internal/store"
)

// migrate prepares the postgres session backend. The sqlite backend migrates
// itself on open.
func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := store.MigratePostgres(ctx, pool)
	if err != nil {
		slog.Error("migration failed", "err", err)
		os.Exit(1)
	}
	for _, v := range applied {
		fmt.Printf("applied: %s\n", v)
	}
	fmt.Println("migrations complete")
}
