package db

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var (
	newPool = pgxpool.New
	pingDB  = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

func InitPostgres(ctx context.Context) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("DATABASE_URL not set, skipping Postgres initialization")
		return
	}

	pool, err := newPool(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to create Postgres pool: %v", err)
	}
	if err := pingDB(ctx, pool); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}

	Pool = pool
	log.Println("Connected to Postgres")
}
