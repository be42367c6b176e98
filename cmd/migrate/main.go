package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [up|drop|seed]")
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS places (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			business_id UUID NOT NULL REFERENCES businesses(id),
			name TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			total_views BIGINT NOT NULL DEFAULT 0,
			analytics_last_updated TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS place_views (
			id UUID PRIMARY KEY,
			place_id UUID NOT NULL REFERENCES places(id),
			user_id UUID,
			session_id UUID NOT NULL,
			source TEXT,
			referrer TEXT,
			city TEXT,
			region TEXT,
			device_type TEXT,
			time_on_page INTEGER,
			viewed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_place_views_place_viewed
			ON place_views (place_id, viewed_at)`,
		`CREATE TABLE IF NOT EXISTS daily_analytics (
			id UUID PRIMARY KEY,
			place_id UUID NOT NULL REFERENCES places(id),
			date DATE NOT NULL,
			total_views INTEGER NOT NULL DEFAULT 0,
			unique_views INTEGER NOT NULL DEFAULT 0,
			views_by_source JSONB NOT NULL DEFAULT '{}',
			views_by_city JSONB NOT NULL DEFAULT '[]',
			avg_time_on_page DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT daily_analytics_place_date_key UNIQUE (place_id, date)
		)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	statements := []string{
		`DROP TABLE IF EXISTS daily_analytics`,
		`DROP TABLE IF EXISTS place_views`,
		`DROP TABLE IF EXISTS places`,
		`DROP TABLE IF EXISTS businesses`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		WITH b AS (
			INSERT INTO businesses (user_id, name)
			VALUES (gen_random_uuid(), 'Woofs Welcome Demo')
			RETURNING id
		)
		INSERT INTO places (business_id, name, city)
		SELECT b.id, p.name, p.city
		FROM b, (VALUES
			('Takapuna Dog Beach', 'Auckland'),
			('Queenstown Gardens', 'Queenstown'),
			('Oriental Bay', 'Wellington')
		) AS p(name, city)
	`)
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	return nil
}
