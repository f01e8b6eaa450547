// Package main implements a standalone seed script that populates the
// ordering service's products table with stock for local development. The
// settlement worker decrements these rows; without seeded stock every order
// fails settlement with insufficient stock.
//
// Run: go run ./scripts/seed
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type product struct {
	ID       string
	Name     string
	Quantity int
}

func catalog() []product {
	names := []string{
		"Laptop Pro 14", "Laptop Air 13", "Wireless Mouse", "Mechanical Keyboard",
		"USB-C Hub", "27in Monitor", "Webcam HD", "Noise Cancelling Headset",
		"Portable SSD 1TB", "Phone Stand", "Desk Lamp", "Ergonomic Chair",
		"Standing Desk", "Cable Organizer", "Laptop Sleeve", "Power Bank 20000",
		"Bluetooth Speaker", "Smart Plug", "HDMI Cable 2m", "Docking Station",
	}

	products := make([]product, 0, len(names))
	for i, name := range names {
		products = append(products, product{
			ID:       fmt.Sprintf("prod-%03d", i+1),
			Name:     name,
			Quantity: 10 + rand.Intn(490),
		})
	}
	return products
}

func main() {
	dsn := getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("POSTGRES_USER", "webnova"),
		getEnv("POSTGRES_PASSWORD", "webnova_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("ORDERS_DB_NAME", "webnova"),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	seeded := 0
	for _, p := range catalog() {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				quantity = EXCLUDED.quantity,
				updated_at = NOW()`,
			p.ID, p.Name, p.Quantity,
		)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.ID, err)
		}
		seeded++
	}

	log.Printf("seeded %d products", seeded)
}
