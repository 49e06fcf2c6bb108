// Seed applies the schema and populates reference data: the tradable
// instrument list and the full zodiac compatibility table.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"zentrading/internal/database"
	"zentrading/internal/models"
	"zentrading/internal/zodiac"
)

var instruments = []models.Instrument{
	{Ticker: "AAPL", CompanyName: "Apple Inc.", ZodiacSign: zodiac.Aries, Description: "Consumer electronics and services"},
	{Ticker: "MSFT", CompanyName: "Microsoft Corporation", ZodiacSign: zodiac.Aries, Description: "Software and cloud computing"},
	{Ticker: "GOOGL", CompanyName: "Alphabet Inc.", ZodiacSign: zodiac.Virgo, Description: "Search and advertising"},
	{Ticker: "AMZN", CompanyName: "Amazon.com Inc.", ZodiacSign: zodiac.Cancer, Description: "E-commerce and cloud"},
	{Ticker: "TSLA", CompanyName: "Tesla Inc.", ZodiacSign: zodiac.Cancer, Description: "Electric vehicles and energy"},
	{Ticker: "NVDA", CompanyName: "NVIDIA Corporation", ZodiacSign: zodiac.Aries, Description: "Graphics and AI accelerators"},
	{Ticker: "META", CompanyName: "Meta Platforms Inc.", ZodiacSign: zodiac.Aquarius, Description: "Social platforms"},
	{Ticker: "NFLX", CompanyName: "Netflix Inc.", ZodiacSign: zodiac.Virgo, Description: "Streaming entertainment"},
	{Ticker: "DIS", CompanyName: "The Walt Disney Company", ZodiacSign: zodiac.Scorpio, Description: "Media and parks"},
	{Ticker: "KO", CompanyName: "The Coca-Cola Company", ZodiacSign: zodiac.Taurus, Description: "Beverages"},
	{Ticker: "JPM", CompanyName: "JPMorgan Chase & Co.", ZodiacSign: zodiac.Capricorn, Description: "Banking"},
	{Ticker: "V", CompanyName: "Visa Inc.", ZodiacSign: zodiac.Libra, Description: "Payments"},
}

func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	schema, err := os.ReadFile("migrations/0001_init.up.sql")
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	ctx := context.Background()
	repo := database.New(db, logrus.New())

	for _, inst := range instruments {
		if err := repo.UpsertInstrument(ctx, inst); err != nil {
			fmt.Printf("Warning: could not upsert %s: %v\n", inst.Ticker, err)
			continue
		}
		fmt.Printf("Seeded %s (%s, %s)\n", inst.Ticker, inst.CompanyName, inst.ZodiacSign)
	}

	entries := zodiac.DefaultEntries()
	if err := repo.ReplaceMatrix(ctx, entries); err != nil {
		log.Fatalf("populate zodiac matching: %v", err)
	}
	fmt.Printf("Populated %d zodiac matching records\n", len(entries))
}
