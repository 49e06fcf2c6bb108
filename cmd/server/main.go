package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"zentrading/internal/database"
	"zentrading/internal/handlers"
	"zentrading/internal/memstore"
	"zentrading/internal/models"
	"zentrading/internal/portfolio"
	"zentrading/internal/service"
	"zentrading/internal/zodiac"
)

var seedInstruments = []models.Instrument{
	{Ticker: "AAPL", CompanyName: "Apple Inc.", ZodiacSign: zodiac.Aries},
	{Ticker: "MSFT", CompanyName: "Microsoft Corporation", ZodiacSign: zodiac.Aries},
	{Ticker: "GOOGL", CompanyName: "Alphabet Inc.", ZodiacSign: zodiac.Virgo},
	{Ticker: "AMZN", CompanyName: "Amazon.com Inc.", ZodiacSign: zodiac.Cancer},
	{Ticker: "TSLA", CompanyName: "Tesla Inc.", ZodiacSign: zodiac.Cancer},
	{Ticker: "NVDA", CompanyName: "NVIDIA Corporation", ZodiacSign: zodiac.Aries},
	{Ticker: "META", CompanyName: "Meta Platforms Inc.", ZodiacSign: zodiac.Aquarius},
	{Ticker: "NFLX", CompanyName: "Netflix Inc.", ZodiacSign: zodiac.Virgo},
}

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Load .env file if it exists, but don't fail if it's missing (e.g. in production)
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store       portfolio.Store
		instruments portfolio.InstrumentStore
		prefs       portfolio.PreferenceStore
		users       portfolio.UserStore
		matrix      *zodiac.Matrix
	)

	if dsn := os.Getenv("POSTGRES_URL"); dsn != "" {
		db, err := initDB(dsn)
		if err != nil {
			logger.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()

		repo := database.New(db, logger)
		store, instruments, prefs, users = repo, repo, repo, repo
		matrix = loadMatrix(ctx, repo, logger)
	} else {
		logger.Warn("POSTGRES_URL is not set; running with the in-memory store")
		mem := memstore.New()
		store, instruments, prefs, users = mem, mem, mem, mem
		matrix = zodiac.DefaultMatrix()
	}

	for _, inst := range seedInstruments {
		if err := instruments.UpsertInstrument(ctx, inst); err != nil {
			logger.Warnf("seed instrument %s: %v", inst.Ticker, err)
		}
	}

	quotes := service.NewYahooProvider(logger)
	refresher := service.NewRefresher(instruments, quotes, logger)

	interval := 3600
	if v := os.Getenv("PRICE_UPDATE_INTERVAL"); v != "" {
		if iv, err := strconv.Atoi(v); err == nil && iv > 0 {
			interval = iv
		}
	}
	sched := cron.New()
	if err := refresher.Schedule(sched, time.Duration(interval)*time.Second); err != nil {
		logger.Fatalf("schedule price refresh: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	svc := portfolio.NewService(store, instruments, prefs, users, matrix, logger)
	h := handlers.NewHandler(svc, users, store, instruments, prefs, quotes, logger)

	rg := gin.Default()
	rg.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	h.Register(rg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Infof("server starting on :%s", port)
	rg.Run(fmt.Sprintf(":" + port))
}

// loadMatrix reads the stored compatibility table, seeding the generated
// default table on first boot.
func loadMatrix(ctx context.Context, repo *database.Repo, logger *logrus.Logger) *zodiac.Matrix {
	entries, err := repo.MatrixEntries(ctx)
	if err != nil {
		logger.Warnf("load zodiac matching failed, using defaults: %v", err)
		return zodiac.DefaultMatrix()
	}
	if len(entries) == 0 {
		entries = zodiac.DefaultEntries()
		if err := repo.ReplaceMatrix(ctx, entries); err != nil {
			logger.Warnf("seed zodiac matching failed: %v", err)
		}
	}
	return zodiac.NewMatrix(entries)
}

func initDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
