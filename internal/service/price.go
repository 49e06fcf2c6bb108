package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"zentrading/internal/models"
)

// QuoteProvider supplies current market data for a ticker. Implementations
// may return quotes with unknown fields; callers must degrade rather than
// crash on missing prices.
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (models.Quote, error)
}

var ErrQuoteNotFound = errors.New("quote not found")

type cachedQuote struct {
	quote   models.Quote
	fetched time.Time
}

// YahooProvider fetches quotes from the Yahoo Finance v8 chart endpoint with
// a short TTL cache so the refresher and ad-hoc requests don't hammer the API.
type YahooProvider struct {
	cli     *http.Client
	log     *logrus.Logger
	ttl     time.Duration
	baseURL string

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewYahooProvider(log *logrus.Logger) *YahooProvider {
	return &YahooProvider{
		cli:     &http.Client{Timeout: 8 * time.Second},
		log:     log,
		ttl:     60 * time.Second,
		baseURL: "https://query2.finance.yahoo.com",
		cache:   make(map[string]cachedQuote),
	}
}

func (p *YahooProvider) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return models.Quote{}, ErrQuoteNotFound
	}

	p.mu.RLock()
	if c, ok := p.cache[ticker]; ok && time.Since(c.fetched) < p.ttl {
		p.mu.RUnlock()
		return c.quote, nil
	}
	p.mu.RUnlock()

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", p.baseURL, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("User-Agent", "zentrading/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return models.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("yahoo http %d", resp.StatusCode)
	}

	var raw struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					ChartPreviousClose float64 `json:"chartPreviousClose"`
					RegularMarketTime  int64   `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
			Error any `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Quote{}, err
	}
	if len(raw.Chart.Result) == 0 {
		return models.Quote{}, ErrQuoteNotFound
	}

	meta := raw.Chart.Result[0].Meta
	q := models.Quote{Ticker: ticker, AsOf: time.Unix(meta.RegularMarketTime, 0).UTC()}
	if meta.RegularMarketPrice > 0 {
		q.CurrentPrice = decimal.NewNullDecimal(decimal.NewFromFloat(meta.RegularMarketPrice))
	}
	if meta.ChartPreviousClose > 0 {
		q.PreviousClose = decimal.NewNullDecimal(decimal.NewFromFloat(meta.ChartPreviousClose))
	}
	// The chart meta carries no explicit market state; a quote updated within
	// the last few minutes means regular trading is in progress.
	if meta.RegularMarketTime > 0 && time.Since(q.AsOf) < 15*time.Minute {
		q.MarketState = models.MarketStateRegular
	} else {
		q.MarketState = "CLOSED"
	}

	p.mu.Lock()
	p.cache[ticker] = cachedQuote{quote: q, fetched: time.Now()}
	p.mu.Unlock()

	return q, nil
}
