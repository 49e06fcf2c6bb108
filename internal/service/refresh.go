package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"zentrading/internal/models"
	"zentrading/internal/portfolio"
)

// gateTicker is the broad-market symbol whose state decides whether a refresh
// run proceeds.
const gateTicker = "SPY"

// Refresher periodically pulls quotes for every instrument and writes them to
// the store. It runs on its own schedule, fully decoupled from transaction
// and scoring reads, which tolerate prices stale by up to one interval.
type Refresher struct {
	instruments portfolio.InstrumentStore
	quotes      QuoteProvider
	log         *logrus.Logger
}

func NewRefresher(instruments portfolio.InstrumentStore, quotes QuoteProvider, log *logrus.Logger) *Refresher {
	return &Refresher{instruments: instruments, quotes: quotes, log: log}
}

// Schedule registers the refresher with a cron runner at a fixed interval.
func (r *Refresher) Schedule(c *cron.Cron, every time.Duration) error {
	_, err := c.AddFunc(fmt.Sprintf("@every %s", every), func() {
		r.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	r.log.Infof("price refresh scheduled every %s", every)
	return nil
}

// RunOnce refreshes every instrument's quote. When the market is closed the
// run is skipped; individual fetch failures are logged and skipped so one bad
// ticker never blocks the rest.
func (r *Refresher) RunOnce(ctx context.Context) {
	if gate, err := r.quotes.GetQuote(ctx, gateTicker); err != nil {
		r.log.Warnf("market state check failed, refreshing anyway: %v", err)
	} else if gate.MarketState != models.MarketStateRegular {
		r.log.Infof("market is %s, skipping price refresh", gate.MarketState)
		return
	}

	instruments, err := r.instruments.Instruments(ctx)
	if err != nil {
		r.log.Errorf("list instruments: %v", err)
		return
	}

	updated, failed := 0, 0
	for _, inst := range instruments {
		quote, err := r.quotes.GetQuote(ctx, inst.Ticker)
		if err != nil {
			failed++
			r.log.Warnf("fetch quote %s: %v", inst.Ticker, err)
			continue
		}
		if err := r.instruments.UpdateQuote(ctx, inst.Ticker, quote); err != nil {
			failed++
			r.log.Warnf("store quote %s: %v", inst.Ticker, err)
			continue
		}
		updated++
	}
	r.log.Infof("price refresh complete: updated=%d failed=%d", updated, failed)
}
