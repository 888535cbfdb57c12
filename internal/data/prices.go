package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// PriceSource provides the last-traded price for a ticker. Lookups take a
// context so the engine can bound them with a timeout.
type PriceSource interface {
	LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// FilePriceSource serves prices from a JSON file of ticker -> price.
type FilePriceSource struct {
	mu     sync.RWMutex
	logger *zap.Logger
	prices map[string]decimal.Decimal
}

// NewFilePriceSource loads a price table from disk.
func NewFilePriceSource(logger *zap.Logger, path string) (*FilePriceSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price table: %w", err)
	}

	var prices map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("failed to parse price table: %w", err)
	}

	return &FilePriceSource{logger: logger, prices: prices}, nil
}

// LastPrice returns the recorded price for the ticker.
func (fps *FilePriceSource) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	fps.mu.RLock()
	defer fps.mu.RUnlock()

	price, ok := fps.prices[ticker]
	if !ok {
		return decimal.Zero, &types.PriceLookupFailure{
			Ticker: ticker,
			Err:    fmt.Errorf("ticker not in price table"),
		}
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &types.PriceLookupFailure{
			Ticker: ticker,
			Err:    fmt.Errorf("non-positive price %s", price),
		}
	}
	return price, nil
}

// StaticPriceSource serves a fixed in-memory price map. Used in tests and as
// a stand-in when no live source is configured.
type StaticPriceSource struct {
	Prices map[string]decimal.Decimal
}

// LastPrice returns the configured price for the ticker.
func (sps *StaticPriceSource) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	price, ok := sps.Prices[ticker]
	if !ok {
		return decimal.Zero, &types.PriceLookupFailure{
			Ticker: ticker,
			Err:    fmt.Errorf("no price configured"),
		}
	}
	return price, nil
}

// PricedLookup is the outcome of one bounded price lookup: the price that
// will be used for sizing, and whether it is the fallback sentinel rather
// than a real quote.
type PricedLookup struct {
	Price    decimal.Decimal
	Unpriced bool
}

// LookupAll fetches prices for all tickers concurrently, each bounded by
// timeout, substituting the fallback sentinel on failure. One ticker's
// failure never blocks or fails the others; every ticker gets an entry.
func LookupAll(
	ctx context.Context,
	logger *zap.Logger,
	source PriceSource,
	tickers []string,
	defaults types.EngineDefaults,
) map[string]PricedLookup {
	out := make(map[string]PricedLookup, len(tickers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			lookupCtx, cancel := context.WithTimeout(ctx, defaults.PriceTimeout)
			defer cancel()

			lookup := PricedLookup{Price: defaults.FallbackPrice, Unpriced: true}
			if source != nil {
				if price, err := source.LastPrice(lookupCtx, ticker); err == nil {
					lookup = PricedLookup{Price: price}
				} else {
					logger.Warn("price lookup failed, using fallback sentinel",
						zap.String("ticker", ticker),
						zap.String("fallback", defaults.FallbackPrice.String()),
						zap.Error(err),
					)
				}
			}

			mu.Lock()
			out[ticker] = lookup
			mu.Unlock()
		}(ticker)
	}

	wg.Wait()
	return out
}
