package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"aviator/internal/models"
	"aviator/utils"

	"github.com/shopspring/decimal"
)

// RateSource resolves a currency into its USD exchange rate.
type RateSource interface {
	USDRate(ctx context.Context, currency string) decimal.Decimal
}

// Fallback constants used when the ticker is unreachable or the cached
// value went stale.
var fallbackRates = map[string]float64{
	models.CurrencySOL:  100.0,
	models.CurrencyUSDT: 1.0,
}

const tickerURL = "https://api.binance.com/api/v3/ticker/price?symbol=SOLUSDT"

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Rates fetches spot prices and caches them for a freshness window.
type Rates struct {
	httpClient *http.Client
	logger     *utils.Logger
	ttl        time.Duration
	tickerURL  string

	mu    sync.Mutex
	cache map[string]cachedRate
}

func NewRates(logger *utils.Logger, ttl time.Duration) *Rates {
	return &Rates{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		ttl:        ttl,
		tickerURL:  tickerURL,
		cache:      make(map[string]cachedRate),
	}
}

// USDRate returns the current USD rate for the currency. It never fails:
// a fetch error or stale cache falls back to the fixed constants, with a
// warning, so withdrawal processing keeps moving.
func (r *Rates) USDRate(ctx context.Context, currency string) decimal.Decimal {
	// USDT is treated as pegged; no ticker consulted.
	if currency == models.CurrencyUSDT {
		return decimal.NewFromFloat(fallbackRates[models.CurrencyUSDT])
	}

	r.mu.Lock()
	cached, ok := r.cache[currency]
	r.mu.Unlock()

	if ok && time.Since(cached.fetchedAt) < r.ttl {
		return cached.rate
	}

	rate, err := r.fetchSOLRate(ctx)
	if err != nil {
		r.logger.Warnf("Failed to fetch %s/USD rate, using fallback: %v", currency, err)
		if ok {
			return cached.rate
		}
		return decimal.NewFromFloat(fallbackRates[models.CurrencySOL])
	}

	r.mu.Lock()
	r.cache[currency] = cachedRate{rate: rate, fetchedAt: time.Now()}
	r.mu.Unlock()

	return rate
}

func (r *Rates) fetchSOLRate(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tickerURL, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("bad response from ticker: %s", string(body))
	}

	var data struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse ticker response: %w", err)
	}

	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil || price <= 0 {
		return decimal.Zero, fmt.Errorf("invalid price %q", data.Price)
	}

	return decimal.NewFromFloat(price), nil
}
