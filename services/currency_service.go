package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
)

const exchangeRateAPIBase = "https://v6.exchangerate-api.com/v6"

type ExchangeRateResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// RateService converts wallet top-ups made in other currencies into USD.
// Rates are cached for ttl.
type RateService struct {
	apiKey  string
	baseURL string
	ttl     time.Duration
	client  *http.Client

	mu        sync.RWMutex
	rates     map[string]float64
	fetchedAt time.Time
}

func NewRateService(apiKey string, ttl time.Duration) *RateService {
	return &RateService{
		apiKey:  apiKey,
		baseURL: exchangeRateAPIBase,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *RateService) Rates(ctx context.Context) (map[string]float64, error) {
	s.mu.RLock()
	if s.rates != nil && time.Since(s.fetchedAt) < s.ttl {
		rates := s.rates
		s.mu.RUnlock()
		return rates, nil
	}
	s.mu.RUnlock()

	if s.apiKey == "" {
		return nil, fmt.Errorf("exchange rate API key not configured")
	}

	slog.Info("Fetching fresh exchange rates from API...")
	var data ExchangeRateResponse
	err := retry.Do(
		func() error { return s.fetch(ctx, &data) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange rates: %w", err)
	}

	s.mu.Lock()
	s.rates = data.ConversionRates
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	slog.Info("Successfully updated currency exchange rate cache.")
	return data.ConversionRates, nil
}

func (s *RateService) fetch(ctx context.Context, out *ExchangeRateResponse) error {
	url := fmt.Sprintf("%s/%s/latest/USD", s.baseURL, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	if out.Result != "success" {
		return fmt.Errorf("currency API returned an error")
	}
	return nil
}

// ToUSD converts amount given in currency to USD, rounded to cents.
func (s *RateService) ToUSD(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "USD" {
		return amount, nil
	}
	rates, err := s.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[currency]
	if !ok || rate <= 0 {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %s", ErrInvalidInput, currency)
	}
	return amount.Div(decimal.NewFromFloat(rate)).Round(2), nil
}
