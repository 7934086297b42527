// services/price_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"bounty-marketplace/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const priceCacheTTL = 5 * time.Minute

// PriceService quotes the reward token's USD price from CoinGecko
// behind an explicit cache: {value, fetchedAt}, refreshed lazily on
// read once the TTL lapses. On refresh failure the previous value is
// kept and served; readers tolerate brief staleness.
type PriceService struct {
	TokenID string

	mu         sync.Mutex
	value      decimal.Decimal
	fetchedAt  time.Time
	refreshing bool

	ttl   time.Duration
	fetch func(ctx context.Context, tokenID string) (decimal.Decimal, error)
	now   func() time.Time
}

func NewPriceService(tokenID string) *PriceService {
	return &PriceService{
		TokenID: tokenID,
		ttl:     priceCacheTTL,
		fetch:   fetchCoinGeckoPrice,
		now:     time.Now,
	}
}

// getPrice returns the cached USD price, refreshing when stale. The
// lock is never held across the network fetch: while one reader
// refreshes, others keep serving the stale quote.
func (s *PriceService) getPrice(ctx context.Context) (decimal.Decimal, time.Time, error) {
	s.mu.Lock()
	if !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) <= s.ttl {
		value, fetchedAt := s.value, s.fetchedAt
		s.mu.Unlock()
		return value, fetchedAt, nil
	}
	if s.refreshing && !s.fetchedAt.IsZero() {
		value, fetchedAt := s.value, s.fetchedAt
		s.mu.Unlock()
		return value, fetchedAt, nil
	}
	s.refreshing = true
	staleValue, staleAt := s.value, s.fetchedAt
	s.mu.Unlock()

	fresh, err := s.fetch(ctx, s.TokenID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if err != nil {
		if !staleAt.IsZero() {
			log.Printf("[PRICE] ⚠️ Refresh failed, serving stale quote from %v: %v", staleAt, err)
			return staleValue, staleAt, nil
		}
		return decimal.Zero, time.Time{}, err
	}

	s.value = fresh
	s.fetchedAt = s.now()
	return s.value, s.fetchedAt, nil
}

func fetchCoinGeckoPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=usd", tokenID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price feed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price feed returned %d: %s", resp.StatusCode, string(body))
	}

	// {"<token>":{"usd":1.234}}
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price feed response: %w", err)
	}
	quote, ok := payload[tokenID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("price feed response missing %s/usd", tokenID)
	}
	return decimal.NewFromString(quote.String())
}

// GetTokenPrice serves the cached quote. An optional ?amount= converts
// a token-denominated reward into USD.
func (s *PriceService) GetTokenPrice(c *fiber.Ctx) error {
	price, fetchedAt, err := s.getPrice(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "price feed unavailable"})
	}

	resp := fiber.Map{
		"token":      s.TokenID,
		"usd_price":  price,
		"fetched_at": fetchedAt,
	}
	if raw := c.Query("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
		}
		resp["amount_usd"] = amount.Mul(price)
	}
	return c.JSON(resp)
}
