// Package currency converts amounts between currency codes using a remote
// exchange-rate table.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single rate-table fetch.
const DefaultTimeout = 10 * time.Second

// Converter converts an amount from one currency to another.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// RateTable maps a currency code to its rate against the table's base.
type RateTable map[string]decimal.Decimal

// HTTPConverter fetches rate tables from GET {baseURL}{FROM}, which answers
// with {"rates": {"EUR": 0.92, ...}}.
type HTTPConverter struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache[RateTable]
	group   singleflight.Group
}

// Option customizes an HTTPConverter.
type Option func(*HTTPConverter)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPConverter) { h.client = c }
}

// WithCache keeps fetched tables in c, keyed by base currency.
func WithCache(c cache.Cache[RateTable]) Option {
	return func(h *HTTPConverter) { h.cache = c }
}

func NewHTTPConverter(baseURL string, timeout time.Duration, opts ...Option) *HTTPConverter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &HTTPConverter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Convert returns amount unchanged when the codes match, without any network
// call. An empty source code is treated as the target currency.
func (h *HTTPConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	if from == "" || from == to {
		return amount, nil
	}

	table, err := h.rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := table[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s to %s", core.ErrRateUnavailable, from, to)
	}
	return amount.Mul(rate), nil
}

func (h *HTTPConverter) rates(ctx context.Context, base string) (RateTable, error) {
	if h.cache != nil {
		table, ok, err := h.cache.Get(ctx, base)
		if err != nil {
			slog.WarnContext(ctx, "Rate cache read failed", "base", base, "error", err)
		}
		if ok {
			return table, nil
		}
	}

	v, err, _ := h.group.Do(base, func() (any, error) {
		table, err := h.fetch(ctx, base)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.Set(ctx, base, table); err != nil {
				slog.WarnContext(ctx, "Rate cache write failed", "base", base, "error", err)
			}
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(RateTable), nil
}

type rateResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (h *HTTPConverter) fetch(ctx context.Context, base string) (RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+base, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", core.ErrConversionService, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch rates for %s: %w", core.ErrConversionService, base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: rates for %s: unexpected status %d", core.ErrConversionService, base, resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode rates for %s: %w", core.ErrConversionService, base, err)
	}
	if body.Rates == nil {
		return nil, fmt.Errorf("%w: rates for %s: empty table", core.ErrConversionService, base)
	}

	slog.DebugContext(ctx, "Exchange rates fetched", "base", base, "count", len(body.Rates))
	return RateTable(body.Rates), nil
}
