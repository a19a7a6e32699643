package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
)

// priceProvider is a single BTC/USD quote source. Grounded on the
// exchange.PriceProvider seam: one struct per source, a shared fetchJSON
// helper, GetPrice returning a float64.
type priceProvider interface {
	Name() string
	GetPrice(ctx context.Context) (float64, error)
}

// RatePoller periodically fetches BTC/USD from every configured source and
// feeds the median into the Pricing Oracle via SetRate. It is the external
// collaborator spec §4.3 assumes exists; Saturn owns and runs it.
type RatePoller struct {
	pricing  ports.PricingService
	sources  []priceProvider
	interval time.Duration
	client   *http.Client
	log      zerolog.Logger
}

func NewRatePoller(pricing ports.PricingService, sourceNames []string, interval time.Duration, log zerolog.Logger) *RatePoller {
	client := &http.Client{Timeout: 10 * time.Second}
	sources := make([]priceProvider, 0, len(sourceNames))
	for _, name := range sourceNames {
		if p := newPriceProvider(strings.ToLower(name), client); p != nil {
			sources = append(sources, p)
		}
	}
	return &RatePoller{pricing: pricing, sources: sources, interval: interval, client: client, log: log}
}

// Run polls on a ticker until ctx is cancelled. The first poll happens
// immediately so the oracle has a live rate before the first request lands.
func (p *RatePoller) Run(ctx context.Context) error {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *RatePoller) pollOnce(ctx context.Context) {
	quotes := make([]float64, 0, len(p.sources))
	for _, src := range p.sources {
		price, err := src.GetPrice(ctx)
		if err != nil {
			p.log.Warn().Err(err).Str("source", src.Name()).Msg("rate poller source failed")
			continue
		}
		quotes = append(quotes, price)
	}

	if len(quotes) == 0 {
		p.log.Warn().Msg("rate poller: all sources failed, keeping previous rate")
		return
	}

	median := medianOf(quotes)
	if err := p.pricing.SetRate(ctx, int64(median)); err != nil {
		p.log.Warn().Err(err).Msg("rate poller: failed to apply new rate")
	}
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func newPriceProvider(name string, client *http.Client) priceProvider {
	switch name {
	case "coinbase":
		return &coinbaseProvider{client: client}
	case "coingecko":
		return &coingeckoProvider{client: client}
	case "bitstamp":
		return &bitstampProvider{client: client}
	default:
		return nil
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// --- coinbase ---

type coinbaseProvider struct{ client *http.Client }

func (c *coinbaseProvider) Name() string { return "coinbase" }

func (c *coinbaseProvider) GetPrice(ctx context.Context) (float64, error) {
	var resp struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := fetchJSON(ctx, c.client, "https://api.coinbase.com/v2/prices/BTC-USD/spot", &resp); err != nil {
		return 0, fmt.Errorf("coinbase: %w", err)
	}
	amount, err := strconv.ParseFloat(resp.Data.Amount, 64)
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("coinbase: invalid price %q", resp.Data.Amount)
	}
	return amount, nil
}

// --- coingecko ---

type coingeckoProvider struct{ client *http.Client }

func (c *coingeckoProvider) Name() string { return "coingecko" }

func (c *coingeckoProvider) GetPrice(ctx context.Context) (float64, error) {
	var resp map[string]map[string]float64
	url := "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"
	if err := fetchJSON(ctx, c.client, url, &resp); err != nil {
		return 0, fmt.Errorf("coingecko: %w", err)
	}
	amount, ok := resp["bitcoin"]["usd"]
	if !ok || amount <= 0 {
		return 0, fmt.Errorf("coingecko: usd price missing")
	}
	return amount, nil
}

// --- bitstamp ---

type bitstampProvider struct{ client *http.Client }

func (b *bitstampProvider) Name() string { return "bitstamp" }

func (b *bitstampProvider) GetPrice(ctx context.Context) (float64, error) {
	var resp struct {
		Last string `json:"last"`
	}
	if err := fetchJSON(ctx, b.client, "https://www.bitstamp.net/api/v2/ticker/btcusd", &resp); err != nil {
		return 0, fmt.Errorf("bitstamp: %w", err)
	}
	amount, err := strconv.ParseFloat(resp.Last, 64)
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("bitstamp: invalid price %q", resp.Last)
	}
	return amount, nil
}
