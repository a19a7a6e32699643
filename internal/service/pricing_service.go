package service

import (
	"context"
	"sync"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

// defaultBTCUSDRate seeds the oracle before the first poll succeeds.
const defaultBTCUSDRate int64 = 60000

// PricingServiceImpl implements ports.PricingService. It holds a cached
// (btc_usd, fetched_at) pair behind a mutex and exposes the pure
// conversions the Proxy Executor and Policy Engine quote against.
type PricingServiceImpl struct {
	mu        sync.RWMutex
	btcUSD    int64
	fetchedAt time.Time

	serviceRepo ports.ServiceRepository
	log         zerolog.Logger
}

func NewPricingService(serviceRepo ports.ServiceRepository, log zerolog.Logger) *PricingServiceImpl {
	return &PricingServiceImpl{
		btcUSD:      defaultBTCUSDRate,
		fetchedAt:   time.Now().UTC(),
		serviceRepo: serviceRepo,
		log:         log,
	}
}

// CurrentRate returns the cached rate without touching the database.
func (s *PricingServiceImpl) CurrentRate() (int64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.btcUSD, s.fetchedAt
}

// SetRate advances the cached rate and recomputes every service_pricing
// row's price_sats, persisting only the ones that changed.
func (s *PricingServiceImpl) SetRate(ctx context.Context, btcUSD int64) error {
	if btcUSD <= 0 {
		return apperror.ErrValidation("btc_usd rate must be positive")
	}

	s.mu.Lock()
	s.btcUSD = btcUSD
	s.fetchedAt = time.Now().UTC()
	s.mu.Unlock()

	rows, err := s.serviceRepo.ListAllPricing(ctx)
	if err != nil {
		return apperror.InternalError(err)
	}

	for _, row := range rows {
		newPriceSats := usdMicrosToSats(row.PriceUSDMicros, btcUSD)
		if newPriceSats == row.PriceSats {
			continue
		}
		if err := s.serviceRepo.UpdatePriceSats(ctx, row.ServiceID, row.Operation, newPriceSats); err != nil {
			s.log.Warn().Err(err).
				Str("service_id", row.ServiceID).
				Str("operation", row.Operation).
				Msg("failed to persist recomputed price_sats")
			continue
		}
	}

	s.log.Info().Int64("btc_usd", btcUSD).Int("repriced", len(rows)).Msg("pricing oracle rate advanced")
	return nil
}

func (s *PricingServiceImpl) USDMicrosToSats(microsUSD int64) int64 {
	rate, _ := s.CurrentRate()
	return usdMicrosToSats(microsUSD, rate)
}

func (s *PricingServiceImpl) USDCentsToSats(cents int64) int64 {
	rate, _ := s.CurrentRate()
	return usdCentsToSats(cents, rate)
}

func (s *PricingServiceImpl) SatsToUSDCents(sats int64) int64 {
	rate, _ := s.CurrentRate()
	return satsToUSDCents(sats, rate)
}

func (s *PricingServiceImpl) GetPrice(ctx context.Context, serviceSlug, operation string) (*domain.ServicePricing, error) {
	svc, err := s.serviceRepo.GetBySlug(ctx, serviceSlug)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if svc == nil {
		return nil, apperror.ErrNotFound("service")
	}

	pricing, err := s.serviceRepo.GetPricing(ctx, svc.ID, operation)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if pricing == nil {
		return nil, apperror.ErrNotFound("service_pricing")
	}
	return pricing, nil
}

// usdMicrosToSats = ceil(m * 100 / r) — never under-charges a tiny operation
// down to zero sats.
func usdMicrosToSats(microsUSD, btcUSD int64) int64 {
	return ceilDiv(microsUSD*100, btcUSD)
}

// usdCentsToSats = floor(c * 1_000_000 / r) — conservative: never credit
// more sats than a USD-cents deposit is actually worth.
func usdCentsToSats(cents, btcUSD int64) int64 {
	return (cents * 1_000_000) / btcUSD
}

// satsToUSDCents = ceil(s * r / 1_000_000) — conservative: never hold less
// USD-cents than a sats amount is actually worth.
func satsToUSDCents(sats, btcUSD int64) int64 {
	return ceilDiv(sats*btcUSD, 1_000_000)
}

func ceilDiv(numerator, denominator int64) int64 {
	if numerator <= 0 {
		return numerator / denominator
	}
	return (numerator + denominator - 1) / denominator
}
