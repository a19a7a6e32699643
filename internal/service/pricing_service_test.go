package service

import (
	"context"
	"sync"
	"testing"

	"saturn/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServiceRepo struct {
	mu       sync.Mutex
	services map[string]*domain.Service
	pricing  map[string]*domain.ServicePricing
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{
		services: make(map[string]*domain.Service),
		pricing:  make(map[string]*domain.ServicePricing),
	}
}

func pricingKey(serviceID, operation string) string { return serviceID + "|" + operation }

func (r *fakeServiceRepo) GetBySlug(ctx context.Context, slug string) (*domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.Slug == slug {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeServiceRepo) ListActive(ctx context.Context) ([]domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Service
	for _, s := range r.services {
		if s.Active() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeServiceRepo) GetPricing(ctx context.Context, serviceID, operation string) (*domain.ServicePricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pricing[pricingKey(serviceID, operation)]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *fakeServiceRepo) ListAllPricing(ctx context.Context) ([]domain.ServicePricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ServicePricing, 0, len(r.pricing))
	for _, p := range r.pricing {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeServiceRepo) UpdatePriceSats(ctx context.Context, serviceID, operation string, priceSats int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pricing[pricingKey(serviceID, operation)]
	if !ok {
		return nil
	}
	p.PriceSats = priceSats
	return nil
}

func TestPricingService_Conversions(t *testing.T) {
	repo := newFakeServiceRepo()
	svc := NewPricingService(repo, zerolog.Nop())
	require.NoError(t, svc.SetRate(context.Background(), 100_000))

	assert.Equal(t, int64(1), svc.USDMicrosToSats(1)) // ceil(1*100/100000)=1
	assert.Equal(t, int64(10), svc.USDCentsToSats(1))  // floor(1*1e6/100000)=10
	assert.Equal(t, int64(1), svc.SatsToUSDCents(10))  // ceil(10*100000/1e6)=1
}

func TestPricingService_SetRate_RecomputesChangedPricesOnly(t *testing.T) {
	repo := newFakeServiceRepo()
	repo.services["svc1"] = &domain.Service{ID: "svc1", Slug: "openai", Status: domain.ServiceStatusActive}
	repo.pricing[pricingKey("svc1", "chat")] = &domain.ServicePricing{
		ServiceID: "svc1", Operation: "chat", PriceUSDMicros: 1_000_000, PriceSats: 1000,
	}

	svc := NewPricingService(repo, zerolog.Nop())
	require.NoError(t, svc.SetRate(context.Background(), 100_000))

	got, err := svc.GetPrice(context.Background(), "openai", "chat")
	require.NoError(t, err)
	assert.Equal(t, usdMicrosToSats(1_000_000, 100_000), got.PriceSats)
}

func TestPricingService_GetPrice_MissingIsNotFound(t *testing.T) {
	repo := newFakeServiceRepo()
	svc := NewPricingService(repo, zerolog.Nop())

	_, err := svc.GetPrice(context.Background(), "unknown", "op")
	assert.Error(t, err)
}

func TestMedianOf(t *testing.T) {
	assert.Equal(t, 2.0, medianOf([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, medianOf([]float64{1, 2, 3, 4}))
}
