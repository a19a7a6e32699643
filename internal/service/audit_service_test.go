package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	done    chan struct{}
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{done: make(chan struct{}, 16)}
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *fakeAuditRepo) DailySpend(ctx context.Context, agentID string, since time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeAuditRepo) waitForWrite(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

type fakeInvalidator struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeInvalidator) InvalidateDailySpend(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, agentID)
}

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewAuditService(repo, nil, zerolog.Nop())

	row, err := svc.Log(context.Background(), ports.AuditEntry{
		AgentID:      "agt1",
		ServiceSlug:  "openai",
		PolicyResult: domain.PolicyResultAllowed,
		ChargedSats:  120,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID)

	repo.waitForWrite(t)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.entries, 1)
	assert.Equal(t, "agt1", repo.entries[0].AgentID)
	assert.Equal(t, int64(120), repo.entries[0].ChargedSats)
}

func TestAuditService_Log_RedactsSensitiveKeys(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewAuditService(repo, nil, zerolog.Nop())

	body := []byte(`{"prompt":"hello","api_key":"sk-live-1234","nested":{"Authorization":"Bearer xyz"}}`)
	row, err := svc.Log(context.Background(), ports.AuditEntry{
		AgentID:      "agt1",
		ServiceSlug:  "openai",
		RequestBody:  body,
		PolicyResult: domain.PolicyResultAllowed,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(row.RequestBody, &decoded))
	assert.Equal(t, redactedPlaceholder, decoded["api_key"])
	assert.Equal(t, "hello", decoded["prompt"])
	nested := decoded["nested"].(map[string]any)
	assert.Equal(t, redactedPlaceholder, nested["Authorization"])
}

func TestAuditService_Log_InvalidatesDailySpendOnAllowed(t *testing.T) {
	repo := newFakeAuditRepo()
	inv := &fakeInvalidator{}
	svc := NewAuditService(repo, inv, zerolog.Nop())

	_, err := svc.Log(context.Background(), ports.AuditEntry{
		AgentID:      "agt1",
		PolicyResult: domain.PolicyResultAllowed,
	})
	require.NoError(t, err)
	repo.waitForWrite(t)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	assert.Equal(t, []string{"agt1"}, inv.invalidated)
}

func TestAuditService_Log_DoesNotInvalidateOnDenied(t *testing.T) {
	repo := newFakeAuditRepo()
	inv := &fakeInvalidator{}
	svc := NewAuditService(repo, inv, zerolog.Nop())

	_, err := svc.Log(context.Background(), ports.AuditEntry{
		AgentID:      "agt1",
		PolicyResult: domain.PolicyResultDenied,
		PolicyReason: "kill_switch_active",
	})
	require.NoError(t, err)
	repo.waitForWrite(t)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	assert.Empty(t, inv.invalidated)
}
