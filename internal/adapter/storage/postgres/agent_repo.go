package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AgentRepo implements ports.AgentRepository.
type AgentRepo struct {
	pool Pool
}

func NewAgentRepo(pool Pool) ports.AgentRepository {
	return &AgentRepo{pool: pool}
}

const agentColumns = `id, account_id, name, role, status, api_key_hash, api_key_prefix, metadata, created_at, updated_at`

func (r *AgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal agent metadata: %w", err)
	}

	query := `INSERT INTO agents (` + agentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`
	_, err = r.pool.Exec(ctx, query, a.ID, a.AccountID, a.Name, a.Role, a.Status, a.APIKeyHash, a.APIKeyPrefix, metadata)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (r *AgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return scanAgent(r.pool.QueryRow(ctx, query, id))
}

// ListByPrefix returns the small bucket of agents sharing an api key
// prefix; the caller verifies each candidate's hash (spec §4.7).
func (r *AgentRepo) ListByPrefix(ctx context.Context, apiKeyPrefix string) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE api_key_prefix = $1`
	rows, err := r.pool.Query(ctx, query, apiKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list agents by prefix: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *AgentRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE account_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list agents by account: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *AgentRepo) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error {
	query := `UPDATE agents SET status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", id)
	}
	return nil
}

func (r *AgentRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM agents WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", id)
	}
	return nil
}

func scanAgents(rows pgx.Rows) ([]domain.Agent, error) {
	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent rows: %w", err)
	}
	return agents, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentRow(row rowScanner) (*domain.Agent, error) {
	a := &domain.Agent{}
	var metadata []byte
	if err := row.Scan(&a.ID, &a.AccountID, &a.Name, &a.Role, &a.Status, &a.APIKeyHash, &a.APIKeyPrefix, &metadata, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal agent metadata: %w", err)
		}
	}
	return a, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	a, err := scanAgentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
