package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snappy-loop/skynet/internal/models"
)

// ResultCacheRepository caches parsed balance results by equation
type ResultCacheRepository struct {
	db *DB
}

// NewResultCacheRepository creates a new ResultCacheRepository
func NewResultCacheRepository(db *DB) *ResultCacheRepository {
	return &ResultCacheRepository{db: db}
}

// EquationHash computes the SHA-256 cache key of an equation.
// Whitespace is collapsed; case is kept because element symbols are case-sensitive (Co vs CO).
func EquationHash(equation string) string {
	normalized := strings.Join(strings.Fields(equation), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// Get retrieves a cached result. A miss returns (nil, nil).
func (r *ResultCacheRepository) Get(ctx context.Context, equation string) (*models.BalanceResult, error) {
	query := `
		SELECT result
		FROM balance_results_cache
		WHERE equation_hash = $1
	`

	var resultJSON []byte
	err := r.db.QueryRowContext(ctx, query, EquationHash(equation)).Scan(&resultJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Cache miss
	}

	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	var result models.BalanceResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	return &result, nil
}

// Set stores a result for an equation
func (r *ResultCacheRepository) Set(ctx context.Context, equation string, result *models.BalanceResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO balance_results_cache (equation_hash, equation, result, neutralization_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (equation_hash) DO UPDATE
		SET result = EXCLUDED.result,
		    neutralization_type = EXCLUDED.neutralization_type,
		    created_at = EXCLUDED.created_at
	`

	_, err = r.db.ExecContext(ctx, query, EquationHash(equation), strings.TrimSpace(equation), resultJSON, string(result.NeutralizationType), time.Now())
	if err != nil {
		return fmt.Errorf("insert cache: %w", err)
	}

	return nil
}
