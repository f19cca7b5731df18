package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/willjrcristo/premium-bridge/internal/domain"
)

// postgresRepository conversa com o Postgres hospedado, dono da tabela user_scripts.
type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository conecta um pool e falha logo quando o banco não responde.
func NewPostgresRepository(ctx context.Context, dsn string) (Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresRepository{pool: pool}, nil
}

func (r *postgresRepository) Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, is_premium, premium_expires_at, updated_at
		FROM user_scripts
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.IsPremium, &rec.PremiumExpiresAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *postgresRepository) Find(ctx context.Context, filter domain.Filter) ([]domain.SubscriptionRecord, error) {
	query := `SELECT user_id, is_premium, premium_expires_at, updated_at FROM user_scripts`
	var where []string
	var args []any
	if filter.OnlyPremium {
		where = append(where, "is_premium = TRUE")
	}
	if !filter.ExpiredBefore.IsZero() {
		args = append(args, filter.ExpiredBefore)
		where = append(where, "premium_expires_at < $"+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY premium_expires_at ASC NULLS FIRST, user_id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SubscriptionRecord, 0, 64)
	for rows.Next() {
		var rec domain.SubscriptionRecord
		if err := rows.Scan(&rec.UserID, &rec.IsPremium, &rec.PremiumExpiresAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, userID string, patch domain.Patch) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_scripts
		SET is_premium = $2,
		    premium_expires_at = COALESCE($3, premium_expires_at),
		    updated_at = $4
		WHERE user_id = $1
	`, userID, patch.IsPremium, patch.PremiumExpiresAt, patch.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *postgresRepository) Upsert(ctx context.Context, userID string, patch domain.Patch) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_scripts (user_id, is_premium, premium_expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET is_premium = EXCLUDED.is_premium,
		    premium_expires_at = COALESCE(EXCLUDED.premium_expires_at, user_scripts.premium_expires_at),
		    updated_at = EXCLUDED.updated_at
	`, userID, patch.IsPremium, patch.PremiumExpiresAt, patch.UpdatedAt)
	return err
}

func (r *postgresRepository) BulkUpdate(ctx context.Context, userIDs []string, patch domain.Patch, cond domain.Condition) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE user_scripts
		SET is_premium = $2,
		    premium_expires_at = COALESCE($3, premium_expires_at),
		    updated_at = $4
		WHERE user_id = ANY($1)`
	args := []any{userIDs, patch.IsPremium, patch.PremiumExpiresAt, patch.UpdatedAt}
	if cond.OnlyPremium {
		query += " AND is_premium = TRUE"
	}
	if !cond.ExpiredBefore.IsZero() {
		args = append(args, cond.ExpiredBefore)
		query += " AND premium_expires_at < $" + strconv.Itoa(len(args))
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *postgresRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO subscription_audit
			(id, actor, action, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.UserID,
		details,
		entry.CreatedAt,
	)
	return err
}

func (r *postgresRepository) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, actor, action, user_id, details, created_at
		FROM subscription_audit
		ORDER BY created_at DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0, 64)
	for rows.Next() {
		var (
			e       domain.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.UserID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresRepository) Close() error {
	r.pool.Close()
	return nil
}
