package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/willjrcristo/premium-bridge/internal/domain"
)

// Datas são gravadas como texto UTC de largura fixa: a comparação de strings no
// WHERE ordena igual ao tempo.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// sqliteRepository é a implementação do Repository para SQLite.
// Ela precisa de uma conexão com o banco de dados (*sql.DB) para funcionar.
type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository envolve um banco já aberto. O schema precisa existir
// (veja MigrateSQLite).
func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{
		db: db,
	}
}

// OpenSQLite abre o arquivo do banco e testa a conexão.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(sqliteTimeLayout, v.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

func nullableSQLiteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatSQLiteTime(*t)
}

// --- LEDGER ---

func (r *sqliteRepository) Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT user_id, is_premium, premium_expires_at, updated_at FROM "+ledgerTable+" WHERE user_id = ?", userID)

	rec, err := scanSQLiteRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *sqliteRepository) Find(ctx context.Context, filter domain.Filter) ([]domain.SubscriptionRecord, error) {
	query := "SELECT user_id, is_premium, premium_expires_at, updated_at FROM " + ledgerTable
	var where []string
	var args []any
	if filter.OnlyPremium {
		where = append(where, "is_premium = 1")
	}
	if !filter.ExpiredBefore.IsZero() {
		where = append(where, "premium_expires_at IS NOT NULL AND premium_expires_at < ?")
		args = append(args, formatSQLiteTime(filter.ExpiredBefore))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Expirações NULL vêm primeiro no SQLite, como "never granted".
	query += " ORDER BY premium_expires_at ASC, user_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SubscriptionRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *sqliteRepository) Update(ctx context.Context, userID string, patch domain.Patch) (int64, error) {
	set, args := sqliteSetClause(patch)
	args = append(args, userID)

	stmt, err := r.db.PrepareContext(ctx, "UPDATE "+ledgerTable+" SET "+set+" WHERE user_id = ?")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqliteRepository) Upsert(ctx context.Context, userID string, patch domain.Patch) error {
	query := "INSERT INTO " + ledgerTable + " (user_id, is_premium, premium_expires_at, updated_at) VALUES (?, ?, ?, ?)" +
		" ON CONFLICT(user_id) DO UPDATE SET is_premium = excluded.is_premium, updated_at = excluded.updated_at"
	if patch.PremiumExpiresAt != nil {
		query += ", premium_expires_at = excluded.premium_expires_at"
	}

	_, err := r.db.ExecContext(ctx, query,
		userID, patch.IsPremium, nullableSQLiteTime(patch.PremiumExpiresAt), formatSQLiteTime(patch.UpdatedAt))
	return err
}

func (r *sqliteRepository) BulkUpdate(ctx context.Context, userIDs []string, patch domain.Patch, cond domain.Condition) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	set, setArgs := sqliteSetClause(patch)
	var total int64
	for start := 0; start < len(userIDs); start += maxBatch {
		end := min(start+maxBatch, len(userIDs))
		chunk := userIDs[start:end]

		args := append([]any{}, setArgs...)
		for _, id := range chunk {
			args = append(args, id)
		}
		query := "UPDATE " + ledgerTable + " SET " + set +
			" WHERE user_id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + ")"
		if cond.OnlyPremium {
			query += " AND is_premium = 1"
		}
		if !cond.ExpiredBefore.IsZero() {
			query += " AND premium_expires_at IS NOT NULL AND premium_expires_at < ?"
			args = append(args, formatSQLiteTime(cond.ExpiredBefore))
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// --- AUDIT ---

func (r *sqliteRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO "+auditTable+" (id, actor, action, user_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.Actor, entry.Action, entry.UserID, string(details), formatSQLiteTime(entry.CreatedAt))
	return err
}

func (r *sqliteRepository) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, actor, action, user_id, details, created_at FROM "+auditTable+" ORDER BY created_at DESC LIMIT ?",
		clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			details   string
			createdAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.UserID, &details, &createdAt); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		ts, err := parseSQLiteTime(createdAt)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			e.CreatedAt = *ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *sqliteRepository) Close() error {
	return r.db.Close()
}

// --- FUNÇÕES AUXILIARES ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*domain.SubscriptionRecord, error) {
	var (
		rec       domain.SubscriptionRecord
		expiresAt sql.NullString
		updatedAt sql.NullString
	)
	if err := row.Scan(&rec.UserID, &rec.IsPremium, &expiresAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.PremiumExpiresAt, err = parseSQLiteTime(expiresAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func sqliteSetClause(patch domain.Patch) (string, []any) {
	set := "is_premium = ?, updated_at = ?"
	args := []any{patch.IsPremium, formatSQLiteTime(patch.UpdatedAt)}
	if patch.PremiumExpiresAt != nil {
		set += ", premium_expires_at = ?"
		args = append(args, formatSQLiteTime(*patch.PremiumExpiresAt))
	}
	return set, args
}
