package repository

import (
	"context"

	"github.com/willjrcristo/premium-bridge/internal/domain"
)

// Nomes de tabela comuns a todos os drivers.
const (
	ledgerTable = "user_scripts"
	auditTable  = "subscription_audit"
)

// maxBatch mantém cada lista IN (...) abaixo do limite de parâmetros do SQLite.
const maxBatch = 500

// LedgerRepository define as operações de persistência do ledger de assinaturas.
// Usar uma interface nos permite trocar o backend (SQLite local, Postgres no banco
// hospedado) e usar um fake nos testes.
type LedgerRepository interface {
	// Get devolve nil, nil quando o usuário não tem linha.
	Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
	Find(ctx context.Context, filter domain.Filter) ([]domain.SubscriptionRecord, error)

	// Update é uma escrita condicional pelo user id. Linha ausente não é erro:
	// só informa zero linhas afetadas.
	Update(ctx context.Context, userID string, patch domain.Patch) (int64, error)
	// Upsert cria a linha quando ela ainda não existe.
	Upsert(ctx context.Context, userID string, patch domain.Patch) error
	// BulkUpdate grava o mesmo patch em toda linha listada que ainda casa com cond,
	// num único lote, e devolve quantas linhas mudaram.
	BulkUpdate(ctx context.Context, userIDs []string, patch domain.Patch, cond domain.Condition) (int64, error)
}

// AuditRepository guarda o log de ações de admin e webhook.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	// ListAudit devolve as entradas mais novas primeiro.
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// Repository é tudo que o serviço precisa de um backend de armazenamento.
type Repository interface {
	LedgerRepository
	AuditRepository
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
