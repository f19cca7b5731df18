package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/willjrcristo/premium-bridge/internal/domain"
)

// MemoryRepository mantém o ledger na memória do processo. É o driver "memory" para
// rodar localmente e o fake dos testes de serviço.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]domain.SubscriptionRecord
	audit   []domain.AuditEntry
}

// NewMemoryRepository devolve um ledger em memória vazio.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]domain.SubscriptionRecord),
	}
}

// Seed grava os registros como vieram, substituindo linhas com o mesmo user id.
func (m *MemoryRepository) Seed(records ...domain.SubscriptionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.UserID] = cloneRecord(rec)
	}
}

func (m *MemoryRepository) Get(_ context.Context, userID string) (*domain.SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemoryRepository) Find(_ context.Context, filter domain.Filter) ([]domain.SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.SubscriptionRecord
	for _, rec := range m.records {
		if filter.OnlyPremium && !rec.IsPremium {
			continue
		}
		if !filter.ExpiredBefore.IsZero() && !expiredBefore(rec, filter.ExpiredBefore) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PremiumExpiresAt, out[j].PremiumExpiresAt
		switch {
		case a == nil && b == nil:
			return out[i].UserID < out[j].UserID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return out[i].UserID < out[j].UserID
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

func (m *MemoryRepository) Update(_ context.Context, userID string, patch domain.Patch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return 0, nil
	}
	m.records[userID] = applyPatch(rec, patch)
	return 1, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, userID string, patch domain.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		rec = domain.SubscriptionRecord{UserID: userID}
	}
	m.records[userID] = applyPatch(rec, patch)
	return nil
}

func (m *MemoryRepository) BulkUpdate(_ context.Context, userIDs []string, patch domain.Patch, cond domain.Condition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range userIDs {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		if cond.OnlyPremium && !rec.IsPremium {
			continue
		}
		if !cond.ExpiredBefore.IsZero() && !expiredBefore(rec, cond.ExpiredBefore) {
			continue
		}
		m.records[id] = applyPatch(rec, patch)
		n++
	}
	return n, nil
}

func (m *MemoryRepository) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *MemoryRepository) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = clampLimit(limit)
	out := make([]domain.AuditEntry, 0, min(limit, len(m.audit)))
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func expiredBefore(rec domain.SubscriptionRecord, cutoff time.Time) bool {
	return rec.PremiumExpiresAt != nil && rec.PremiumExpiresAt.Before(cutoff)
}

func applyPatch(rec domain.SubscriptionRecord, patch domain.Patch) domain.SubscriptionRecord {
	rec.IsPremium = patch.IsPremium
	if patch.PremiumExpiresAt != nil {
		t := *patch.PremiumExpiresAt
		rec.PremiumExpiresAt = &t
	}
	updated := patch.UpdatedAt
	rec.UpdatedAt = &updated
	return rec
}

func cloneRecord(rec domain.SubscriptionRecord) domain.SubscriptionRecord {
	if rec.PremiumExpiresAt != nil {
		t := *rec.PremiumExpiresAt
		rec.PremiumExpiresAt = &t
	}
	if rec.UpdatedAt != nil {
		t := *rec.UpdatedAt
		rec.UpdatedAt = &t
	}
	return rec
}
