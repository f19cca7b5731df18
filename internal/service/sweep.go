package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/metrics"
)

// SweepResult descreve uma execução da varredura de expiração.
type SweepResult struct {
	Candidates int   `json:"candidates"`
	Reverted   int64 `json:"reverted"`
}

// Sweep reverte toda linha premium cuja expiração já passou. Só roda quando
// chamada (endpoint de admin ou `bridge sweep` pelo cron).
//
// A escrita em lote repete a checagem de expiração: uma concessão que chega entre
// a leitura dos candidatos e a escrita mantém a nova expiração.
func (s *SubscriptionService) Sweep(ctx context.Context, actor string) (*SweepResult, error) {
	res, err := s.sweep(ctx, actor)
	var reverted int64
	if res != nil {
		reverted = res.Reverted
	}
	metrics.ObserveSweep(reverted, err)
	return res, err
}

func (s *SubscriptionService) sweep(ctx context.Context, actor string) (*SweepResult, error) {
	now := s.clock()
	slog.Info("🕒 Verificando assinaturas premium expiradas...", "cutoff", now)

	expired, err := s.repo.Find(ctx, domain.Filter{OnlyPremium: true, ExpiredBefore: now})
	if err != nil {
		slog.Error("❌ Erro ao buscar usuários expirados", "error", err)
		return nil, persistenceError("find expired", err)
	}
	if len(expired) == 0 {
		slog.Info("➡️ Nenhuma assinatura expirada encontrada")
		return &SweepResult{}, nil
	}

	slog.Info("📉 Assinaturas expiradas encontradas para reverter", "count", len(expired))

	userIDs := make([]string, len(expired))
	for i, rec := range expired {
		userIDs[i] = rec.UserID
	}

	n, err := s.repo.BulkUpdate(ctx, userIDs,
		domain.Patch{IsPremium: false, UpdatedAt: now},
		domain.Condition{OnlyPremium: true, ExpiredBefore: now})
	if err != nil {
		slog.Error("❌ Erro ao reverter usuários expirados", "error", err)
		return nil, persistenceError("revert expired", err)
	}

	s.audit(ctx, actor, domain.ActionSweep, "", map[string]string{
		"candidates": strconv.Itoa(len(userIDs)),
		"reverted":   strconv.FormatInt(n, 10),
		"cutoff":     formatTime(&now),
	})
	slog.Info("✅ Usuários revertidos para não premium com sucesso", "reverted", n)

	return &SweepResult{Candidates: len(userIDs), Reverted: n}, nil
}
