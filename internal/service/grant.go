package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/willjrcristo/premium-bridge/internal/directory"
	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/metrics"
)

// Outcome é o desfecho de aplicar um evento de pedido.
type Outcome string

const (
	OutcomeGranted        Outcome = "granted"
	OutcomeNoActionNeeded Outcome = "no_action_needed"
)

// OrderResult descreve o que ApplyOrder fez.
type OrderResult struct {
	Outcome          Outcome    `json:"outcome"`
	OrderID          string     `json:"order_id"`
	UserID           string     `json:"user_id,omitempty"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	// Zero quando o usuário não tem linha no ledger e create_missing está desligado.
	RowsAffected int64 `json:"rows_affected"`
}

// Qualifies diz se o pedido libera o premium: status qualificado e ao menos um
// produto premium.
func (s *SubscriptionService) Qualifies(order domain.OrderEvent) bool {
	if _, ok := s.rules.QualifyingStatuses[order.Status]; !ok {
		return false
	}
	return order.HasProduct(s.rules.PremiumProducts)
}

// ApplyOrder libera o premium por GrantDuration a partir de agora para o comprador
// de um pedido qualificado. Pedido repetido ou recompra reinicia a janela a partir
// de agora; nunca soma ao tempo restante.
func (s *SubscriptionService) ApplyOrder(ctx context.Context, order domain.OrderEvent) (*OrderResult, error) {
	slog.Info("Processando pedido", "order_id", order.ID, "source", order.Source,
		"email", order.BillingEmail, "status", order.Status)

	if !s.Qualifies(order) {
		slog.Info("➡️ Nenhuma ação necessária", "order_id", order.ID)
		metrics.ObserveOrder(order.Source, string(OutcomeNoActionNeeded))
		return &OrderResult{Outcome: OutcomeNoActionNeeded, OrderID: order.ID}, nil
	}

	slog.Info("⭐ Produto premium encontrado - promovendo usuário", "order_id", order.ID)

	userID, err := s.directory.FindIdentityByEmail(ctx, order.BillingEmail)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			slog.Error("❌ Usuário não encontrado no Auth", "order_id", order.ID, "email", order.BillingEmail)
			metrics.ObserveOrder(order.Source, "identity_not_found")
			return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, order.BillingEmail)
		}
		slog.Error("💥 Falha ao consultar o diretório de identidades", "order_id", order.ID, "error", err)
		metrics.ObserveOrder(order.Source, "directory_error")
		return nil, fmt.Errorf("%w: %w", ErrDirectory, err)
	}
	slog.Info("👤 Usuário do Auth encontrado", "user_id", userID)

	now := s.clock()
	expiresAt := now.Add(s.rules.GrantDuration)
	patch := domain.Patch{IsPremium: true, PremiumExpiresAt: &expiresAt, UpdatedAt: now}

	n, err := s.writeGrant(ctx, domain.ActionGrant, userID, patch)
	if err != nil {
		slog.Error("❌ Erro ao atualizar o ledger", "user_id", userID, "error", err)
		metrics.ObserveOrder(order.Source, "persistence_error")
		return nil, persistenceError("grant "+userID, err)
	}

	s.audit(ctx, "webhook:"+order.Source, domain.ActionGrant, userID, map[string]string{
		"order_id":      order.ID,
		"status":        order.Status,
		"expires_at":    formatTime(&expiresAt),
		"rows_affected": strconv.FormatInt(n, 10),
	})
	metrics.ObserveOrder(order.Source, string(OutcomeGranted))
	slog.Info("✅ Usuário promovido a premium com sucesso", "user_id", userID,
		"email", order.BillingEmail, "expires_at", expiresAt, "rows_affected", n)

	return &OrderResult{
		Outcome:          OutcomeGranted,
		OrderID:          order.ID,
		UserID:           userID,
		PremiumExpiresAt: &expiresAt,
		RowsAffected:     n,
	}, nil
}
