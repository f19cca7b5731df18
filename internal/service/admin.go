package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/metrics"
)

// AdminResult descreve um extend ou revoke.
type AdminResult struct {
	UserID            string     `json:"user_id"`
	IsPremium         bool       `json:"is_premium"`
	PremiumExpiresAt  *time.Time `json:"premium_expires_at,omitempty"`
	PreviousExpiresAt *time.Time `json:"previous_expires_at,omitempty"`
	// Ligado quando um extend aproximou a expiração de uma concessão ativa.
	Shortened    bool  `json:"shortened,omitempty"`
	RowsAffected int64 `json:"rows_affected"`
}

// BulkItem é o resultado de um usuário num comando em lote.
type BulkItem struct {
	UserID       string `json:"user_id"`
	OK           bool   `json:"ok"`
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}

// BulkResult agrega um comando em lote. Items seguem a ordem da requisição.
type BulkResult struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`

	errs *multierror.Error
}

// Err devolve todas as falhas por usuário combinadas, ou nil.
func (r *BulkResult) Err() error {
	return r.errs.ErrorOrNil()
}

func (s *SubscriptionService) validateDays(days int) error {
	if days < 1 || days > s.rules.MaxExtendDays {
		return fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrValidation, s.rules.MaxExtendDays, days)
	}
	return nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return nil
}

// Extend define a expiração como agora + dias e liga o premium. A nova expiração
// parte de agora, não da expiração atual: uma extensão curta sobre uma concessão
// longa a encurta. O resultado e a auditoria marcam esse caso.
func (s *SubscriptionService) Extend(ctx context.Context, userID string, days int, actor string) (*AdminResult, error) {
	res, err := s.extend(ctx, userID, days, actor)
	metrics.ObserveAdminAction(domain.ActionExtend, err)
	return res, err
}

func (s *SubscriptionService) extend(ctx context.Context, userID string, days int, actor string) (*AdminResult, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := s.validateDays(days); err != nil {
		return nil, err
	}

	slog.Info("⏰ Estendendo assinatura", "user_id", userID, "days", days, "actor", actor)

	prev := s.previous(ctx, userID)
	now := s.clock()
	expiresAt := now.Add(time.Duration(days) * domain.Day)
	patch := domain.Patch{IsPremium: true, PremiumExpiresAt: &expiresAt, UpdatedAt: now}

	n, err := s.writeGrant(ctx, domain.ActionExtend, userID, patch)
	if err != nil {
		slog.Error("❌ Erro ao estender assinatura", "user_id", userID, "error", err)
		return nil, persistenceError("extend "+userID, err)
	}

	res := &AdminResult{
		UserID:           userID,
		IsPremium:        true,
		PremiumExpiresAt: &expiresAt,
		RowsAffected:     n,
	}
	details := map[string]string{
		"days":          strconv.Itoa(days),
		"expires_at":    formatTime(&expiresAt),
		"rows_affected": strconv.FormatInt(n, 10),
	}
	if prev != nil {
		res.PreviousExpiresAt = prev.PremiumExpiresAt
		details["previous_expires_at"] = formatTime(prev.PremiumExpiresAt)
		noteTransition(details, userID, prev.State(now), domain.StateActive)
		if prev.EffectiveStatus(now) && expiresAt.Before(*prev.PremiumExpiresAt) {
			res.Shortened = true
			details["shortened"] = "true"
			slog.Warn("Extensão encurta uma concessão ativa", "user_id", userID,
				"previous_expires_at", prev.PremiumExpiresAt, "expires_at", expiresAt)
		}
	}
	s.audit(ctx, actor, domain.ActionExtend, userID, details)

	return res, nil
}

// Revoke desliga o premium e deixa a expiração gravada como está. Quem consome o
// ledger precisa olhar IsPremium antes de confiar na expiração.
func (s *SubscriptionService) Revoke(ctx context.Context, userID string, actor string) (*AdminResult, error) {
	res, err := s.revoke(ctx, userID, actor)
	metrics.ObserveAdminAction(domain.ActionRevoke, err)
	return res, err
}

func (s *SubscriptionService) revoke(ctx context.Context, userID string, actor string) (*AdminResult, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	slog.Info("🚫 Revogando acesso premium", "user_id", userID, "actor", actor)

	prev := s.previous(ctx, userID)
	now := s.clock()

	// Revoke nunca cria linha, independente de CreateMissing.
	n, err := s.repo.Update(ctx, userID, domain.Patch{IsPremium: false, UpdatedAt: now})
	if err != nil {
		slog.Error("❌ Erro ao revogar premium", "user_id", userID, "error", err)
		return nil, persistenceError("revoke "+userID, err)
	}
	if n == 0 {
		metrics.ObserveMissingRow(domain.ActionRevoke)
		slog.Warn("⚠️ Revoke não encontrou nenhuma linha", "user_id", userID)
	}

	res := &AdminResult{UserID: userID, RowsAffected: n}
	details := map[string]string{"rows_affected": strconv.FormatInt(n, 10)}
	if prev != nil {
		res.PremiumExpiresAt = prev.PremiumExpiresAt
		res.PreviousExpiresAt = prev.PremiumExpiresAt
		details["expires_at"] = formatTime(prev.PremiumExpiresAt)
		to := domain.StateInactive
		if prev.PremiumExpiresAt == nil {
			to = domain.StateNeverGranted
		}
		noteTransition(details, userID, prev.State(now), to)
	}
	s.audit(ctx, actor, domain.ActionRevoke, userID, details)

	return res, nil
}

// BulkExtend roda Extend para cada usuário de forma independente. Uma falha não
// desfaz nem interrompe as outras.
func (s *SubscriptionService) BulkExtend(ctx context.Context, userIDs []string, days int, actor string) (*BulkResult, error) {
	if err := s.validateDays(days); err != nil {
		return nil, err
	}
	return s.bulk(ctx, userIDs, func(ctx context.Context, userID string) (*AdminResult, error) {
		return s.Extend(ctx, userID, days, actor)
	})
}

// BulkRevoke roda Revoke para cada usuário de forma independente.
func (s *SubscriptionService) BulkRevoke(ctx context.Context, userIDs []string, actor string) (*BulkResult, error) {
	return s.bulk(ctx, userIDs, func(ctx context.Context, userID string) (*AdminResult, error) {
		return s.Revoke(ctx, userID, actor)
	})
}

func (s *SubscriptionService) bulk(ctx context.Context, userIDs []string, op func(context.Context, string) (*AdminResult, error)) (*BulkResult, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one user id is required", ErrValidation)
	}

	items := make([]BulkItem, len(ids))
	itemErrs := make([]error, len(ids))

	// Group simples, sem WithContext: a falha de um usuário não cancela os demais.
	var g errgroup.Group
	g.SetLimit(s.rules.BulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			items[i].UserID = id
			res, err := op(ctx, id)
			if err != nil {
				items[i].Error = err.Error()
				itemErrs[i] = fmt.Errorf("%s: %w", id, err)
				return nil
			}
			items[i].OK = true
			items[i].RowsAffected = res.RowsAffected
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{Total: len(ids), Items: items}
	for _, err := range itemErrs {
		if err != nil {
			result.Failed++
			result.errs = multierror.Append(result.errs, err)
		} else {
			result.Succeeded++
		}
	}

	slog.Info("Operação em lote concluída", "total", result.Total,
		"succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
