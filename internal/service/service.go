package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/willjrcristo/premium-bridge/internal/config"
	"github.com/willjrcristo/premium-bridge/internal/directory"
	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/metrics"
	"github.com/willjrcristo/premium-bridge/internal/repository"
)

// Erros de negócio. Os handlers comparam com errors.Is.
var (
	// O pedido qualificou, mas o email de cobrança não tem usuário no diretório.
	// Não tentamos de novo aqui; quem envia o webhook reenvia.
	ErrIdentityNotFound = errors.New("user not found")
	// Não foi possível consultar o diretório.
	ErrDirectory = errors.New("identity directory unavailable")
	// Uma leitura ou escrita no ledger falhou.
	ErrPersistence = errors.New("ledger persistence failed")
	// Entrada de admin inválida (user id vazio, dias fora do intervalo, ...).
	ErrValidation = errors.New("invalid input")
)

// Rules são os parâmetros de negócio do ledger, vindos da configuração.
type Rules struct {
	PremiumProducts    map[string]struct{}
	QualifyingStatuses map[string]struct{}
	GrantDuration      time.Duration
	MaxExtendDays      int
	// CreateMissing transforma as escritas de grant e extend em upsert. Desligado,
	// um usuário sem linha no ledger continua sem linha (zero linhas afetadas).
	CreateMissing   bool
	BulkConcurrency int
	ExpiringSoon    time.Duration
}

// RulesFromConfig converte a seção subscription da configuração.
func RulesFromConfig(cfg config.SubscriptionConfig) Rules {
	rules := Rules{
		PremiumProducts:    toSet(cfg.PremiumProductIDs),
		QualifyingStatuses: toSet(cfg.QualifyingStatuses),
		GrantDuration:      time.Duration(cfg.GrantDays) * domain.Day,
		MaxExtendDays:      cfg.MaxExtendDays,
		CreateMissing:      cfg.CreateMissing,
		BulkConcurrency:    cfg.BulkConcurrency,
		ExpiringSoon:       time.Duration(cfg.ExpiringSoonDays) * domain.Day,
	}
	if rules.BulkConcurrency <= 0 {
		rules.BulkConcurrency = 1
	}
	return rules
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// SubscriptionService aplica ao ledger de assinaturas os eventos de pedido, os
// comandos de admin e a varredura de expiração.
type SubscriptionService struct {
	repo      repository.Repository
	directory directory.Directory
	rules     Rules
	now       func() time.Time
	newID     func() string
}

// Option personaliza um SubscriptionService.
type Option func(*SubscriptionService)

// WithClock troca o time.Now, principalmente nos testes.
func WithClock(now func() time.Time) Option {
	return func(s *SubscriptionService) {
		s.now = now
	}
}

// NewSubscriptionService cria uma nova instância do SubscriptionService.
func NewSubscriptionService(repo repository.Repository, dir directory.Directory, rules Rules, opts ...Option) *SubscriptionService {
	s := &SubscriptionService{
		repo:      repo,
		directory: dir,
		rules:     rules,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SubscriptionService) clock() time.Time {
	return s.now().UTC()
}

// writeGrant grava uma concessão ativa, como upsert quando CreateMissing está ligado.
func (s *SubscriptionService) writeGrant(ctx context.Context, action, userID string, patch domain.Patch) (int64, error) {
	if s.rules.CreateMissing {
		if err := s.repo.Upsert(ctx, userID, patch); err != nil {
			return 0, err
		}
		return 1, nil
	}

	n, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		metrics.ObserveMissingRow(action)
		slog.Warn("⚠️ Escrita no ledger não encontrou linha, usuário sem registro em user_scripts",
			"action", action, "user_id", userID)
	}
	return n, nil
}

// previous lê o registro atual para a auditoria. Se a leitura falhar, só perdemos
// detalhe na auditoria: logamos e a escrita segue.
func (s *SubscriptionService) previous(ctx context.Context, userID string) *domain.SubscriptionRecord {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		slog.Warn("Não foi possível ler a linha do ledger antes da escrita", "user_id", userID, "error", err)
		return nil
	}
	return rec
}

// audit grava uma entrada; a falha nunca derruba a operação auditada.
func (s *SubscriptionService) audit(ctx context.Context, actor, action, userID string, details map[string]string) {
	entry := domain.AuditEntry{
		ID:        s.newID(),
		Actor:     actor,
		Action:    action,
		UserID:    userID,
		Details:   details,
		CreatedAt: s.clock(),
	}
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Falha ao gravar entrada de auditoria", "action", action, "user_id", userID, "error", err)
	}
}

// ListAudit devolve as entradas de auditoria mais recentes.
func (s *SubscriptionService) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	entries, err := s.repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, persistenceError("list audit", err)
	}
	return entries, nil
}

// noteTransition registra a mudança de estado nos detalhes da auditoria e avisa
// sobre transições inesperadas, sinal de que outro processo mexeu na linha.
func noteTransition(details map[string]string, userID string, from, to domain.State) {
	details["from_state"] = string(from)
	details["to_state"] = string(to)
	if !domain.CanTransition(from, to) {
		slog.Warn("Transição de estado inesperada na assinatura", "user_id", userID, "from", from, "to", to)
	}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
