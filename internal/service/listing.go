package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/willjrcristo/premium-bridge/internal/directory"
	"github.com/willjrcristo/premium-bridge/internal/domain"
)

// ActiveSubscription é uma linha premium do ledger com os campos derivados.
type ActiveSubscription struct {
	UserID           string       `json:"user_id"`
	Email            string       `json:"email"`
	IsPremium        bool         `json:"is_premium"`
	PremiumExpiresAt *time.Time   `json:"premium_expires_at,omitempty"`
	UpdatedAt        *time.Time   `json:"updated_at,omitempty"`
	DaysRemaining    int          `json:"days_remaining"`
	EffectiveStatus  bool         `json:"effective_status"`
	State            domain.State `json:"state"`
}

// Summary são os contadores do painel.
type Summary struct {
	TotalPremium int `json:"total_premium"`
	Active       int `json:"active"`
	// Ainda ativas, mas expirando dentro da janela de expiring-soon.
	ExpiringSoon int `json:"expiring_soon"`
	// is_premium ainda ligado com a expiração vencida; a próxima varredura corrige.
	ExpiredButActive int       `json:"expired_but_active"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ActiveList é o resultado de ListActive.
type ActiveList struct {
	Summary       Summary              `json:"summary"`
	Subscriptions []ActiveSubscription `json:"subscriptions"`
}

// Stats calcula os contadores sem resolver emails.
func (s *SubscriptionService) Stats(ctx context.Context) (*Summary, error) {
	records, err := s.repo.Find(ctx, domain.Filter{OnlyPremium: true})
	if err != nil {
		return nil, persistenceError("list premium", err)
	}
	summary := s.summarize(records, s.clock())
	return &summary, nil
}

// ListActive devolve toda linha com is_premium ligado, ordenada pela expiração,
// com os campos derivados e o email do usuário.
func (s *SubscriptionService) ListActive(ctx context.Context) (*ActiveList, error) {
	records, err := s.repo.Find(ctx, domain.Filter{OnlyPremium: true})
	if err != nil {
		return nil, persistenceError("list premium", err)
	}

	now := s.clock()
	out := make([]ActiveSubscription, len(records))

	var g errgroup.Group
	g.SetLimit(s.rules.BulkConcurrency)
	for i, rec := range records {
		out[i] = ActiveSubscription{
			UserID:           rec.UserID,
			IsPremium:        rec.IsPremium,
			PremiumExpiresAt: rec.PremiumExpiresAt,
			UpdatedAt:        rec.UpdatedAt,
			DaysRemaining:    rec.DaysRemaining(now),
			EffectiveStatus:  rec.EffectiveStatus(now),
			State:            rec.State(now),
		}
		g.Go(func() error {
			out[i].Email = directory.EmailLabel(ctx, s.directory, rec.UserID)
			return nil
		})
	}
	_ = g.Wait()

	return &ActiveList{
		Summary:       s.summarize(records, now),
		Subscriptions: out,
	}, nil
}

func (s *SubscriptionService) summarize(records []domain.SubscriptionRecord, now time.Time) Summary {
	soon := now.Add(s.rules.ExpiringSoon)
	sum := Summary{GeneratedAt: now}
	for _, rec := range records {
		if !rec.IsPremium {
			continue
		}
		sum.TotalPremium++
		if !rec.EffectiveStatus(now) {
			sum.ExpiredButActive++
			continue
		}
		sum.Active++
		if rec.PremiumExpiresAt.Before(soon) {
			sum.ExpiringSoon++
		}
	}
	return sum
}
