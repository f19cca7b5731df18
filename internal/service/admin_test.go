package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willjrcristo/premium-bridge/internal/domain"
)

func TestExtend(t *testing.T) {
	ctx := context.Background()

	t.Run("sets expiry to now plus days and turns premium on", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1", PremiumExpiresAt: at(-10 * domain.Day)})

		res, err := f.svc.Extend(ctx, "user-1", 45, "admin:root")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		assert.False(t, res.Shortened)

		rec := f.record(t, "user-1")
		assert.True(t, rec.IsPremium)
		assert.True(t, rec.PremiumExpiresAt.Equal(*at(45 * domain.Day)))
	})

	t.Run("is not additive and flags a shortened grant", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1", IsPremium: true, PremiumExpiresAt: at(200 * domain.Day)})

		res, err := f.svc.Extend(ctx, "user-1", 10, "admin:root")
		require.NoError(t, err)
		assert.True(t, res.Shortened)
		assert.True(t, res.PreviousExpiresAt.Equal(*at(200 * domain.Day)))
		assert.True(t, f.record(t, "user-1").PremiumExpiresAt.Equal(*at(10 * domain.Day)))

		entries := f.audit(t)
		require.Len(t, entries, 1)
		assert.Equal(t, "true", entries[0].Details["shortened"])
		assert.Equal(t, "active", entries[0].Details["from_state"])
		assert.Equal(t, "active", entries[0].Details["to_state"])
		assert.Equal(t, "admin:root", entries[0].Actor)
	})

	t.Run("five days on a grant twenty days out leaves five days", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1", IsPremium: true, PremiumExpiresAt: at(20 * domain.Day)})

		_, err := f.svc.Extend(ctx, "user-1", 5, "admin:root")
		require.NoError(t, err)

		rec := f.record(t, "user-1")
		assert.True(t, rec.PremiumExpiresAt.Equal(*at(5 * domain.Day)))
		assert.False(t, rec.PremiumExpiresAt.Equal(*at(25 * domain.Day)))
	})

	t.Run("rejects days out of range without writing", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1"})

		for _, days := range []int{0, -5, 366} {
			_, err := f.svc.Extend(ctx, "user-1", days, "admin:root")
			assert.ErrorIs(t, err, ErrValidation, days)
		}
		assert.False(t, f.record(t, "user-1").IsPremium)
		assert.Empty(t, f.audit(t))
	})

	t.Run("accepts the policy bounds", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1"})

		_, err := f.svc.Extend(ctx, "user-1", 1, "admin:root")
		require.NoError(t, err)
		_, err = f.svc.Extend(ctx, "user-1", 365, "admin:root")
		require.NoError(t, err)
	})

	t.Run("rejects an empty user id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Extend(ctx, "  ", 30, "admin:root")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing row reports zero rows", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.Extend(ctx, "user-9", 30, "admin:root")
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.RowsAffected)
		assert.Nil(t, f.record(t, "user-9"))
	})

	t.Run("create_missing creates the row", func(t *testing.T) {
		f := newFixture(t, func(r *Rules) { r.CreateMissing = true })

		res, err := f.svc.Extend(ctx, "user-9", 30, "admin:root")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		assert.True(t, f.record(t, "user-9").EffectiveStatus(fixedNow))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("turns premium off and keeps the expiry", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1", IsPremium: true, PremiumExpiresAt: at(12 * domain.Day)})

		res, err := f.svc.Revoke(ctx, "user-1", "admin:root")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)

		rec := f.record(t, "user-1")
		assert.False(t, rec.IsPremium)
		require.NotNil(t, rec.PremiumExpiresAt)
		assert.True(t, rec.PremiumExpiresAt.Equal(*at(12 * domain.Day)))
		assert.False(t, rec.EffectiveStatus(fixedNow))
		assert.Equal(t, domain.StateInactive, rec.State(fixedNow))

		entries := f.audit(t)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.ActionRevoke, entries[0].Action)
		assert.Equal(t, "inactive", entries[0].Details["to_state"])
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(domain.SubscriptionRecord{UserID: "user-1", IsPremium: true, PremiumExpiresAt: at(domain.Day)})

		_, err := f.svc.Revoke(ctx, "user-1", "admin:root")
		require.NoError(t, err)
		_, err = f.svc.Revoke(ctx, "user-1", "admin:root")
		require.NoError(t, err)
		assert.False(t, f.record(t, "user-1").IsPremium)
	})

	t.Run("never creates a row, even with create_missing", func(t *testing.T) {
		f := newFixture(t, func(r *Rules) { r.CreateMissing = true })

		res, err := f.svc.Revoke(ctx, "user-9", "admin:root")
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.RowsAffected)
		assert.Nil(t, f.record(t, "user-9"))
	})

	t.Run("write failure is a persistence error", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failUpdateFor = map[string]error{"user-1": errors.New("timeout")}

		_, err := f.svc.Revoke(ctx, "user-1", "admin:root")
		assert.ErrorIs(t, err, ErrPersistence)
	})
}

func TestBulkOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk extend applies each user independently", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(
			domain.SubscriptionRecord{UserID: "user-1"},
			domain.SubscriptionRecord{UserID: "user-2"},
			domain.SubscriptionRecord{UserID: "user-3"},
		)
		f.repo.failUpdateFor = map[string]error{"user-2": errors.New("row locked")}

		res, err := f.svc.BulkExtend(ctx, []string{"user-1", "user-2", "user-3", "user-1", ""}, 30, "admin:root")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.Failed)
		require.Len(t, res.Items, 3)
		assert.Equal(t, "user-1", res.Items[0].UserID)
		assert.True(t, res.Items[0].OK)
		assert.Equal(t, "user-2", res.Items[1].UserID)
		assert.False(t, res.Items[1].OK)
		assert.Contains(t, res.Items[1].Error, "row locked")
		assert.ErrorIs(t, res.Err(), ErrPersistence)

		// Sem rollback para os usuários que deram certo.
		assert.True(t, f.record(t, "user-1").IsPremium)
		assert.True(t, f.record(t, "user-3").IsPremium)
		assert.False(t, f.record(t, "user-2").IsPremium)
	})

	t.Run("bulk revoke", func(t *testing.T) {
		f := newFixture(t)
		f.repo.Seed(
			domain.SubscriptionRecord{UserID: "user-1", IsPremium: true, PremiumExpiresAt: at(domain.Day)},
			domain.SubscriptionRecord{UserID: "user-2", IsPremium: true, PremiumExpiresAt: at(domain.Day)},
		)

		res, err := f.svc.BulkRevoke(ctx, []string{"user-1", "user-2"}, "admin:root")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Succeeded)
		assert.NoError(t, res.Err())
		assert.False(t, f.record(t, "user-1").IsPremium)
		assert.False(t, f.record(t, "user-2").IsPremium)
	})

	t.Run("empty list is a validation error", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BulkRevoke(ctx, []string{"", " "}, "admin:root")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("bulk extend validates days once", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BulkExtend(ctx, []string{"user-1"}, 0, "admin:root")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
