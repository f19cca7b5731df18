package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestSubscriptionRecord_EffectiveStatus(t *testing.T) {
	tests := []struct {
		name string
		rec  SubscriptionRecord
		want bool
	}{
		{"premium with future expiry", SubscriptionRecord{IsPremium: true, PremiumExpiresAt: at(time.Hour)}, true},
		{"premium with past expiry", SubscriptionRecord{IsPremium: true, PremiumExpiresAt: at(-time.Hour)}, false},
		{"premium expiring exactly now", SubscriptionRecord{IsPremium: true, PremiumExpiresAt: at(0)}, false},
		{"premium without expiry", SubscriptionRecord{IsPremium: true}, false},
		{"revoked with future expiry", SubscriptionRecord{IsPremium: false, PremiumExpiresAt: at(10 * Day)}, false},
		{"never granted", SubscriptionRecord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.EffectiveStatus(now))
		})
	}
}

func TestSubscriptionRecord_DaysRemaining(t *testing.T) {
	assert.Equal(t, 0, SubscriptionRecord{}.DaysRemaining(now))
	assert.Equal(t, 1, SubscriptionRecord{PremiumExpiresAt: at(time.Hour)}.DaysRemaining(now))
	assert.Equal(t, 30, SubscriptionRecord{PremiumExpiresAt: at(30 * Day)}.DaysRemaining(now))
	assert.Equal(t, 31, SubscriptionRecord{PremiumExpiresAt: at(30*Day + time.Minute)}.DaysRemaining(now))
	assert.Equal(t, -2, SubscriptionRecord{PremiumExpiresAt: at(-2 * Day)}.DaysRemaining(now))
}

func TestSubscriptionRecord_State(t *testing.T) {
	assert.Equal(t, StateNeverGranted, SubscriptionRecord{}.State(now))
	assert.Equal(t, StateActive, SubscriptionRecord{IsPremium: true, PremiumExpiresAt: at(Day)}.State(now))
	assert.Equal(t, StateStaleExpired, SubscriptionRecord{IsPremium: true, PremiumExpiresAt: at(-Day)}.State(now))
	assert.Equal(t, StateStaleExpired, SubscriptionRecord{IsPremium: true}.State(now))
	assert.Equal(t, StateInactive, SubscriptionRecord{PremiumExpiresAt: at(Day)}.State(now))
	assert.Equal(t, StateInactive, SubscriptionRecord{PremiumExpiresAt: at(-Day)}.State(now))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateNeverGranted, StateActive))
	assert.True(t, CanTransition(StateActive, StateActive))
	assert.True(t, CanTransition(StateActive, StateInactive))
	assert.True(t, CanTransition(StateStaleExpired, StateInactive))
	assert.True(t, CanTransition(StateInactive, StateActive))

	// Nada leva uma linha revogada de volta a "never granted", e a varredura
	// nunca mexe em linhas ainda ativas.
	assert.False(t, CanTransition(StateInactive, StateNeverGranted))
	assert.False(t, CanTransition(StateInactive, StateStaleExpired))
	assert.False(t, CanTransition(StateNeverGranted, StateStaleExpired))
}

func TestOrderEvent_HasProduct(t *testing.T) {
	products := map[string]struct{}{"2860": {}}

	order := OrderEvent{LineItems: []LineItem{{ProductID: "100"}, {ProductID: "2860"}}}
	assert.True(t, order.HasProduct(products))

	order = OrderEvent{LineItems: []LineItem{{ProductID: "100"}}}
	assert.False(t, order.HasProduct(products))

	assert.False(t, OrderEvent{}.HasProduct(products))
}
