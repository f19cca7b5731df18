package domain

import (
	"math"
	"time"
)

// Day é a unidade de toda concessão e extensão.
const Day = 24 * time.Hour

// SubscriptionRecord é a linha do ledger por usuário (tabela user_scripts).
type SubscriptionRecord struct {
	// Id opaco emitido pelo provedor de identidade. Nunca é criado aqui, só referenciado.
	UserID string `json:"user_id"`

	IsPremium bool `json:"is_premium"`

	// Nil quando nenhuma concessão foi gravada.
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`

	// Melhor esforço; linhas escritas por outros sistemas podem deixá-lo vazio.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// EffectiveStatus é o que o ledger significa agora. IsPremium sozinho pode estar
// desatualizado entre a expiração real e a próxima varredura.
func (r SubscriptionRecord) EffectiveStatus(now time.Time) bool {
	return r.IsPremium && r.PremiumExpiresAt != nil && r.PremiumExpiresAt.After(now)
}

// DaysRemaining arredonda para cima em dias inteiros: faltando uma hora ainda mostra 1.
// Valores negativos indicam que a expiração já passou.
func (r SubscriptionRecord) DaysRemaining(now time.Time) int {
	if r.PremiumExpiresAt == nil {
		return 0
	}
	return int(math.Ceil(float64(r.PremiumExpiresAt.Sub(now)) / float64(Day)))
}

// State deriva o estado do registro no ciclo de vida.
func (r SubscriptionRecord) State(now time.Time) State {
	switch {
	case r.EffectiveStatus(now):
		return StateActive
	case r.IsPremium:
		return StateStaleExpired
	case r.PremiumExpiresAt == nil:
		return StateNeverGranted
	default:
		return StateInactive
	}
}

// Patch é o conjunto de campos que uma escrita no ledger altera. PremiumExpiresAt nil
// mantém a expiração gravada, que é como revoke e a varredura funcionam.
type Patch struct {
	IsPremium        bool
	PremiumExpiresAt *time.Time
	UpdatedAt        time.Time
}

// Condition restringe uma escrita em lote às linhas que ainda casam no momento da escrita.
// O valor zero casa com todas as linhas listadas.
type Condition struct {
	OnlyPremium   bool
	ExpiredBefore time.Time
}

// Filter seleciona linhas do ledger para leitura. O resultado vem ordenado pela expiração, da mais antiga para a mais nova.
type Filter struct {
	OnlyPremium   bool
	ExpiredBefore time.Time
}
