package domain

import "time"

// Ações de auditoria.
const (
	ActionGrant  = "grant"
	ActionExtend = "extend"
	ActionRevoke = "revoke"
	ActionSweep  = "sweep"
)

// AuditEntry registra quem mudou qual linha do ledger e como.
type AuditEntry struct {
	ID        string            `json:"id"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
