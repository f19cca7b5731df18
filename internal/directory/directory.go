// Package directory traduz emails de cobrança em ids de usuário do provedor de identidade e vice-versa.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/willjrcristo/premium-bridge/internal/config"
)

// ErrNotFound indica que o diretório não tem usuário para o email ou id.
var ErrNotFound = errors.New("identity not found")

// Rótulos mostrados no lugar do email quando ele não pode ser resolvido.
const (
	EmailNotFoundLabel = "Email not found"
	EmailErrorLabel    = "Error fetching email"
)

// Directory é o serviço externo de identidades.
type Directory interface {
	FindIdentityByEmail(ctx context.Context, email string) (string, error)
	EmailForIdentity(ctx context.Context, userID string) (string, error)
}

// New monta o diretório configurado, com cache quando cache_size > 0.
func New(cfg config.DirectoryConfig) (Directory, error) {
	var dir Directory
	switch cfg.Driver {
	case "supabase", "":
		dir = NewSupabaseDirectory(cfg.SupabaseURL, cfg.ServiceKey, cfg.Timeout)
	case "static":
		pairs, err := ParseStaticPairs(cfg.Static)
		if err != nil {
			return nil, err
		}
		dir = NewStaticDirectory(pairs)
	default:
		return nil, fmt.Errorf("unsupported directory driver: %q", cfg.Driver)
	}

	if cfg.CacheSize <= 0 {
		return dir, nil
	}
	return NewCachedDirectory(dir, cfg.CacheSize, cfg.CacheTTL)
}

// EmailLabel resolve o email para exibição e cai num rótulo em caso de falha.
func EmailLabel(ctx context.Context, dir Directory, userID string) string {
	email, err := dir.EmailForIdentity(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		return EmailNotFoundLabel
	case err != nil:
		return EmailErrorLabel
	case email == "":
		return EmailNotFoundLabel
	}
	return email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseStaticPairs transforma entradas "email=user_id" num mapa.
func ParseStaticPairs(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		email, id, ok := strings.Cut(entry, "=")
		email, id = strings.TrimSpace(email), strings.TrimSpace(id)
		if !ok || email == "" || id == "" {
			return nil, fmt.Errorf("invalid static directory entry %q, want email=user_id", entry)
		}
		out[email] = id
	}
	return out, nil
}

// StaticDirectory é um mapa fixo email -> user id, para rodar localmente e nos testes.
type StaticDirectory struct {
	byEmail map[string]string
	byID    map[string]string
}

// NewStaticDirectory copia o mapa; emails são comparados sem diferenciar maiúsculas.
func NewStaticDirectory(emailToID map[string]string) *StaticDirectory {
	d := &StaticDirectory{
		byEmail: make(map[string]string, len(emailToID)),
		byID:    make(map[string]string, len(emailToID)),
	}
	for email, id := range emailToID {
		d.byEmail[normalizeEmail(email)] = id
		d.byID[id] = email
	}
	return d
}

func (d *StaticDirectory) FindIdentityByEmail(_ context.Context, email string) (string, error) {
	id, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (d *StaticDirectory) EmailForIdentity(_ context.Context, userID string) (string, error) {
	email, ok := d.byID[userID]
	if !ok {
		return "", ErrNotFound
	}
	return email, nil
}
