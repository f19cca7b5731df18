package directory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	value    string
	storedAt time.Time
}

// CachedDirectory guarda as consultas bem-sucedidas por ttl. Misses e erros não
// entram no cache: quem se cadastra depois de um webhook falho é achado no reenvio.
type CachedDirectory struct {
	delegate Directory
	ttl      time.Duration
	byEmail  *lru.Cache[string, cacheEntry]
	byID     *lru.Cache[string, cacheEntry]
}

// NewCachedDirectory envolve delegate com dois caches LRU do tamanho dado.
func NewCachedDirectory(delegate Directory, size int, ttl time.Duration) (*CachedDirectory, error) {
	byEmail, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	byID, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		delegate: delegate,
		ttl:      ttl,
		byEmail:  byEmail,
		byID:     byID,
	}, nil
}

func (c *CachedDirectory) FindIdentityByEmail(ctx context.Context, email string) (string, error) {
	key := normalizeEmail(email)
	if v, ok := c.lookup(c.byEmail, key); ok {
		return v, nil
	}

	id, err := c.delegate.FindIdentityByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	// byID só é preenchido por EmailForIdentity: o email digitado pelo comprador
	// não é o endereço que o diretório guarda.
	c.byEmail.Add(key, cacheEntry{value: id, storedAt: time.Now()})
	return id, nil
}

func (c *CachedDirectory) EmailForIdentity(ctx context.Context, userID string) (string, error) {
	if v, ok := c.lookup(c.byID, userID); ok {
		return v, nil
	}

	email, err := c.delegate.EmailForIdentity(ctx, userID)
	if err != nil {
		return "", err
	}
	c.byID.Add(userID, cacheEntry{value: email, storedAt: time.Now()})
	return email, nil
}

func (c *CachedDirectory) lookup(cache *lru.Cache[string, cacheEntry], key string) (string, bool) {
	entry, ok := cache.Get(key)
	if !ok {
		return "", false
	}
	if time.Since(entry.storedAt) >= c.ttl {
		cache.Remove(key)
		return "", false
	}
	return entry.value, true
}
