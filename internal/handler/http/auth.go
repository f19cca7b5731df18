package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// ErrInvalidCredentials é devolvido pelo Login para usuário ou senha errados.
var ErrInvalidCredentials = errors.New("invalid credentials")

type actorKey struct{}

// ActorFromContext devolve o admin autenticado ("admin:<username>") ou "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// WithActor guarda no ctx o admin que está agindo.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// AdminClaims são as claims do token de sessão do admin.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// Authenticator confere a conta única de admin e emite tokens de sessão HS256.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthenticator(username, passwordHash, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Login confere as credenciais e devolve um token assinado com a sua expiração.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// O bcrypt roda sempre: usuário errado custa o mesmo que senha errada.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.username,
			Issuer:    "premium-bridge",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate lê o token e devolve o subject.
func (a *Authenticator) Validate(tokenStr string) (string, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("premium-bridge"),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject != a.username {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// RequireAdmin recusa requisições sem bearer token válido e coloca o ator no contexto.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		subject, err := a.Validate(tokenStr)
		if err != nil {
			slog.Warn("Token de admin recusado", "error", err, "remote_addr", r.RemoteAddr)
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), "admin:"+subject)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse leva o token de sessão do painel.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleLogin godoc
// @Summary      Login do admin
// @Description  Troca as credenciais do admin por um bearer token
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        credentials  body      loginRequest  true  "Credenciais do admin"
// @Success      200          {object}  LoginResponse
// @Failure      400          {object}  map[string]string
// @Failure      401          {object}  map[string]string
// @Failure      429          {object}  map[string]string
// @Router       /api/admin/login [post]
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, expiresAt, err := a.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			slog.Warn("🔒 Falha no login do admin", "username", req.Username, "remote_addr", r.RemoteAddr)
			respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		slog.Error("Erro no login", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("🔑 Admin autenticado", "username", req.Username)
	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// --- RATE LIMIT ---

// ClientRateLimit mantém um token bucket por IP de cliente. Quando há size buckets,
// os clientes vistos há mais tempo saem do cache.
type ClientRateLimit struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewClientRateLimit devolve nil quando rps ou burst não são positivos, o que desliga o limite.
func NewClientRateLimit(rps float64, burst, size int) (*ClientRateLimit, error) {
	if rps <= 0 || burst <= 0 {
		return nil, nil
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &ClientRateLimit{limit: rate.Limit(rps), burst: burst, limiters: cache}, nil
}

func (l *ClientRateLimit) allow(key string) bool {
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		// Outra requisição pode ter criado o bucket antes; fica o que entrou primeiro.
		if prev, found, _ := l.limiters.PeekOrAdd(key, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// Middleware responde 429 quando o cliente esgota o bucket.
func (l *ClientRateLimit) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			respondWithError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
