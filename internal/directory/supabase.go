package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	auth "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

const (
	// maxResponseBytes limita o que lemos de cada página da API de auth.
	maxResponseBytes = 4 << 20
	// listPageSize é o per_page pedido na busca por email; o padrão do GoTrue é 50.
	listPageSize = 200
	// maxListPages corta a paginação de uma busca que nunca termina.
	maxListPages = 50
)

// SupabaseDirectory consulta a API admin do Supabase Auth com a service-role key.
// A busca por id usa o cliente auth-go; a busca por email continua numa chamada
// HTTP própria porque AdminListUsers do auth-go não aceita filtro nem página e
// só enxergaria os primeiros 50 usuários.
type SupabaseDirectory struct {
	authURL    string
	serviceKey string
	client     *http.Client
	admin      auth.Client
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type supabaseUserList struct {
	Users []supabaseUser `json:"users"`
}

// NewSupabaseDirectory cria o cliente para o projeto em baseURL.
func NewSupabaseDirectory(baseURL, serviceKey string, timeout time.Duration) *SupabaseDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	authURL := strings.TrimRight(baseURL, "/") + "/auth/v1"
	httpClient := http.Client{Timeout: timeout}

	// O project reference só serve para montar a URL padrão, que trocamos logo em seguida.
	admin := auth.New("", serviceKey).
		WithCustomAuthURL(authURL).
		WithToken(serviceKey).
		WithClient(httpClient)

	return &SupabaseDirectory{
		authURL:    authURL,
		serviceKey: serviceKey,
		client:     &httpClient,
		admin:      admin,
	}
}

// FindIdentityByEmail pagina a busca do admin e devolve só o match exato.
// A listagem é uma busca aproximada, então o primeiro resultado não basta.
func (d *SupabaseDirectory) FindIdentityByEmail(ctx context.Context, email string) (string, error) {
	want := normalizeEmail(email)
	if want == "" {
		return "", ErrNotFound
	}

	for page := 1; page <= maxListPages; page++ {
		q := url.Values{}
		q.Set("filter", want)
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(listPageSize))

		var list supabaseUserList
		if err := d.get(ctx, "/admin/users?"+q.Encode(), &list); err != nil {
			return "", err
		}
		for _, u := range list.Users {
			if normalizeEmail(u.Email) == want {
				return u.ID, nil
			}
		}
		if len(list.Users) < listPageSize {
			break
		}
	}
	return "", ErrNotFound
}

// EmailForIdentity busca o usuário pelo id via auth-go. Ids do Supabase são UUIDs,
// qualquer outra coisa não existe no diretório.
func (d *SupabaseDirectory) EmailForIdentity(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// auth-go não recebe context; o timeout do http.Client limita a chamada.
	resp, err := d.admin.AdminGetUser(types.AdminGetUserRequest{UserID: id})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("auth api: %w", err)
	}
	return resp.Email, nil
}

// isStatus reconhece o status HTTP nos erros do auth-go, que vêm como
// "response status code 404: ...".
func isStatus(err error, code int) bool {
	return strings.Contains(err.Error(), "status code "+strconv.Itoa(code))
}

func (d *SupabaseDirectory) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.authURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)
	req.Header.Set("apikey", d.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("auth api: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("auth api returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("auth api: decode: %w", err)
	}
	return nil
}
