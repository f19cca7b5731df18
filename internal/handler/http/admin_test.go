package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// serveAdmin passa req pelo sub-roteador de admin com um ator autenticado.
func serveAdmin(h *AdminHandler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req = req.WithContext(WithActor(req.Context(), "admin:root"))
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestAdminHandler_ExtendSubscription(t *testing.T) {
	t.Run("success - returns the new expiry", func(t *testing.T) {
		expires := testNow.Add(45 * domain.Day)
		mockService := &MockAdminService{
			ExtendFn: func(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error) {
				assert.Equal(t, "user-1", userID)
				assert.Equal(t, 45, days)
				assert.Equal(t, "admin:root", actor)
				return &service.AdminResult{UserID: userID, IsPremium: true, PremiumExpiresAt: &expires, RowsAffected: 1}, nil
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/extend-subscription", jsonBody(t, map[string]any{"userId": "user-1", "days": 45}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp AdminResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Subscription extended by 45 days", resp.Message)
		assert.True(t, resp.Result.PremiumExpiresAt.Equal(expires))
	})

	t.Run("error - validation failure returns 400", func(t *testing.T) {
		mockService := &MockAdminService{
			ExtendFn: func(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error) {
				return nil, fmt.Errorf("%w: days must be between 1 and 365, got %d", service.ErrValidation, days)
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/extend-subscription", jsonBody(t, map[string]any{"userId": "user-1", "days": 0}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "days must be between")
	})

	t.Run("error - invalid json returns 400", func(t *testing.T) {
		handler := NewAdminHandler(&MockAdminService{})
		req := httptest.NewRequest(http.MethodPost, "/extend-subscription", strings.NewReader("{"))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("error - oversized body returns 400 without calling the service", func(t *testing.T) {
		handler := NewAdminHandler(&MockAdminService{
			ExtendFn: func(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		})
		body := `{"userId":"` + strings.Repeat("a", maxJSONBodyBytes+1) + `","days":30}`
		req := httptest.NewRequest(http.MethodPost, "/extend-subscription", strings.NewReader(body))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAdminHandler_RevokePremium(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockService := &MockAdminService{
			RevokeFn: func(ctx context.Context, userID string, actor string) (*service.AdminResult, error) {
				assert.Equal(t, "user-1", userID)
				return &service.AdminResult{UserID: userID, RowsAffected: 1}, nil
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/revoke-premium", jsonBody(t, map[string]string{"userId": "user-1"}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Premium access revoked")
	})

	t.Run("error - persistence failure returns 500", func(t *testing.T) {
		mockService := &MockAdminService{
			RevokeFn: func(ctx context.Context, userID string, actor string) (*service.AdminResult, error) {
				return nil, fmt.Errorf("%w: revoke user-1: boom", service.ErrPersistence)
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/revoke-premium", jsonBody(t, map[string]string{"userId": "user-1"}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "boom")
	})
}

func TestAdminHandler_Bulk(t *testing.T) {
	t.Run("partial failure returns 207 with per-item results", func(t *testing.T) {
		mockService := &MockAdminService{
			BulkExtendFn: func(ctx context.Context, userIDs []string, days int, actor string) (*service.BulkResult, error) {
				assert.Equal(t, []string{"a", "b"}, userIDs)
				assert.Equal(t, 30, days)
				return &service.BulkResult{
					Total: 2, Succeeded: 1, Failed: 1,
					Items: []service.BulkItem{{UserID: "a", OK: true, RowsAffected: 1}, {UserID: "b", Error: "boom"}},
				}, nil
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/bulk/extend", jsonBody(t, map[string]any{"userIds": []string{"a", "b"}, "days": 30}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusMultiStatus, rr.Code)
		var res service.BulkResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, 1, res.Failed)
		assert.Len(t, res.Items, 2)
	})

	t.Run("bulk revoke all ok returns 200", func(t *testing.T) {
		mockService := &MockAdminService{
			BulkRevokeFn: func(ctx context.Context, userIDs []string, actor string) (*service.BulkResult, error) {
				return &service.BulkResult{Total: len(userIDs), Succeeded: len(userIDs)}, nil
			},
		}
		handler := NewAdminHandler(mockService)
		req := httptest.NewRequest(http.MethodPost, "/bulk/revoke", jsonBody(t, map[string]any{"userIds": []string{"a"}}))

		rr := serveAdmin(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func sampleList() *service.ActiveList {
	expires := testNow.Add(3 * domain.Day)
	return &service.ActiveList{
		Summary: service.Summary{TotalPremium: 1, Active: 1, ExpiringSoon: 1, GeneratedAt: testNow},
		Subscriptions: []service.ActiveSubscription{{
			UserID:           "user-1",
			Email:            "buyer@example.com",
			IsPremium:        true,
			PremiumExpiresAt: &expires,
			DaysRemaining:    3,
			EffectiveStatus:  true,
			State:            domain.StateActive,
		}},
	}
}

func TestAdminHandler_ListAndExport(t *testing.T) {
	mockService := &MockAdminService{
		ListActiveFn: func(ctx context.Context) (*service.ActiveList, error) { return sampleList(), nil },
		StatsFn: func(ctx context.Context) (*service.Summary, error) {
			return &service.Summary{TotalPremium: 4, Active: 3, ExpiredButActive: 1}, nil
		},
	}
	handler := NewAdminHandler(mockService)

	t.Run("subscriptions", func(t *testing.T) {
		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var list service.ActiveList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		require.Len(t, list.Subscriptions, 1)
		assert.Equal(t, "buyer@example.com", list.Subscriptions[0].Email)
		assert.Equal(t, 1, list.Summary.ExpiringSoon)
	})

	t.Run("stats", func(t *testing.T) {
		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"expired_but_active":1`)
	})

	t.Run("export", func(t *testing.T) {
		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/export", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "premium-subscriptions-20250601.csv")

		rows, err := csv.NewReader(rr.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, exportHeader, rows[0])
		assert.Equal(t, []string{"user-1", "buyer@example.com", "true", "2025-06-04T12:00:00Z", "3", "true", "active"}, rows[1])
	})
}

func TestAdminHandler_Audit(t *testing.T) {
	t.Run("passes the limit through", func(t *testing.T) {
		mockService := &MockAdminService{
			ListAuditFn: func(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
				assert.Equal(t, 20, limit)
				return []domain.AuditEntry{{ID: "1", Actor: "admin:root", Action: domain.ActionRevoke, UserID: "user-1"}}, nil
			},
		}
		handler := NewAdminHandler(mockService)

		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/audit?limit=20", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"action":"revoke"`)
	})

	t.Run("empty log is an empty array", func(t *testing.T) {
		mockService := &MockAdminService{
			ListAuditFn: func(ctx context.Context, limit int) ([]domain.AuditEntry, error) { return nil, nil },
		}
		handler := NewAdminHandler(mockService)

		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/audit", nil))

		assert.Equal(t, "[]", rr.Body.String())
	})

	t.Run("bad limit returns 400", func(t *testing.T) {
		handler := NewAdminHandler(&MockAdminService{})

		rr := serveAdmin(handler, httptest.NewRequest(http.MethodGet, "/audit?limit=ten", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAdminHandler_CheckExpirations(t *testing.T) {
	mockService := &MockAdminService{
		SweepFn: func(ctx context.Context, actor string) (*service.SweepResult, error) {
			assert.Equal(t, "admin:root", actor)
			return &service.SweepResult{Candidates: 2, Reverted: 2}, nil
		},
	}
	handler := NewAdminHandler(mockService)
	req := httptest.NewRequest(http.MethodPost, "/api/check-expirations", nil)
	req = req.WithContext(WithActor(req.Context(), "admin:root"))
	rr := httptest.NewRecorder()

	handler.CheckExpirations(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Expiration check completed", resp["message"])
	assert.Equal(t, float64(2), resp["reverted"])
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","service":"WooCommerce-Supabase Bridge"}`, rr.Body.String())
}
