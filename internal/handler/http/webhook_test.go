package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

const wooOrderPayload = `{
	"id": 5521,
	"status": "completed",
	"billing": {"email": "buyer@example.com", "first_name": "Ana"},
	"line_items": [{"product_id": 17, "quantity": 1}, {"product_id": 2860, "quantity": 1}]
}`

func wooSign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WooCommerceWebhookHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	return rr
}

func TestWooCommerceWebhookHandler(t *testing.T) {
	t.Run("success - qualifying order upgrades the buyer", func(t *testing.T) {
		mockService := &MockOrderApplier{
			ApplyOrderFn: func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
				assert.Equal(t, "5521", order.ID)
				assert.Equal(t, "buyer@example.com", order.BillingEmail)
				assert.Equal(t, "completed", order.Status)
				assert.Equal(t, "woocommerce", order.Source)
				assert.Equal(t, []domain.LineItem{{ProductID: "17"}, {ProductID: "2860"}}, order.LineItems)
				return &service.OrderResult{Outcome: service.OutcomeGranted, OrderID: order.ID, UserID: "user-1", RowsAffected: 1}, nil
			},
		}
		handler := NewWooCommerceWebhookHandler(mockService, "", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp WebhookResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "User upgraded to premium for 30 days", resp.Message)
	})

	t.Run("success - non-qualifying order needs no action", func(t *testing.T) {
		mockService := &MockOrderApplier{
			ApplyOrderFn: func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
				return &service.OrderResult{Outcome: service.OutcomeNoActionNeeded, OrderID: order.ID}, nil
			},
		}
		handler := NewWooCommerceWebhookHandler(mockService, "", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "No action needed")
	})

	t.Run("error - unknown buyer returns 404", func(t *testing.T) {
		mockService := &MockOrderApplier{
			ApplyOrderFn: func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
				return nil, fmt.Errorf("%w: %s", service.ErrIdentityNotFound, order.BillingEmail)
			},
		}
		handler := NewWooCommerceWebhookHandler(mockService, "", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "User not found")
	})

	t.Run("error - ledger failure returns 500", func(t *testing.T) {
		mockService := &MockOrderApplier{
			ApplyOrderFn: func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
				return nil, fmt.Errorf("%w: grant user-1: timeout", service.ErrPersistence)
			},
		}
		handler := NewWooCommerceWebhookHandler(mockService, "", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "Internal server error")
	})

	t.Run("error - malformed payload returns 400", func(t *testing.T) {
		handler := NewWooCommerceWebhookHandler(&MockOrderApplier{}, "", 30, 65536)

		rr := postWebhook(handler, `{"id": "abc", "line_items": `, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ping - webhook creation ping is acknowledged", func(t *testing.T) {
		handler := NewWooCommerceWebhookHandler(&MockOrderApplier{}, "", 30, 65536)

		rr := postWebhook(handler, "webhook_id=42", map[string]string{"Content-Type": "application/x-www-form-urlencoded"})

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("signature - valid signature is accepted", func(t *testing.T) {
		called := false
		mockService := &MockOrderApplier{
			ApplyOrderFn: func(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error) {
				called = true
				return &service.OrderResult{Outcome: service.OutcomeGranted}, nil
			},
		}
		handler := NewWooCommerceWebhookHandler(mockService, "shh", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, map[string]string{WooCommerceSignatureHeader: wooSign(wooOrderPayload, "shh")})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, called)
	})

	t.Run("signature - missing or wrong signature returns 401", func(t *testing.T) {
		handler := NewWooCommerceWebhookHandler(&MockOrderApplier{}, "shh", 30, 65536)

		rr := postWebhook(handler, wooOrderPayload, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = postWebhook(handler, wooOrderPayload, map[string]string{WooCommerceSignatureHeader: wooSign(wooOrderPayload, "other")})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("error - oversized body returns 400", func(t *testing.T) {
		handler := NewWooCommerceWebhookHandler(&MockOrderApplier{}, "", 30, 16)

		rr := postWebhook(handler, wooOrderPayload, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestWooOrder_StringIDs(t *testing.T) {
	var order wooOrder
	require.NoError(t, json.Unmarshal([]byte(`{"id":"77","status":"processing","billing":{"email":"x@y.z"},"line_items":[{"product_id":"2860"}]}`), &order))

	event := order.toEvent()
	assert.Equal(t, "77", event.ID)
	assert.Equal(t, "2860", event.LineItems[0].ProductID)
}
