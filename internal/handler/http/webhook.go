package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// WooCommerceSignatureHeader leva base64(HMAC-SHA256(corpo, segredo)).
const WooCommerceSignatureHeader = "X-WC-Webhook-Signature"

// OrderApplier é a parte do serviço que os handlers de webhook usam.
type OrderApplier interface {
	ApplyOrder(ctx context.Context, order domain.OrderEvent) (*service.OrderResult, error)
}

// wooOrder é o pedaço do payload de pedido do WooCommerce que lemos.
type wooOrder struct {
	ID      json.Number `json:"id"`
	Status  string      `json:"status"`
	Billing struct {
		Email string `json:"email"`
	} `json:"billing"`
	LineItems []struct {
		ProductID json.Number `json:"product_id"`
	} `json:"line_items"`
}

func (o wooOrder) toEvent() domain.OrderEvent {
	event := domain.OrderEvent{
		ID:           o.ID.String(),
		BillingEmail: o.Billing.Email,
		Status:       o.Status,
		Source:       "woocommerce",
		LineItems:    make([]domain.LineItem, 0, len(o.LineItems)),
	}
	for _, item := range o.LineItems {
		event.LineItems = append(event.LineItems, domain.LineItem{ProductID: item.ProductID.String()})
	}
	return event
}

// WebhookResponse é o corpo devolvido para a loja.
type WebhookResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Result  *service.OrderResult `json:"result,omitempty"`
}

// WooCommerceWebhookHandler recebe as entregas de order.created e order.updated.
type WooCommerceWebhookHandler struct {
	service      OrderApplier
	secret       []byte
	grantDays    int
	maxBodyBytes int64
}

// NewWooCommerceWebhookHandler cria o handler. Sem segredo, a assinatura não é verificada.
func NewWooCommerceWebhookHandler(s OrderApplier, secret string, grantDays int, maxBodyBytes int64) *WooCommerceWebhookHandler {
	return &WooCommerceWebhookHandler{
		service:      s,
		secret:       []byte(secret),
		grantDays:    grantDays,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleWebhook godoc
// @Summary      Webhook de pedidos do WooCommerce
// @Description  Libera o premium para o comprador quando o pedido está completed/processing e contém um produto premium
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  WebhookResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/webhook [post]
func (h *WooCommerceWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	slog.Info("🛒 Webhook recebido do WooCommerce")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Erro ao ler corpo do webhook", "error", err)
		respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if len(h.secret) > 0 && !validWooSignature(payload, r.Header.Get(WooCommerceSignatureHeader), h.secret) {
		respondWithError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	// O WooCommerce testa um webhook novo com um corpo de formulário ("webhook_id=12")
	// antes dos pedidos reais; sem 2xx o webhook é desativado.
	if isWooPing(payload) {
		slog.Info("Ping de webhook recebido")
		respondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: "Webhook ping received"})
		return
	}

	var order wooOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order payload")
		return
	}

	result, err := h.service.ApplyOrder(r.Context(), order.toEvent())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if result.Outcome == service.OutcomeNoActionNeeded {
		respondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: "No action needed", Result: result})
		return
	}
	respondWithJSON(w, http.StatusOK, WebhookResponse{
		Success: true,
		Message: fmt.Sprintf("User upgraded to premium for %d days", h.grantDays),
		Result:  result,
	})
}

func isWooPing(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && trimmed[0] != '{' && bytes.HasPrefix(trimmed, []byte("webhook_id="))
}

func validWooSignature(payload []byte, signature string, secret []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
