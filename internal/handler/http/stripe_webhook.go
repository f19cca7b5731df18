package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// StripeWebhookHandler transforma sessões de Checkout pagas em eventos de pedido:
// um produto premium vendido pela Stripe libera o acesso igual a um pedido do WooCommerce.
type StripeWebhookHandler struct {
	service      OrderApplier
	secret       string
	maxBodyBytes int64
}

func NewStripeWebhookHandler(s OrderApplier, secret string, maxBodyBytes int64) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		service:      s,
		secret:       secret,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleStripeWebhook godoc
// @Summary      Webhook do Stripe Checkout
// @Description  Libera o premium em checkout.session.completed e checkout.session.async_payment_succeeded
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  WebhookResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/webhook/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Erro ao ler corpo do webhook da Stripe", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Could not read request body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Error("Falha na verificação da assinatura do webhook da Stripe", "error", err)
		respondWithError(w, http.StatusBadRequest, "Webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		slog.Info("Webhook da Stripe recebido, mas não tratado", "event_type", event.Type)
		respondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: "No action needed"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.Error("Erro ao decodificar a sessão de checkout", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid checkout session payload")
		return
	}

	result, err := h.service.ApplyOrder(r.Context(), checkoutSessionToOrder(&session))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	msg := "No action needed"
	if result.Outcome == service.OutcomeGranted {
		msg = "User upgraded to premium"
	}
	respondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: msg, Result: result})
}

// checkoutSessionToOrder traduz a sessão para o vocabulário de pedidos da loja.
// Sessão paga conta como "completed". Os line items só vêm quando o endpoint os
// expande, então metadata["product_id"] fica como alternativa.
func checkoutSessionToOrder(s *stripe.CheckoutSession) domain.OrderEvent {
	order := domain.OrderEvent{
		ID:           s.ID,
		BillingEmail: s.CustomerEmail,
		Status:       "pending",
		Source:       "stripe",
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		order.BillingEmail = s.CustomerDetails.Email
	}

	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		order.Status = "completed"
	}

	if s.LineItems != nil {
		for _, item := range s.LineItems.Data {
			if item == nil || item.Price == nil || item.Price.Product == nil {
				continue
			}
			order.LineItems = append(order.LineItems, domain.LineItem{ProductID: item.Price.Product.ID})
		}
	}
	if productID := s.Metadata["product_id"]; productID != "" {
		order.LineItems = append(order.LineItems, domain.LineItem{ProductID: productID})
	}
	return order
}
