package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/willjrcristo/premium-bridge/internal/domain"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// AdminService é o que os handlers de admin precisam da camada de serviço.
// O handler depende desta interface, não da implementação concreta, para podermos usar um mock nos testes.
type AdminService interface {
	Extend(ctx context.Context, userID string, days int, actor string) (*service.AdminResult, error)
	Revoke(ctx context.Context, userID string, actor string) (*service.AdminResult, error)
	BulkExtend(ctx context.Context, userIDs []string, days int, actor string) (*service.BulkResult, error)
	BulkRevoke(ctx context.Context, userIDs []string, actor string) (*service.BulkResult, error)
	ListActive(ctx context.Context) (*service.ActiveList, error)
	Stats(ctx context.Context) (*service.Summary, error)
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	Sweep(ctx context.Context, actor string) (*service.SweepResult, error)
}

// AdminHandler atende a API do painel sob /api/admin.
type AdminHandler struct {
	service AdminService
}

func NewAdminHandler(s AdminService) *AdminHandler {
	return &AdminHandler{service: s}
}

// Routes define as rotas de admin. A autenticação fica a cargo de quem monta o sub-roteador.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/extend-subscription", h.ExtendSubscription)
	r.Post("/revoke-premium", h.RevokePremium)
	r.Post("/bulk/extend", h.BulkExtend)
	r.Post("/bulk/revoke", h.BulkRevoke)
	r.Get("/subscriptions", h.ListSubscriptions)
	r.Get("/stats", h.Stats)
	r.Get("/export", h.Export)
	r.Get("/audit", h.Audit)

	return r
}

type extendRequest struct {
	UserID string `json:"userId"`
	Days   int    `json:"days"`
}

type revokeRequest struct {
	UserID string `json:"userId"`
}

type bulkRequest struct {
	UserIDs []string `json:"userIds"`
	Days    int      `json:"days,omitempty"`
}

// AdminResponse envolve o resultado de um comando de admin.
type AdminResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Result  *service.AdminResult `json:"result"`
}

// ExtendSubscription godoc
// @Summary      Estende uma assinatura
// @Description  Define a expiração como agora + dias e ativa o premium. A nova expiração substitui a atual.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      extendRequest  true  "Usuário e quantidade de dias"
// @Success      200      {object}  AdminResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/admin/extend-subscription [post]
func (h *AdminHandler) ExtendSubscription(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Extend(r.Context(), req.UserID, req.Days, ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, AdminResponse{
		Success: true,
		Message: "Subscription extended by " + strconv.Itoa(req.Days) + " days",
		Result:  res,
	})
}

// RevokePremium godoc
// @Summary      Revoga o acesso premium
// @Description  Desativa o premium; a expiração gravada não muda
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      revokeRequest  true  "Usuário a revogar"
// @Success      200      {object}  AdminResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/admin/revoke-premium [post]
func (h *AdminHandler) RevokePremium(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Revoke(r.Context(), req.UserID, ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, AdminResponse{Success: true, Message: "Premium access revoked", Result: res})
}

// BulkExtend godoc
// @Summary      Estende várias assinaturas
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      bulkRequest  true  "Usuários e quantidade de dias"
// @Success      200      {object}  service.BulkResult
// @Success      207      {object}  service.BulkResult
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /api/admin/bulk/extend [post]
func (h *AdminHandler) BulkExtend(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.BulkExtend(r.Context(), req.UserIDs, req.Days, ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, bulkStatus(res), res)
}

// BulkRevoke godoc
// @Summary      Revoga várias assinaturas
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      bulkRequest  true  "Usuários a revogar"
// @Success      200      {object}  service.BulkResult
// @Success      207      {object}  service.BulkResult
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /api/admin/bulk/revoke [post]
func (h *AdminHandler) BulkRevoke(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.BulkRevoke(r.Context(), req.UserIDs, ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, bulkStatus(res), res)
}

// bulkStatus é 200 quando todos os itens deram certo e 207 caso contrário.
func bulkStatus(res *service.BulkResult) int {
	if res.Failed > 0 {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// ListSubscriptions godoc
// @Summary      Lista as assinaturas premium
// @Description  Toda linha com is_premium ligado, ordenada pela expiração, com status derivado e email
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  service.ActiveList
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/admin/subscriptions [get]
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// Stats godoc
// @Summary      Contadores do painel
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  service.Summary
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/admin/stats [get]
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sum)
}

// Audit godoc
// @Summary      Entradas recentes da auditoria
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Máximo de entradas (padrão 100, máx 500)"
// @Success      200    {array}   domain.AuditEntry
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/admin/audit [get]
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.service.ListAudit(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// CheckExpirations godoc
// @Summary      Executa a varredura de expiração
// @Description  Reverte toda linha premium cuja expiração já passou
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/check-expirations [post]
func (h *AdminHandler) CheckExpirations(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Sweep(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Expiration check completed",
		"reverted": res.Reverted,
		"result":   res,
	})
}
