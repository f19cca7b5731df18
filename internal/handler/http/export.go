package http

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

var exportHeader = []string{
	"user_id", "email", "is_premium", "premium_expires_at", "days_remaining", "effective_status", "state",
}

// Export godoc
// @Summary      Exporta as assinaturas premium em CSV
// @Tags         admin
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200  {string}  string  "Arquivo CSV"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/admin/export [get]
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	filename := "premium-subscriptions-" + list.Summary.GeneratedAt.Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, sub := range list.Subscriptions {
		expires := ""
		if sub.PremiumExpiresAt != nil {
			expires = sub.PremiumExpiresAt.UTC().Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			sub.UserID,
			sub.Email,
			strconv.FormatBool(sub.IsPremium),
			expires,
			strconv.Itoa(sub.DaysRemaining),
			strconv.FormatBool(sub.EffectiveStatus),
			string(sub.State),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Os headers já foram enviados; só resta logar.
		slog.Error("Erro ao exportar CSV", "error", err)
	}
}
