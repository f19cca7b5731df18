package http

import "net/http"

// ServiceName é o nome informado pelo health check.
const ServiceName = "WooCommerce-Supabase Bridge"

// Health godoc
// @Summary      Verifica a saúde da API
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/health [get]
func Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "OK", "service": ServiceName})
}
