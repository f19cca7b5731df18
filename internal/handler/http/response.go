package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/willjrcristo/premium-bridge/internal/service"
)

// --- FUNÇÕES AUXILIARES ---

func respondWithError(w http.ResponseWriter, code int, message string) {
	slog.Error("Erro na API", "code", code, "message", message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Falha ao serializar resposta JSON", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithServiceError traduz os erros de negócio em status HTTP.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrIdentityNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrDirectory):
		slog.Error("Falha no diretório de identidades", "error", err)
		respondWithError(w, http.StatusBadGateway, "Identity service unavailable")
	default:
		slog.Error("Falha interna", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// maxJSONBodyBytes é o teto dos corpos JSON do admin quando o roteador não
// aplica um limite menor.
const maxJSONBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
