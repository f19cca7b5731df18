// Package metrics guarda os coletores do Prometheus, registrados no registro padrão
// via promauto.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// http_requests_total é um CONTADOR de requisições, fatiado por método, rota e status.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requisições HTTP recebidas.",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duração das requisições HTTP em segundos.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_orders_total",
			Help: "Eventos de pedido processados, por origem e desfecho.",
		},
		[]string{"source", "outcome"},
	)

	adminActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_admin_actions_total",
			Help: "Operações de extend e revoke do admin, por ação e resultado.",
		},
		[]string{"action", "result"},
	)

	sweepRevertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_sweep_reverted_total",
			Help: "Linhas do ledger revertidas para não premium pela varredura.",
		},
	)

	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_sweep_runs_total",
			Help: "Execuções da varredura de expiração, por resultado.",
		},
		[]string{"result"},
	)

	missingRowWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_missing_row_writes_total",
			Help: "Escritas no ledger que não acharam linha porque o usuário ainda não tem uma.",
		},
		[]string{"action"},
	)
)

// Middleware registra a contagem e a latência das requisições por padrão de rota.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Usamos um ResponseWriter envolvido para capturar o status code da resposta.
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		// Pega o padrão da rota (ex: /api/admin/...) para não criar métricas para cada valor diferente.
		routePattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, code).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, code).Observe(duration)
	})
}

func ObserveOrder(source, outcome string) {
	ordersTotal.WithLabelValues(source, outcome).Inc()
}

func ObserveAdminAction(action string, err error) {
	adminActionsTotal.WithLabelValues(action, result(err)).Inc()
}

func ObserveSweep(reverted int64, err error) {
	sweepRunsTotal.WithLabelValues(result(err)).Inc()
	if reverted > 0 {
		sweepRevertedTotal.Add(float64(reverted))
	}
}

func ObserveMissingRow(action string) {
	missingRowWritesTotal.WithLabelValues(action).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
