package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/things/{id}", "418"))
	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/things/"+id, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/things/{id}", "418")))
}

func TestMiddleware_SilentHandlerCountsAsOK(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "200")))
}

func TestObserveSweep(t *testing.T) {
	reverted := testutil.ToFloat64(sweepRevertedTotal)
	failed := testutil.ToFloat64(sweepRunsTotal.WithLabelValues("error"))

	ObserveSweep(4, nil)
	ObserveSweep(0, errors.New("locked"))

	assert.Equal(t, reverted+4, testutil.ToFloat64(sweepRevertedTotal))
	assert.Equal(t, failed+1, testutil.ToFloat64(sweepRunsTotal.WithLabelValues("error")))
}

func TestObserveAdminAction(t *testing.T) {
	before := testutil.ToFloat64(adminActionsTotal.WithLabelValues("extend", "ok"))
	ObserveAdminAction("extend", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(adminActionsTotal.WithLabelValues("extend", "ok")))
}
