package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRequestMiddleware_labels_by_route_pattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/sessions/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "session_id") == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/sessions/a", "/sessions/b", "/sessions/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	const route = "/sessions/{session_id}"
	require.Equal(t, 2.0, testutil.ToFloat64(m.Requests(route, http.MethodGet, http.StatusOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests(route, http.MethodGet, http.StatusNotFound)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrors(route)))
	require.Equal(t, 2, testutil.CollectAndCount(m.requestsTotal), "one series per route and status, not per path")
	require.Equal(t, 1, testutil.CollectAndCount(m.requestSeconds))
}

func TestObserveRequest_success_is_not_an_error(t *testing.T) {
	m := New()
	m.ObserveRequest("/sessions", http.MethodPost, http.StatusCreated, 0)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests("/sessions", http.MethodPost, http.StatusCreated)))
	require.Zero(t, testutil.CollectAndCount(m.httpErrors))
}
