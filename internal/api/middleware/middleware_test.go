package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

func TestAuth(t *testing.T) {
	var gotID int64
	var gotRole domain.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		gotRole, _ = GetUserRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		userID     string
		role       string
		wantStatus int
	}{
		{"valid customer", "42", "customer", http.StatusNoContent},
		{"valid admin", "1", "admin", http.StatusNoContent},
		{"missing id", "", "customer", http.StatusUnauthorized},
		{"non numeric id", "abc", "customer", http.StatusUnauthorized},
		{"zero id", "0", "customer", http.StatusUnauthorized},
		{"unknown role", "42", "superuser", http.StatusUnauthorized},
		{"missing role", "42", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotRole = 0, ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderUserID, tt.userID)
			req.Header.Set(HeaderUserRole, tt.role)
			rec := httptest.NewRecorder()

			Auth(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, tt.userID, strconv.FormatInt(gotID, 10))
				assert.Equal(t, domain.Role(tt.role), gotRole)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		rec := httptest.NewRecorder()
		RequestID(next).ServeHTTP(rec, req)

		assert.Equal(t, "req-1", seen)
		assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	})
}

type observation struct {
	method, route, status string
}

type metricsRecorder struct {
	mu   sync.Mutex
	seen []observation
}

func (m *metricsRecorder) ObserveHTTPRequest(method, route, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, observation{method, route, status})
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := &metricsRecorder{}
	r := mux.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.HandleFunc("/bookings/{bookingId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/17", nil))

	require.Len(t, m.seen, 1)
	assert.Equal(t, observation{"GET", "/bookings/{bookingId}", "404"}, m.seen[0])
}

func TestRateLimiter_PerKey(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2, ByPathVar("provider"), logger.NewNop())

	r := mux.NewRouter()
	r.Handle("/webhooks/{provider}", limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	call := func(provider string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("stripe"))
	assert.Equal(t, http.StatusOK, call("stripe"))
	assert.Equal(t, http.StatusTooManyRequests, call("stripe"))

	// у другого провайдера собственный лимит
	assert.Equal(t, http.StatusOK, call("omise"))
}
