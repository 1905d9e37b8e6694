package catalogservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

func TestClient_GetService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/services/10":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 10, "name": "Deep cleaning", "price": "200.00", "discount": "20", "isActive": true}`))
		case "/internal/services/11":
			w.WriteHeader(http.StatusNotFound)
		case "/internal/services/12":
			_, _ = w.Write([]byte(`{broken`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, logger.NewNop())

	t.Run("found", func(t *testing.T) {
		s, err := c.GetService(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, "Deep cleaning", s.Name)
		assert.True(t, s.Price.Equal(decimal.RequireFromString("200")))
		assert.True(t, s.Discount.Equal(decimal.RequireFromString("20")))
		assert.True(t, s.IsActive)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetService(context.Background(), 11)
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("bad body", func(t *testing.T) {
		_, err := c.GetService(context.Background(), 12)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.GetService(context.Background(), 13)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("unreachable", func(t *testing.T) {
		dead := NewClient("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNop())
		_, err := dead.GetService(context.Background(), 10)
		assert.ErrorIs(t, err, ErrInternal)
	})
}
