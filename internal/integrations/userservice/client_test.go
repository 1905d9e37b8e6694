package userservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

func TestClient_GetUserWithGracefulDegradation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/users/20":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 20, "name": "Fahad", "role": "technician", "isActive": true}`))
		case "/internal/users/21":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, logger.NewNop())

	t.Run("found", func(t *testing.T) {
		u, err := c.GetUserWithGracefulDegradation(context.Background(), 20)
		require.NoError(t, err)
		assert.Equal(t, int64(20), u.ID)
		assert.Equal(t, "technician", u.Role)
		assert.True(t, u.IsActive)
	})

	t.Run("not found is not degraded", func(t *testing.T) {
		_, err := c.GetUserWithGracefulDegradation(context.Background(), 21)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NotErrorIs(t, err, ErrServiceDegraded)
	})

	t.Run("server error degrades", func(t *testing.T) {
		_, err := c.GetUserWithGracefulDegradation(context.Background(), 22)
		assert.ErrorIs(t, err, ErrServiceDegraded)
	})

	t.Run("unreachable degrades", func(t *testing.T) {
		dead := NewClient("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNop())
		_, err := dead.GetUserWithGracefulDegradation(context.Background(), 20)
		assert.ErrorIs(t, err, ErrServiceDegraded)
	})
}
