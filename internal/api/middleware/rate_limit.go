package middleware

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
)

const msgRateLimited = "слишком много запросов, повторите позже"

// RateLimiter ограничивает частоту запросов по ключу (лимиты живут в памяти процесса)
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	keyFunc  func(r *http.Request) string
	logger   Logger
}

// NewRateLimiter создает лимитер: rps запросов в секунду, burst запросов подряд
func NewRateLimiter(rps float64, burst int, keyFunc func(r *http.Request) string, logger Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		keyFunc:  keyFunc,
		logger:   logger,
	}
}

// ByPathVar ключ лимита по переменной пути mux
func ByPathVar(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		return mux.Vars(r)[name]
	}
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Middleware отвечает 429, когда лимит для ключа исчерпан
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		if !l.getLimiter(key).Allow() {
			l.logger.Warn("RateLimit: limit exceeded for key=%q path=%s", key, r.URL.Path)
			handlers.RespondError(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
