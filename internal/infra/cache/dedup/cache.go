package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "webhook:processed:"
	DefaultTTL = 72 * time.Hour
)

// Cache отметки обработанных вебхуков в redis.
// Это только подсказка: отсутствие ключа не значит, что событие не обработано.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New создает кеш поверх готового клиента redis
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Connect создает клиента redis и проверяет соединение
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, addr, err)
	}

	return client, nil
}

// IsProcessed проверяет отметку для ключа идемпотентности
func (c *Cache) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: IsProcessed - %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// MarkProcessed ставит отметку с TTL
func (c *Cache) MarkProcessed(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, keyPrefix+key, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: MarkProcessed - %v", ErrUnavailable, err)
	}
	return nil
}

// Noop используется, когда redis не настроен. Вся дедупликация идет через БД.
type Noop struct{}

// IsProcessed всегда false
func (Noop) IsProcessed(context.Context, string) (bool, error) {
	return false, nil
}

// MarkProcessed ничего не делает
func (Noop) MarkProcessed(context.Context, string) error {
	return nil
}
