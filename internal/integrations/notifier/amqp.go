package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange topic-exchange уведомлений
	DefaultExchange = "notifications"

	routingKeyPrefix = "notification."
	publishTimeout   = 3 * time.Second
)

// Message сообщение для сервиса доставки уведомлений
type Message struct {
	MessageID   string                 `json:"messageId"`
	UserID      int64                  `json:"userId"`
	TemplateKey string                 `json:"templateKey"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	OccurredAt  time.Time              `json:"occurredAt"`
}

// AMQPNotifier публикует уведомления в RabbitMQ с ключом notification.<template>
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	exchange string
	log      Logger
}

// NewAMQP подключается к брокеру и объявляет exchange
func NewAMQP(url, exchange string, log Logger) (*AMQPNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrConnect, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", ErrConnect, err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: declare exchange: %v", ErrConnect, err)
	}

	n := NewAMQPWithChannel(ch, exchange, log)
	n.conn = conn
	return n, nil
}

// NewAMQPWithChannel создает публикатор поверх готового канала
func NewAMQPWithChannel(ch Channel, exchange string, log Logger) *AMQPNotifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPNotifier{ch: ch, exchange: exchange, log: log}
}

// Notify публикует уведомление. Вызывающий не ждет доставки.
func (n *AMQPNotifier) Notify(ctx context.Context, userID int64, templateKey string, payload map[string]interface{}) error {
	msg := Message{
		MessageID:   uuid.NewString(),
		UserID:      userID,
		TemplateKey: templateKey,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPublish, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(pubCtx, n.exchange, routingKeyPrefix+templateKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    msg.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: %s for user=%d: %v", ErrPublish, templateKey, userID, err)
	}

	n.log.Info("Notify: published %s for user=%d (message %s)", templateKey, userID, msg.MessageID)
	return nil
}

// Close закрывает канал и соединение
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
