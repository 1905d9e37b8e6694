package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPNotifier_Notify(t *testing.T) {
	ch := &fakeChannel{}
	n := NewAMQPWithChannel(ch, "", logger.NewNop())

	err := n.Notify(context.Background(), 7, "payment_paid", map[string]interface{}{"bookingId": 3})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, DefaultExchange, p.exchange)
	assert.Equal(t, "notification.payment_paid", p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.NotEmpty(t, p.msg.MessageId)

	var msg Message
	require.NoError(t, json.Unmarshal(p.msg.Body, &msg))
	assert.Equal(t, int64(7), msg.UserID)
	assert.Equal(t, "payment_paid", msg.TemplateKey)
	assert.Equal(t, p.msg.MessageId, msg.MessageID)
	assert.EqualValues(t, 3, msg.Payload["bookingId"])
}

func TestAMQPNotifier_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	n := NewAMQPWithChannel(ch, "events", logger.NewNop())

	err := n.Notify(context.Background(), 1, "quotation_created", nil)
	assert.ErrorIs(t, err, ErrPublish)
}

func TestAMQPNotifier_Close(t *testing.T) {
	ch := &fakeChannel{}
	n := NewAMQPWithChannel(ch, "", logger.NewNop())

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

func TestLogNotifier(t *testing.T) {
	n := NewLog(logger.NewNop())
	assert.NoError(t, n.Notify(context.Background(), 1, "booking_status_changed", nil))
}
