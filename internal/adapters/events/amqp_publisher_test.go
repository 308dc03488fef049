package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/mocks"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	failures int
	sent     []published
	closed   bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("channel/connection is not open")
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func paidEvent() ports.BillingEvent {
	return ports.BillingEvent{
		Type:       "invoice.paid",
		AccountID:  "acct-1",
		InvoiceID:  "inv-1",
		OccurredAt: "2026-12-24T09:00:00Z",
		Data:       map[string]string{"payment_intent_id": "pi_1"},
	}
}

func newTestPublisher(t *testing.T, channels ...*fakeChannel) (*AMQPPublisher, *int) {
	t.Helper()
	dials := 0
	dial := func(url, exchange string) (channel, func() error, error) {
		if dials >= len(channels) {
			dials++
			return nil, nil, errors.New("connection refused")
		}
		ch := channels[dials]
		dials++
		return ch, func() error { return nil }, nil
	}
	p := newAMQPPublisher(AMQPConfig{URL: "amqp://test", Attempts: 3}, dial, &mocks.RecordingLogger{})
	p.backoff = &resilience.FixedBackoff{Delay: 0}
	return p, &dials
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(t, ch)

	require.NoError(t, p.Publish(context.Background(), paidEvent()))
	require.NoError(t, p.Publish(context.Background(), paidEvent()))

	assert.Equal(t, 1, *dials, "channel is reused")
	require.Len(t, ch.sent, 2)
	sent := ch.sent[0]
	assert.Equal(t, DefaultExchange, sent.exchange)
	assert.Equal(t, "invoice.paid", sent.key)
	assert.Equal(t, uint8(amqp.Persistent), sent.msg.DeliveryMode)
	assert.Equal(t, "application/json", sent.msg.ContentType)

	var body ports.BillingEvent
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, "inv-1", body.InvoiceID)
	assert.Equal(t, "pi_1", body.Data["payment_intent_id"])
}

func TestAMQPPublisher_ReopensAfterFailure(t *testing.T) {
	broken := &fakeChannel{failures: 1}
	healthy := &fakeChannel{}
	p, dials := newTestPublisher(t, broken, healthy)

	require.NoError(t, p.Publish(context.Background(), paidEvent()))

	assert.True(t, broken.closed)
	assert.Equal(t, 2, *dials)
	assert.Len(t, healthy.sent, 1)
}

func TestAMQPPublisher_GivesUp(t *testing.T) {
	p, dials := newTestPublisher(t)

	err := p.Publish(context.Background(), paidEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice.paid")
	assert.Equal(t, 3, *dials)
}

func TestNoopPublisher(t *testing.T) {
	logger := &mocks.RecordingLogger{}
	p := NewNoopPublisher(logger)

	assert.NoError(t, p.Publish(context.Background(), paidEvent()))
	assert.Equal(t, 1, logger.Count("debug"))
}
