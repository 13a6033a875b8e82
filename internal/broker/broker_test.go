package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"grape-store/internal/models"
	"grape-store/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then cancels the consumer.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func testOrder() *models.Order {
	return &models.Order{ID: 42, OrderCode: "GRP0000000042", CustomerEmail: "asha@example.com", Total: 30000}
}

func TestPublishKeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(&Producer{writer: w, logger: util.GetLogger()})

	event := models.NewOrderEvent(models.EventTypeOrderPlaced, testOrder(), "")
	require.NoError(t, pub.Publish(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-42", string(w.msgs[0].Key))

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.Equal(t, "GRP0000000042", decoded.OrderCode)
	assert.Equal(t, int64(30000), decoded.Total)
}

func TestPublishWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	pub := NewEventPublisher(&Producer{writer: w, logger: util.GetLogger()})

	err := pub.Publish(context.Background(), models.NewOrderEvent(models.EventTypeOrderPlaced, testOrder(), ""))
	assert.ErrorContains(t, err, "leader not available")
}

func encode(t *testing.T, eventType string, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.NewOrderEvent(eventType, testOrder(), ""))
	require.NoError(t, err)
	return kafka.Message{Value: value, Offset: offset}
}

func TestEventHandlerRouting(t *testing.T) {
	ctx := context.Background()
	var got []string

	h := NewEventHandler()
	h.On(models.EventTypeOrderSubmitted, func(ctx context.Context, e *models.OrderEvent) error {
		got = append(got, "submitted:"+e.OrderCode)
		return nil
	})

	require.NoError(t, h.HandleMessage(ctx, encode(t, models.EventTypeOrderSubmitted, 1)))
	require.NoError(t, h.HandleMessage(ctx, encode(t, models.EventTypeOrderPlaced, 2)))
	assert.Equal(t, []string{"submitted:GRP0000000042"}, got)

	h.OnAny(func(ctx context.Context, e *models.OrderEvent) error {
		got = append(got, "any:"+e.EventType)
		return nil
	})
	require.NoError(t, h.HandleMessage(ctx, encode(t, models.EventTypeOrderPlaced, 3)))
	assert.Equal(t, "any:ORDER_PLACED", got[len(got)-1])

	// malformed payloads are dropped, not retried
	assert.NoError(t, h.HandleMessage(ctx, kafka.Message{Value: []byte("{not json")}))
}

func TestStartConsumingCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		queue: []kafka.Message{
			encode(t, models.EventTypeOrderPlaced, 10),
			encode(t, models.EventTypeOrderPlaced, 11),
			encode(t, models.EventTypeOrderPlaced, 12),
		},
		cancel: cancel,
	}
	c := &Consumer{reader: reader, topic: "test", logger: util.GetLogger()}

	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		if msg.Offset == 11 {
			return errors.New("smtp down")
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{10, 12}, reader.committed)
}
