package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"grape-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

func sampleEvent(eventType string) *models.OrderEvent {
	order := &models.Order{
		ID:            3,
		OrderCode:     "GRP1234567890",
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		Status:        models.OrderStatusDispatched,
		PaymentStatus: models.PaymentStatusSuccess,
		PaymentMethod: models.PaymentMethodCard,
		Total:         125050,
		Items: []models.OrderItem{
			{ProductName: "Thompson Seedless", Quantity: 2, UnitPrice: 60000},
		},
	}
	return models.NewOrderEvent(eventType, order, "")
}

var shop = Shop{Name: "Grape Store", Email: "support@grapestore.local", Currency: "inr"}

func TestRendererCoversEveryEventType(t *testing.T) {
	r := NewRenderer()
	for _, eventType := range []string{
		models.EventTypeOrderPlaced,
		models.EventTypeOrderSubmitted,
		models.EventTypeOrderApproved,
		models.EventTypeOrderRejected,
		models.EventTypeOrderStatusChanged,
		models.EventTypeOrderCancelled,
		models.EventTypePaymentSuccess,
		models.EventTypePaymentFailed,
	} {
		t.Run(eventType, func(t *testing.T) {
			require.True(t, r.Supports(eventType))
			msg, err := r.Render(sampleEvent(eventType), shop, "asha@example.com")
			require.NoError(t, err)
			assert.Contains(t, msg.Subject, "GRP1234567890")
			assert.Contains(t, msg.Body, "Grape Store")
			assert.Equal(t, "asha@example.com", msg.To)
		})
	}
}

func TestRenderDetails(t *testing.T) {
	r := NewRenderer()

	msg, err := r.Render(sampleEvent(models.EventTypeOrderStatusChanged), shop, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Order GRP1234567890 is now dispatched", msg.Subject)

	placed, err := r.Render(sampleEvent(models.EventTypeOrderPlaced), shop, "asha@example.com")
	require.NoError(t, err)
	assert.Contains(t, placed.Body, "Thompson Seedless x 2 @ INR 600.00")
	assert.Contains(t, placed.Body, "Total: INR 1,250.50")
	assert.Contains(t, placed.Body, "Complete the payment")

	cancelled, err := r.Render(sampleEvent(models.EventTypeOrderCancelled), shop, "asha@example.com")
	require.NoError(t, err)
	assert.Contains(t, cancelled.Body, "will be refunded")
}

func TestRenderUnknownEvent(t *testing.T) {
	r := NewRenderer()
	assert.False(t, r.Supports("ORDER_TELEPORTED"))

	_, err := r.Render(sampleEvent("ORDER_TELEPORTED"), shop, "x@example.com")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "INR 0.00"},
		{5, "INR 0.05"},
		{30000, "INR 300.00"},
		{123456789, "INR 1,234,567.89"},
		{-250, "INR -2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount, "inr"))
	}
}

func TestSMTPMailerSend(t *testing.T) {
	var sent []*mail.Msg
	var sentCtx context.Context

	m, err := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     "587",
		Username: "mailer",
		Password: "pw",
		From:     "Grape Store <no-reply@grapestore.local>",
	})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.send = func(ctx context.Context, msgs ...*mail.Msg) error {
		sentCtx, sent = ctx, msgs
		return nil
	}

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	err = m.Send(ctx, &Message{To: "asha@example.com", Subject: "Hello", Body: "line one\nline two"})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "req-1", sentCtx.Value(ctxKey{}))

	rcpts, err := sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"asha@example.com"}, rcpts)

	from, err := sent[0].GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@grapestore.local", from)

	var buf bytes.Buffer
	_, err = sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Hello")
	assert.Contains(t, raw, "line one")
	assert.Contains(t, raw, "line two")
}

func TestSMTPMailerErrors(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "25", From: "no-reply@grapestore.local"})
	require.NoError(t, err)
	calls := 0
	m.send = func(context.Context, ...*mail.Msg) error {
		calls++
		return errors.New("421 service not available")
	}

	err = m.Send(context.Background(), &Message{To: "a@example.com"})
	assert.ErrorContains(t, err, "421")
	assert.Equal(t, 1, calls)

	assert.Error(t, m.Send(context.Background(), &Message{}))
	assert.ErrorContains(t, m.Send(context.Background(), &Message{To: "not an address"}), "invalid recipient")
	assert.Equal(t, 1, calls)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "smtp"})
	assert.ErrorContains(t, err, "invalid SMTP port")
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, NewLogMailer(zap.NewNop()).Send(context.Background(), &Message{To: "a@example.com"}))
}
