package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"grape-store/internal/models"
)

// Shop is the sender identity rendered into every email
type Shop struct {
	Name     string
	Email    string
	Phone    string
	Currency string
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

type templateData struct {
	Event *models.OrderEvent
	Shop  Shop
}

func (d templateData) Money(amount int64) string {
	return FormatAmount(amount, d.Shop.Currency)
}

const footer = `
{{.Shop.Name}}{{if .Shop.Email}}
{{.Shop.Email}}{{end}}{{if .Shop.Phone}}
{{.Shop.Phone}}{{end}}
`

const itemsBlock = `{{range .Event.Items}}
  - {{.ProductName}} x {{.Quantity}} @ {{$.Money .UnitPrice}}{{end}}
Total: {{$.Money .Event.Total}}
`

var sources = map[string][2]string{
	models.EventTypeOrderPlaced: {
		`Order {{.Event.OrderCode}} received`,
		`Hi {{.Event.CustomerName}},

Thanks for your order {{.Event.OrderCode}}.
` + itemsBlock + `
{{if eq (print .Event.PaymentMethod) "cod"}}You will pay on delivery.{{else}}Complete the payment to send your order for review.{{end}}
` + footer,
	},
	models.EventTypeOrderSubmitted: {
		`New order {{.Event.OrderCode}} awaiting review`,
		`Order {{.Event.OrderCode}} from {{.Event.CustomerName}} <{{.Event.CustomerEmail}}> is waiting for review.

Payment method: {{.Event.PaymentMethod}}
Payment status: {{.Event.PaymentStatus}}
` + itemsBlock + footer,
	},
	models.EventTypeOrderApproved: {
		`Order {{.Event.OrderCode}} approved`,
		`Hi {{.Event.CustomerName}},

Your order {{.Event.OrderCode}} has been approved and will be prepared for dispatch.{{if .Event.Note}}

Note: {{.Event.Note}}{{end}}
` + footer,
	},
	models.EventTypeOrderRejected: {
		`Order {{.Event.OrderCode}} could not be accepted`,
		`Hi {{.Event.CustomerName}},

We are sorry, your order {{.Event.OrderCode}} could not be accepted.{{if .Event.Note}}

Reason: {{.Event.Note}}{{end}}
` + footer,
	},
	models.EventTypeOrderStatusChanged: {
		`Order {{.Event.OrderCode}} is now {{label .Event.Status}}`,
		`Hi {{.Event.CustomerName}},

Your order {{.Event.OrderCode}} is now {{label .Event.Status}}.{{if .Event.Note}}

{{.Event.Note}}{{end}}
` + footer,
	},
	models.EventTypeOrderCancelled: {
		`Order {{.Event.OrderCode}} cancelled`,
		`Hi {{.Event.CustomerName}},

Your order {{.Event.OrderCode}} has been cancelled.{{if .Event.Note}}

{{.Event.Note}}{{end}}{{if eq (print .Event.PaymentStatus) "success"}}

Your payment of {{$.Money .Event.Total}} will be refunded.{{end}}
` + footer,
	},
	models.EventTypePaymentSuccess: {
		`Payment received for order {{.Event.OrderCode}}`,
		`Hi {{.Event.CustomerName}},

We received your payment of {{$.Money .Event.Total}} for order {{.Event.OrderCode}}. The order is now waiting for review.
` + footer,
	},
	models.EventTypePaymentFailed: {
		`Payment failed for order {{.Event.OrderCode}}`,
		`Hi {{.Event.CustomerName}},

The payment for order {{.Event.OrderCode}} did not go through. No money was taken. You can try again from your orders page.
` + footer,
	},
}

// Renderer turns order events into emails
type Renderer struct {
	templates map[string]mailTemplate
}

// NewRenderer parses every event template. It panics on a malformed
// template since they are compiled into the binary.
func NewRenderer() *Renderer {
	funcs := template.FuncMap{
		"label": func(s models.OrderStatus) string { return strings.ReplaceAll(string(s), "_", " ") },
	}

	r := &Renderer{templates: make(map[string]mailTemplate, len(sources))}
	for eventType, src := range sources {
		r.templates[eventType] = mailTemplate{
			subject: template.Must(template.New(eventType + "_subject").Funcs(funcs).Parse(src[0])),
			body:    template.Must(template.New(eventType + "_body").Funcs(funcs).Parse(src[1])),
		}
	}
	return r
}

// Supports reports whether the event type has a template
func (r *Renderer) Supports(eventType string) bool {
	_, ok := r.templates[eventType]
	return ok
}

// Render builds the email for event addressed to to
func (r *Renderer) Render(event *models.OrderEvent, shop Shop, to string) (*Message, error) {
	tmpl, ok := r.templates[event.EventType]
	if !ok {
		return nil, fmt.Errorf("no template for event type %s", event.EventType)
	}

	data := templateData{Event: event, Shop: shop}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	return &Message{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		Body:    body.String(),
	}, nil
}

// FormatAmount renders minor units as "INR 1,234.50".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	whole := fmt.Sprintf("%d", amount/100)
	var grouped []string
	for len(whole) > 3 {
		grouped = append([]string{whole[len(whole)-3:]}, grouped...)
		whole = whole[:len(whole)-3]
	}
	grouped = append([]string{whole}, grouped...)

	return fmt.Sprintf("%s %s%s.%02d", strings.ToUpper(currency), sign, strings.Join(grouped, ","), amount%100)
}
