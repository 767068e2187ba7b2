package webhooks

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/core"
)

// Notification is one inbound call from a gateway.
type Notification struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
	ReceivedAt time.Time
}

// Header returns the value of key, matched case-insensitively.
func (n Notification) Header(key string) string {
	return headerValue(n.Headers, key)
}

// Result is what the HTTP surface should answer. Body and Headers are set when
// the gateway expects a signed acknowledgement.
type Result struct {
	Accepted   bool
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Update is the payment state a notification reports.
type Update struct {
	Action        core.Action
	Success       bool
	Status        string
	Message       string
	Authorization string
	ErrorCode     string
	OrderID       string
	Money         core.Money
	Test          bool
	Raw           map[string]any
	// Ignore marks notifications that carry no payment state, e.g. an event
	// type nobody subscribes to.
	Ignore bool
}

// Parser reads the update out of a verified notification.
type Parser func(n Notification) (Update, error)

// Acknowledger builds the reply body some gateways require.
type Acknowledger func(ctx context.Context, n Notification, now time.Time) (headers map[string]string, body []byte, err error)

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
