package inbound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/webhooks"
)

const (
	// ProviderPathValue is the path wildcard ServeHTTP reads the provider id
	// from, as in "POST /notifications/{provider}".
	ProviderPathValue = "provider"

	defaultMaxBodyBytes = 1 << 20
)

// Processor handles the notifications of one provider.
type Processor interface {
	Process(ctx context.Context, n webhooks.Notification) (webhooks.Result, error)
}

type Dispatcher struct {
	// MaxBodyBytes bounds the body ServeHTTP reads.
	MaxBodyBytes int64
	Logger       core.Logger
	Now          func() time.Time

	mu         sync.RWMutex
	processors map[string]Processor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		MaxBodyBytes: defaultMaxBodyBytes,
		Now:          func() time.Time { return time.Now().UTC() },
		processors:   map[string]Processor{},
	}
}

func (d *Dispatcher) Register(providerID string, processor Processor) error {
	if d == nil {
		return core.GatewayError("inbound: dispatcher is nil", goerrors.CategoryInternal, 0, "", nil)
	}
	providerID = normalizeProvider(providerID)
	if providerID == "" {
		return core.GatewayError("inbound: provider id is required", goerrors.CategoryBadInput, 0, "", nil)
	}
	if processor == nil {
		return core.GatewayError("inbound: processor is nil", goerrors.CategoryBadInput, 0, "", map[string]any{"provider_id": providerID})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processors == nil {
		d.processors = map[string]Processor{}
	}
	if _, exists := d.processors[providerID]; exists {
		msg := fmt.Sprintf("inbound: processor already registered for provider %q", providerID)
		return core.GatewayError(msg, goerrors.CategoryConflict, 0, core.GatewayErrorBadInput, map[string]any{"provider_id": providerID})
	}
	d.processors[providerID] = processor
	return nil
}

// RegisterTemplate builds and registers the processor of a notification
// template.
func (d *Dispatcher) RegisterTemplate(template webhooks.Template, ledger webhooks.DeliveryLedger, sink core.TransactionSink) error {
	if ledger == nil {
		ledger = webhooks.NewMemoryLedger()
	}
	processor := template.Processor(ledger, sink)
	if d != nil {
		processor.Logger = d.Logger
	}
	return d.Register(template.ProviderID, processor)
}

// Providers lists the registered provider ids in order.
func (d *Dispatcher) Providers() []string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.processors))
	for providerID := range d.processors {
		out = append(out, providerID)
	}
	sort.Strings(out)
	return out
}

// Dispatch hands n to the processor of its provider. Rejected signatures map
// to 401 and handler failures to 502, so the gateway redelivers.
func (d *Dispatcher) Dispatch(ctx context.Context, n webhooks.Notification) (webhooks.Result, error) {
	if d == nil {
		return webhooks.Result{}, core.GatewayError("inbound: dispatcher is nil", goerrors.CategoryInternal, 0, "", nil)
	}
	n.ProviderID = normalizeProvider(n.ProviderID)
	if n.ProviderID == "" {
		return webhooks.Result{}, core.GatewayError("inbound: provider id is required", goerrors.CategoryBadInput, 0, "", nil)
	}
	metadata := map[string]any{"provider_id": n.ProviderID}

	d.mu.RLock()
	processor := d.processors[n.ProviderID]
	d.mu.RUnlock()
	if processor == nil {
		msg := fmt.Sprintf("inbound: no processor registered for provider %q", n.ProviderID)
		return webhooks.Result{}, core.GatewayError(msg, goerrors.CategoryNotFound, 0, core.GatewayErrorProviderNotFound, metadata)
	}
	if n.ReceivedAt.IsZero() && d.Now != nil {
		n.ReceivedAt = d.Now().UTC()
	}

	result, err := processor.Process(ctx, n)
	if err != nil {
		if result.StatusCode == http.StatusUnauthorized {
			return result, core.WrapGatewayError(err, goerrors.CategoryAuth, "inbound: notification verification failed", 0, "", metadata)
		}
		// Operation failures default to 422; the gateway only retries on 5xx.
		return result, core.WrapGatewayError(err, goerrors.CategoryOperation, "inbound: notification processing failed", http.StatusBadGateway, "", metadata)
	}
	return result, nil
}

// ServeHTTP accepts POSTed notifications. The provider id comes from the
// {provider} path wildcard or, without one, the last path segment.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	result, err := d.Dispatch(r.Context(), webhooks.Notification{
		ProviderID: providerFromRequest(r),
		Headers:    headers,
		Body:       body,
		Metadata:   map[string]any{"remote_addr": r.RemoteAddr},
	})
	if err != nil {
		d.warn("notification dispatch failed", "path", r.URL.Path, "error", err.Error())
		http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
		return
	}
	for key, value := range result.Headers {
		w.Header().Set(key, value)
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(result.Body) > 0 {
		_, _ = w.Write(result.Body)
	}
}

func (d *Dispatcher) warn(message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	d.Logger.Warn(message, args...)
}

func providerFromRequest(r *http.Request) string {
	if value := strings.TrimSpace(r.PathValue(ProviderPathValue)); value != "" {
		return value
	}
	path := strings.Trim(r.URL.Path, "/")
	if index := strings.LastIndex(path, "/"); index >= 0 {
		path = path[index+1:]
	}
	return path
}

func normalizeProvider(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID))
}

var _ http.Handler = (*Dispatcher)(nil)

// statusFor returns the HTTP status carried by err, or 500.
func statusFor(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code >= 400 && rich.Code <= 599 {
		return rich.Code
	}
	return http.StatusInternalServerError
}
