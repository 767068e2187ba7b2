package transport

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

// FromConfig builds a REST adapter with its own http.Client. Zero fields keep
// the adapter defaults.
func FromConfig(cfg core.TransportConfig) (*RESTAdapter, error) {
	if cfg.TimeoutSeconds < 0 || cfg.MaxResponseBytes < 0 {
		return nil, core.GatewayError(
			"transport: timeout and response limit must not be negative",
			goerrors.CategoryBadInput,
			0,
			"",
			map[string]any{"timeout_seconds": cfg.TimeoutSeconds, "max_response_bytes": cfg.MaxResponseBytes},
		)
	}
	timeout := defaultRESTClientTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	adapter := NewRESTAdapter(&http.Client{Timeout: timeout})
	if cfg.MaxResponseBytes > 0 {
		adapter.MaxResponseBodyBytes = cfg.MaxResponseBytes
	}
	if agent := strings.TrimSpace(cfg.UserAgent); agent != "" {
		adapter.DefaultHeaders["User-Agent"] = agent
	}
	return adapter, nil
}
