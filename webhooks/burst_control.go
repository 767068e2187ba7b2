package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// BurstMode decides what happens to a notification that repeats the payment
// state of another one seen inside the window. Gateways often send the same
// status more than once under different delivery ids.
//
// Coalesce anchors the window at the first notification, so one repeat is
// let through per window. Debounce restarts the window on every repeat, so a
// repeat only passes after a quiet period.
type BurstMode string

const (
	BurstModeNone     BurstMode = "none"
	BurstModeCoalesce BurstMode = "coalesce"
	BurstModeDebounce BurstMode = "debounce"
)

func (m BurstMode) normalized() BurstMode {
	switch BurstMode(strings.ToLower(strings.TrimSpace(string(m)))) {
	case BurstModeCoalesce:
		return BurstModeCoalesce
	case BurstModeDebounce:
		return BurstModeDebounce
	default:
		return BurstModeNone
	}
}

type BurstDecision struct {
	Allow    bool
	Metadata map[string]any
}

type BurstController interface {
	Allow(ctx context.Context, n Notification) (BurstDecision, error)
}

// BurstKeyExtractor returns false for notifications that should never be
// suppressed.
type BurstKeyExtractor func(n Notification) (string, bool)

type BurstOptions struct {
	Mode       BurstMode
	Window     time.Duration
	MaxEntries int
	ExtractKey BurstKeyExtractor
	Now        func() time.Time
}

// DefaultBurstController tracks window starts in memory. Keys are pruned
// once MaxEntries is reached, expired ones first.
type DefaultBurstController struct {
	opts BurstOptions

	mu     sync.Mutex
	starts map[string]time.Time
}

func NewBurstController(opts BurstOptions) *DefaultBurstController {
	opts.Mode = opts.Mode.normalized()
	if opts.Window <= 0 {
		opts.Window = 2 * time.Second
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 4096
	}
	if opts.ExtractKey == nil {
		opts.ExtractKey = DefaultBurstKeyExtractor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DefaultBurstController{opts: opts, starts: map[string]time.Time{}}
}

func (c *DefaultBurstController) Allow(_ context.Context, n Notification) (BurstDecision, error) {
	allow := BurstDecision{Allow: true}
	if c == nil || c.opts.Mode == BurstModeNone {
		return allow, nil
	}
	key, ok := c.opts.ExtractKey(n)
	if key = strings.TrimSpace(key); !ok || key == "" {
		return allow, nil
	}

	now := c.opts.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	start, seen := c.starts[key]
	if !seen || now.Sub(start) >= c.opts.Window {
		c.remember(key, now)
		return allow, nil
	}
	metadata := map[string]any{
		"burst_mode":      string(c.opts.Mode),
		"burst_key":       key,
		"burst_window_ms": c.opts.Window.Milliseconds(),
	}
	if c.opts.Mode == BurstModeDebounce {
		c.starts[key] = now
		metadata["debounced"] = true
	} else {
		metadata["coalesced"] = true
	}
	return BurstDecision{Metadata: metadata}, nil
}

// remember records a new window start. Caller holds mu.
func (c *DefaultBurstController) remember(key string, now time.Time) {
	if _, exists := c.starts[key]; !exists && len(c.starts) >= c.opts.MaxEntries {
		for k, start := range c.starts {
			if now.Sub(start) >= c.opts.Window {
				delete(c.starts, k)
			}
		}
		for k := range c.starts {
			if len(c.starts) < c.opts.MaxEntries {
				break
			}
			delete(c.starts, k)
		}
	}
	c.starts[key] = now
}

// DefaultBurstKeyExtractor keys notifications by provider and the burst_key
// metadata, falling back to the authorization and status a parser stored in
// metadata.
func DefaultBurstKeyExtractor(n Notification) (string, bool) {
	providerID := strings.ToLower(strings.TrimSpace(n.ProviderID))
	if providerID == "" {
		return "", false
	}
	if explicit := metadataString(n.Metadata, "burst_key"); explicit != "" {
		return providerID + ":" + strings.ToLower(explicit), true
	}
	authorization := metadataString(n.Metadata, "authorization")
	if authorization == "" {
		return "", false
	}
	return providerID + ":" + authorization + ":" + strings.ToLower(metadataString(n.Metadata, "status")), true
}

func metadataString(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

var _ BurstController = (*DefaultBurstController)(nil)
