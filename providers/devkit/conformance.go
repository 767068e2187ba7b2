package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/redact"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateGatewayConformance checks the contract every adapter must keep: a
// stable lowercase id, at least one payment capability, and a scrubber that
// removes each secret and is idempotent.
func ValidateGatewayConformance(gateway core.Gateway, transcript string, secrets ...string) error {
	if gateway == nil {
		return fmt.Errorf("devkit: gateway is required")
	}
	id := gateway.ID()
	if strings.TrimSpace(id) == "" || id != strings.ToLower(id) {
		return fmt.Errorf("devkit: gateway id %q must be lowercase and non-empty", id)
	}
	supported := 0
	for _, action := range []core.Action{
		core.ActionPurchase,
		core.ActionAuthorize,
		core.ActionCapture,
		core.ActionVoid,
		core.ActionRefund,
		core.ActionVerify,
		core.ActionStore,
	} {
		if core.Supports(gateway, action) {
			supported++
		}
	}
	if supported == 0 {
		return fmt.Errorf("devkit: gateway %s supports no payment operation", id)
	}
	return ValidateScrubConformance(gateway.Scrub, transcript, secrets...)
}

// ValidateScrubConformance checks that scrub removes every secret from
// transcript, leaves the marker in place and is idempotent.
func ValidateScrubConformance(scrub func(string) string, transcript string, secrets ...string) error {
	if scrub == nil {
		return fmt.Errorf("devkit: scrub func is required")
	}
	once := scrub(transcript)
	for _, secret := range secrets {
		if secret != "" && strings.Contains(once, secret) {
			return fmt.Errorf("devkit: scrubbed transcript still contains %q", secret)
		}
	}
	if len(secrets) > 0 && !strings.Contains(once, redact.Marker) {
		return fmt.Errorf("devkit: scrubbed transcript has no %s marker", redact.Marker)
	}
	if twice := scrub(once); twice != once {
		return fmt.Errorf("devkit: scrub is not idempotent")
	}
	return nil
}
