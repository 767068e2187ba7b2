package devkit

import (
	"context"
	"net/http"

	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers"
	"github.com/goliatone/go-gateways/redact"
)

const scriptedBaseURL = "https://gateway.test"

// ScriptedGateway supports every capability with one POST per operation to
// https://gateway.test/<action>. Replies are read as {"ok", "id", "message",
// "error"}. It lets service, command and job tests run without a real
// provider.
type ScriptedGateway struct {
	*providers.Gateway
}

func NewScriptedGateway(id string, transport core.TransportAdapter) *ScriptedGateway {
	base, err := providers.NewGateway(providers.GatewayConfig{
		ID:        id,
		TestMode:  true,
		Transport: transport,
		Strategy:  ScriptedStrategy(id),
		Scrubber:  redact.New(redact.JSONDigits("number"), redact.Bearer()),
		Headers:   map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		panic(err)
	}
	return &ScriptedGateway{Gateway: base}
}

func ScriptedStrategy(id string) core.Strategy {
	return core.Strategy{
		ProviderID: id,
		Success: func(response any, _ string) bool {
			return core.Bool(response, "ok")
		},
		Message: func(response any, _ string) string {
			return core.String(response, "message")
		},
		Authorization: func(response any, _ string) string {
			return core.String(response, "id")
		},
		ErrorCode: func(response any, _ string) string {
			return core.String(response, "error")
		},
		StatusOverrides: core.InvalidCredentialsOverride(),
	}
}

func (g *ScriptedGateway) run(ctx context.Context, action core.Action, req core.PaymentRequest) (core.ChainResult, error) {
	body, err := providers.JSONBody(map[string]any{
		"amount":        req.Money.Cents(),
		"currency":      req.Money.Currency,
		"authorization": req.Authorization,
		"token":         req.Source.Token,
		"order_id":      req.OrderID,
	})
	if err != nil {
		return core.ChainResult{}, err
	}
	return g.Single(ctx, string(action), providers.Call{
		Action:      string(action),
		Method:      http.MethodPost,
		URL:         providers.URL(scriptedBaseURL, string(action)),
		Body:        body,
		Idempotency: req.IdempotencyKey,
	})
}

func (g *ScriptedGateway) Purchase(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionPurchase, req)
}

func (g *ScriptedGateway) Authorize(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionAuthorize, req)
}

func (g *ScriptedGateway) Capture(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionCapture, req)
}

func (g *ScriptedGateway) Void(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionVoid, req)
}

func (g *ScriptedGateway) Refund(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionRefund, req)
}

func (g *ScriptedGateway) Verify(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionVerify, req)
}

func (g *ScriptedGateway) Store(ctx context.Context, req core.PaymentRequest) (core.ChainResult, error) {
	return g.run(ctx, core.ActionStore, req)
}

var (
	_ core.Gateway    = (*ScriptedGateway)(nil)
	_ core.Purchaser  = (*ScriptedGateway)(nil)
	_ core.Authorizer = (*ScriptedGateway)(nil)
	_ core.Capturer   = (*ScriptedGateway)(nil)
	_ core.Voider     = (*ScriptedGateway)(nil)
	_ core.Refunder   = (*ScriptedGateway)(nil)
	_ core.Verifier   = (*ScriptedGateway)(nil)
	_ core.Storer     = (*ScriptedGateway)(nil)
)
