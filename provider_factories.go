package gateways

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/cardnet"
	"github.com/goliatone/go-gateways/providers/engagingnetworks"
	"github.com/goliatone/go-gateways/providers/epayco"
	"github.com/goliatone/go-gateways/providers/hsbc"
	"github.com/goliatone/go-gateways/providers/simplepay"
	"github.com/goliatone/go-gateways/providers/stripeintents"
	"github.com/goliatone/go-gateways/security"
	"github.com/goliatone/go-gateways/transport"
)

// GatewayOption adjusts how a provider factory prepares its config.
type GatewayOption func(*gatewayOptions)

type gatewayOptions struct {
	ctx     context.Context
	secrets core.SecretProvider
}

// WithSecretProvider opens credentials stored with the security.SealedPrefix
// before the provider validates its config. Plain values pass through.
func WithSecretProvider(secrets core.SecretProvider) GatewayOption {
	return func(o *gatewayOptions) {
		o.secrets = secrets
	}
}

// WithUnsealContext sets the context handed to the secret provider.
func WithUnsealContext(ctx context.Context) GatewayOption {
	return func(o *gatewayOptions) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// unseal opens every sealed credential field. Without a secret provider a
// sealed value is an error rather than a credential sent to the gateway.
func unseal(opts []GatewayOption, fields ...*string) error {
	resolved := gatewayOptions{ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	if err := security.UnsealAll(resolved.ctx, resolved.secrets, fields...); err != nil {
		return core.WrapGatewayError(err, goerrors.CategoryBadInput, "unseal provider credentials", 0, "", nil)
	}
	return nil
}

// Transport builds the REST transport described by cfg.Transport. Set it as
// the Transport of several provider configs to share one client.
func Transport(cfg Config) (TransportAdapter, error) {
	return transport.FromConfig(cfg.Transport)
}

func CardNetGateway(cfg cardnet.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.MerchantID, &cfg.TerminalID); err != nil {
		return nil, err
	}
	return cardnet.New(cfg)
}

func EPaycoGateway(cfg epayco.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.PublicKey, &cfg.PrivateKey); err != nil {
		return nil, err
	}
	return epayco.New(cfg)
}

func EngagingNetworksGateway(cfg engagingnetworks.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.APIKey); err != nil {
		return nil, err
	}
	return engagingnetworks.New(cfg)
}

func HSBCGateway(cfg hsbc.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.ClientID, &cfg.ClientSecret, &cfg.PrivateKey, &cfg.Passphrase); err != nil {
		return nil, err
	}
	return hsbc.New(cfg)
}

func StripePaymentIntentsGateway(cfg stripeintents.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.SecretKey); err != nil {
		return nil, err
	}
	return stripeintents.New(cfg)
}

func SimplePayGateway(cfg simplepay.Config, opts ...GatewayOption) (core.Gateway, error) {
	if err := unseal(opts, &cfg.SecretKey); err != nil {
		return nil, err
	}
	return simplepay.New(cfg)
}
