// Package core contains the gateway contracts, the multi-step operation chain,
// response normalization and the service that dispatches payment operations to
// registered gateways. Provider adapters depend on this package; core must not
// depend on provider-specific or transport-specific code.
package core
