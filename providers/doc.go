// Package providers holds the base every built-in gateway adapter embeds.
// Gateway sends one signed call through the transport, applies the status
// overrides of its strategy and normalizes the reply. Adapters live in the
// subpackages, one per provider.
package providers
