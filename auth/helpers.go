package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-gateways/core"
)

// Chain applies signers in order.
type Chain []core.RequestSigner

func (c Chain) Sign(ctx context.Context, req *core.TransportRequest) error {
	for _, signer := range c {
		if signer == nil {
			continue
		}
		if err := signer.Sign(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// NewSigner builds a signer from a config map keyed by kind. It lets callers
// describe credentials in configuration files.
func NewSigner(kind string, metadata map[string]any) (core.RequestSigner, error) {
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case KindAPIKey:
		return NewAPIKeySigner(APIKeySignerConfig{
			Profile: APIKeyProfile{
				Header:     readString(metadata, "header", "api_key_header"),
				Prefix:     readString(metadata, "prefix", "api_key_prefix"),
				QueryParam: readString(metadata, "query_param", "api_key_query_param"),
			},
			Key: readString(metadata, "api_key", "key", "token"),
		}), nil
	case KindBearer:
		return NewBearerSigner(readString(metadata, "token", "access_token")), nil
	case KindBasic:
		return NewBasicSigner(BasicSignerConfig{
			Username: readString(metadata, "username", "basic_username"),
			Password: readString(metadata, "password", "basic_password"),
		}), nil
	case KindHMAC:
		return NewHMACSigner(HMACSignerConfig{
			Secret:          readString(metadata, "hmac_secret", "secret"),
			KeyID:           readString(metadata, "hmac_key_id", "key_id"),
			Algorithm:       HMACAlgorithm(readString(metadata, "algorithm")),
			SignatureHeader: readString(metadata, "signature_header"),
			TimestampHeader: readString(metadata, "timestamp_header"),
			Encoding:        HMACEncoding(readString(metadata, "encoding")),
			BodyOnly:        readBool(metadata, "body_only"),
		}), nil
	case KindHeaders:
		headers := map[string]string{}
		for key := range metadata {
			if value := readString(metadata, key); value != "" {
				headers[key] = value
			}
		}
		return NewHeaderSigner(headers), nil
	default:
		return nil, fmt.Errorf("auth: unsupported signer kind %q", kind)
	}
}

func readString(metadata map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := metadata[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			trimmed := strings.TrimSpace(typed)
			if trimmed != "" {
				return trimmed
			}
		case []byte:
			trimmed := strings.TrimSpace(string(typed))
			if trimmed != "" {
				return trimmed
			}
		case fmt.Stringer:
			trimmed := strings.TrimSpace(typed.String())
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func readBool(metadata map[string]any, key string) bool {
	switch typed := metadata[key].(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	default:
		return false
	}
}

func setValue(values map[string]string, key string, value string) map[string]string {
	if values == nil {
		values = map[string]string{}
	}
	values[key] = value
	return values
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
