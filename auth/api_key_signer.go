package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-gateways/core"
)

const (
	KindAPIKey  = "api_key"
	KindBearer  = "bearer"
	KindHeaders = "headers"
)

const defaultAPIKeyHeader = "X-API-Key"

type APIKeyProfile struct {
	Header     string
	Prefix     string
	QueryParam string
}

type APIKeySignerConfig struct {
	Profile APIKeyProfile
	Key     string
}

// APIKeySigner places a static key in a header, optionally prefixed, or in a
// query parameter when the profile names one.
type APIKeySigner struct {
	config APIKeySignerConfig
}

func NewAPIKeySigner(cfg APIKeySignerConfig) *APIKeySigner {
	profile := cfg.Profile
	profile.Header = strings.TrimSpace(profile.Header)
	profile.Prefix = strings.TrimSpace(profile.Prefix)
	profile.QueryParam = strings.TrimSpace(profile.QueryParam)
	if profile.Header == "" && profile.QueryParam == "" {
		profile.Header = defaultAPIKeyHeader
	}
	return &APIKeySigner{
		config: APIKeySignerConfig{
			Profile: profile,
			Key:     strings.TrimSpace(cfg.Key),
		},
	}
}

// NewBearerSigner sends token as "Authorization: Bearer <token>".
func NewBearerSigner(token string) *APIKeySigner {
	return NewAPIKeySigner(APIKeySignerConfig{
		Profile: APIKeyProfile{Header: "Authorization", Prefix: "Bearer"},
		Key:     token,
	})
}

func (s *APIKeySigner) Sign(_ context.Context, req *core.TransportRequest) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	if s == nil || s.config.Key == "" {
		return fmt.Errorf("auth: api key is required")
	}
	profile := s.config.Profile
	if profile.QueryParam != "" {
		req.Query = setValue(req.Query, profile.QueryParam, s.config.Key)
		return nil
	}
	value := s.config.Key
	if profile.Prefix != "" {
		value = profile.Prefix + " " + value
	}
	req.Headers = setValue(req.Headers, profile.Header, value)
	return nil
}

// HeaderSigner sets fixed credential headers, e.g. client id and secret pairs.
type HeaderSigner struct {
	headers map[string]string
}

func NewHeaderSigner(headers map[string]string) *HeaderSigner {
	cleaned := make(map[string]string, len(headers))
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			cleaned[key] = strings.TrimSpace(value)
		}
	}
	return &HeaderSigner{headers: cleaned}
}

func (s *HeaderSigner) Sign(_ context.Context, req *core.TransportRequest) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	if s == nil || len(s.headers) == 0 {
		return fmt.Errorf("auth: at least one header is required")
	}
	for key, value := range s.headers {
		if value == "" {
			return fmt.Errorf("auth: header %s has no value", key)
		}
		req.Headers = setValue(req.Headers, key, value)
	}
	return nil
}

var (
	_ core.RequestSigner = (*APIKeySigner)(nil)
	_ core.RequestSigner = (*HeaderSigner)(nil)
)
