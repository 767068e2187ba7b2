package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-gateways/core"
)

const KindBasic = "basic"

type BasicSignerConfig struct {
	Username string
	Password string
	// AllowEmptyPassword supports key-only schemes that send "key:".
	AllowEmptyPassword bool
}

type BasicSigner struct {
	config BasicSignerConfig
}

func NewBasicSigner(cfg BasicSignerConfig) *BasicSigner {
	return &BasicSigner{
		config: BasicSignerConfig{
			Username:           strings.TrimSpace(cfg.Username),
			Password:           strings.TrimSpace(cfg.Password),
			AllowEmptyPassword: cfg.AllowEmptyPassword,
		},
	}
}

func (s *BasicSigner) Sign(_ context.Context, req *core.TransportRequest) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	if s == nil || s.config.Username == "" || (s.config.Password == "" && !s.config.AllowEmptyPassword) {
		return fmt.Errorf("auth: basic username/password are required")
	}
	req.Headers = setValue(req.Headers, "Authorization", "Basic "+s.Encoded())
	return nil
}

// Encoded returns the base64 user:password pair.
func (s *BasicSigner) Encoded() string {
	if s == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s.config.Username + ":" + s.config.Password))
}

var _ core.RequestSigner = (*BasicSigner)(nil)
