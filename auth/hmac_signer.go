package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/core"
)

const (
	KindHMAC = "hmac"

	defaultHMACHeader = "X-Signature"
	defaultTimeHeader = "X-Timestamp"
	defaultKeyHeader  = "X-Key-Id"
)

type HMACAlgorithm string

const (
	HMACSHA256 HMACAlgorithm = "sha256"
	HMACSHA384 HMACAlgorithm = "sha384"
	HMACSHA512 HMACAlgorithm = "sha512"
)

type HMACEncoding string

const (
	HMACHex    HMACEncoding = "hex"
	HMACBase64 HMACEncoding = "base64"
)

type HMACSignerConfig struct {
	Secret          string
	KeyID           string
	Algorithm       HMACAlgorithm
	SignatureHeader string
	TimestampHeader string
	KeyIDHeader     string
	Encoding        HMACEncoding
	// BodyOnly signs the raw body alone and sends no timestamp.
	BodyOnly        bool
	Now             func() time.Time
}

// HMACSigner signs "<timestamp>\n<method>\n<url>\n<body>" with a shared secret
// and sends the digest along with the timestamp and key id. In BodyOnly mode it
// signs the body alone, as SimplePay expects.
type HMACSigner struct {
	config HMACSignerConfig
}

func NewHMACSigner(cfg HMACSignerConfig) *HMACSigner {
	config := HMACSignerConfig{
		Secret:          strings.TrimSpace(cfg.Secret),
		KeyID:           strings.TrimSpace(cfg.KeyID),
		Algorithm:       HMACAlgorithm(strings.ToLower(strings.TrimSpace(string(cfg.Algorithm)))),
		SignatureHeader: firstNonEmpty(cfg.SignatureHeader, defaultHMACHeader),
		TimestampHeader: firstNonEmpty(cfg.TimestampHeader, defaultTimeHeader),
		KeyIDHeader:     firstNonEmpty(cfg.KeyIDHeader, defaultKeyHeader),
		Encoding:        HMACEncoding(strings.ToLower(strings.TrimSpace(string(cfg.Encoding)))),
		BodyOnly:        cfg.BodyOnly,
		Now:             cfg.Now,
	}
	if config.Encoding == "" {
		config.Encoding = HMACHex
	}
	if config.Algorithm == "" {
		config.Algorithm = HMACSHA384
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &HMACSigner{config: config}
}

func (s *HMACSigner) Sign(_ context.Context, req *core.TransportRequest) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	if s == nil || s.config.Secret == "" {
		return fmt.Errorf("auth: hmac secret is required")
	}
	newHash, err := hashFor(s.config.Algorithm)
	if err != nil {
		return err
	}
	timestamp := ""
	if !s.config.BodyOnly {
		timestamp = strconv.FormatInt(s.config.Now().UTC().Unix(), 10)
		req.Headers = setValue(req.Headers, s.config.TimestampHeader, timestamp)
	}
	if s.config.KeyID != "" {
		req.Headers = setValue(req.Headers, s.config.KeyIDHeader, s.config.KeyID)
	}
	req.Headers = setValue(req.Headers, s.config.SignatureHeader, s.Digest(timestamp, *req, newHash))
	return nil
}

// Digest computes the signature for req at timestamp.
func (s *HMACSigner) Digest(timestamp string, req core.TransportRequest, newHash func() hash.Hash) string {
	mac := hmac.New(newHash, []byte(s.config.Secret))
	if !s.config.BodyOnly {
		mac.Write([]byte(timestamp + "\n" + strings.ToUpper(strings.TrimSpace(req.Method)) + "\n" + strings.TrimSpace(req.URL) + "\n"))
	}
	mac.Write(req.Body)
	if s.config.Encoding == HMACBase64 {
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Sum returns the raw HMAC of parts, written in order, under secret.
func Sum(algorithm HMACAlgorithm, secret string, parts ...[]byte) ([]byte, error) {
	newHash, err := hashFor(HMACAlgorithm(strings.ToLower(strings.TrimSpace(string(algorithm)))))
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, []byte(secret))
	for _, part := range parts {
		mac.Write(part)
	}
	return mac.Sum(nil), nil
}

func hashFor(algorithm HMACAlgorithm) (func() hash.Hash, error) {
	switch algorithm {
	case HMACSHA256:
		return sha256.New, nil
	case HMACSHA384:
		return sha512.New384, nil
	case HMACSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("auth: unsupported hmac algorithm %q", algorithm)
	}
}

var _ core.RequestSigner = (*HMACSigner)(nil)
