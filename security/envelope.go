package security

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RequestEnvelopeField  = "RequestBase64"
	ResponseEnvelopeField = "ResponseBase64"
)

// Envelope wraps a JSON payload for transport: the payload is signed and
// encrypted, and the armored message travels base64 encoded inside
// {"RequestBase64": "..."}. Replies come back as {"ResponseBase64": "..."}.
type Envelope struct {
	Keys KeyMaterial
	PGP  *PGP
}

func NewEnvelope(keys KeyMaterial, pgp *PGP) *Envelope {
	if pgp == nil {
		pgp = NewPGP()
	}
	return &Envelope{Keys: keys, PGP: pgp}
}

// Seal returns the request body carrying payload.
func (e *Envelope) Seal(ctx context.Context, payload []byte) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("security: envelope is nil")
	}
	armored, err := e.pgp().SignAndEncrypt(ctx, payload, e.Keys)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]string{
		RequestEnvelopeField: base64.StdEncoding.EncodeToString(armored),
	})
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope encode failed")
	}
	return body, nil
}

// Open returns the plaintext carried by a response body. Bodies without a
// ResponseBase64 field are returned unchanged; providers send plain JSON for
// validation errors.
func (e *Envelope) Open(ctx context.Context, body []byte) ([]byte, bool, error) {
	if e == nil {
		return nil, false, fmt.Errorf("security: envelope is nil")
	}
	encoded, ok := envelopeField(body, ResponseEnvelopeField)
	if !ok {
		return body, false, nil
	}
	armored, err := DecodeBase64(encoded)
	if err != nil {
		return nil, true, envelopeError(err, goerrors.CategoryBadInput, "envelope response is not base64")
	}
	plaintext, err := e.pgp().DecryptAndVerify(ctx, armored, e.Keys)
	if err != nil {
		return nil, true, err
	}
	return plaintext, true, nil
}

func (e *Envelope) pgp() *PGP {
	if e.PGP == nil {
		return NewPGP()
	}
	return e.PGP
}

func envelopeField(body []byte, field string) (string, bool) {
	var values map[string]any
	if err := json.Unmarshal(body, &values); err != nil {
		return "", false
	}
	value, ok := values[field].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// DecodeBase64 accepts padded and unpadded standard encodings.
func DecodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
}
