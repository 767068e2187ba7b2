package security

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateways/core"
)

const armoredMessageType = "PGP MESSAGE"

// KeyMaterial is armored key text read from provider config. PublicKey belongs
// to the counterparty, PrivateKey to us.
type KeyMaterial struct {
	PublicKey  string
	PrivateKey string
	Passphrase string
}

type PGPOption func(*PGP)

// PGP signs and encrypts payloads for providers that require an authenticated
// encrypted body. Every call runs in its own temporary workspace.
type PGP struct {
	workspaceRoot string
	config        *packet.Config
}

// WithWorkspaceRoot sets the parent directory for per-call workspaces.
func WithWorkspaceRoot(dir string) PGPOption {
	return func(p *PGP) {
		p.workspaceRoot = strings.TrimSpace(dir)
	}
}

func WithPacketConfig(cfg *packet.Config) PGPOption {
	return func(p *PGP) {
		p.config = cfg
	}
}

func NewPGP(opts ...PGPOption) *PGP {
	p := &PGP{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// SignAndEncrypt encrypts plaintext to keys.PublicKey and signs it with
// keys.PrivateKey. The output is an armored PGP message.
func SignAndEncrypt(ctx context.Context, plaintext []byte, keys KeyMaterial) ([]byte, error) {
	return NewPGP().SignAndEncrypt(ctx, plaintext, keys)
}

// DecryptAndVerify decrypts an armored message with keys.PrivateKey and requires
// a valid signature from keys.PublicKey.
func DecryptAndVerify(ctx context.Context, ciphertext []byte, keys KeyMaterial) ([]byte, error) {
	return NewPGP().DecryptAndVerify(ctx, ciphertext, keys)
}

func (p *PGP) SignAndEncrypt(ctx context.Context, plaintext []byte, keys KeyMaterial) (out []byte, err error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	ws, err := acquireWorkspace(p.root())
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope workspace unavailable")
	}
	defer func() {
		if releaseErr := ws.release(); releaseErr != nil && err == nil {
			out, err = nil, envelopeError(releaseErr, goerrors.CategoryInternal, "envelope workspace cleanup failed")
		}
	}()

	recipients, imported, err := ws.importKeys("public", keys.PublicKey)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope public key import failed")
	}
	if imported != 1 {
		return nil, envelopeError(
			fmt.Errorf("security: imported %d keys from public key block", imported),
			goerrors.CategoryBadInput,
			"failed to import exactly 1 public key, check the public key provided",
		)
	}
	signers, imported, err := ws.importKeys("private", keys.PrivateKey)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope private key import failed")
	}
	if imported != 2 {
		return nil, envelopeError(
			fmt.Errorf("security: imported %d keys from private key block", imported),
			goerrors.CategoryBadInput,
			"failed to import the private key, check the private key provided",
		)
	}
	signer := signers[0]
	if err := unlock(signer, keys.Passphrase); err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope private key locked")
	}

	var buffer bytes.Buffer
	armored, err := armor.Encode(&buffer, armoredMessageType, nil)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope armor failed")
	}
	writer, err := openpgp.Encrypt(armored, []*openpgp.Entity{recipients[0]}, signer, nil, p.config)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope encrypt failed")
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope encrypt failed")
	}
	if err := writer.Close(); err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope encrypt failed")
	}
	if err := armored.Close(); err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope armor failed")
	}
	return buffer.Bytes(), nil
}

func (p *PGP) DecryptAndVerify(ctx context.Context, ciphertext []byte, keys KeyMaterial) (out []byte, err error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	ws, err := acquireWorkspace(p.root())
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope workspace unavailable")
	}
	defer func() {
		if releaseErr := ws.release(); releaseErr != nil && err == nil {
			out, err = nil, envelopeError(releaseErr, goerrors.CategoryInternal, "envelope workspace cleanup failed")
		}
	}()

	senders, _, err := ws.importKeys("public", keys.PublicKey)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope public key import failed")
	}
	owners, _, err := ws.importKeys("private", keys.PrivateKey)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope private key import failed")
	}
	for _, owner := range owners {
		if err := unlock(owner, keys.Passphrase); err != nil {
			return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope private key locked")
		}
	}

	block, err := armor.Decode(bytes.NewReader(bytes.TrimSpace(ciphertext)))
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryBadInput, "envelope message is not armored")
	}
	if block.Type != armoredMessageType {
		return nil, envelopeError(
			fmt.Errorf("security: unexpected armor type %q", block.Type),
			goerrors.CategoryBadInput,
			"envelope message is not a pgp message",
		)
	}
	keyring := append(openpgp.EntityList{}, owners...)
	keyring = append(keyring, senders...)
	details, err := openpgp.ReadMessage(block.Body, keyring, nil, p.config)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope decrypt failed")
	}
	plaintext, err := io.ReadAll(details.UnverifiedBody)
	if err != nil {
		return nil, envelopeError(err, goerrors.CategoryInternal, "envelope decrypt failed")
	}
	if !details.IsSigned || details.SignedBy == nil {
		return nil, envelopeError(
			fmt.Errorf("security: message is not signed by a known key"),
			goerrors.CategoryInternal,
			"envelope signature verification failed",
		)
	}
	if details.SignatureError != nil {
		return nil, envelopeError(details.SignatureError, goerrors.CategoryInternal, "envelope signature verification failed")
	}
	if len(senders.KeysById(details.SignedByKeyId)) == 0 {
		return nil, envelopeError(
			fmt.Errorf("security: message signed by unexpected key %X", details.SignedByKeyId),
			goerrors.CategoryInternal,
			"envelope signature verification failed",
		)
	}
	return plaintext, nil
}

func (p *PGP) root() string {
	if p == nil {
		return ""
	}
	return p.workspaceRoot
}

func unlock(entity *openpgp.Entity, passphrase string) error {
	if entity == nil || entity.PrivateKey == nil {
		return fmt.Errorf("security: private key is missing")
	}
	locked := entity.PrivateKey.Encrypted
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			locked = true
		}
	}
	if !locked {
		return nil
	}
	if passphrase == "" {
		return fmt.Errorf("security: private key is protected and no passphrase was given")
	}
	return entity.DecryptPrivateKeys([]byte(passphrase))
}

func envelopeError(source error, category goerrors.Category, message string) error {
	return goerrors.Wrap(source, category, "security: "+message).
		WithTextCode(core.GatewayErrorEnvelopeFailed).
		WithCode(envelopeStatus(category))
}

func envelopeStatus(category goerrors.Category) int {
	if category == goerrors.CategoryBadInput {
		return 400
	}
	return 500
}
