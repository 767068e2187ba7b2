package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// workspace is a private directory holding the key material of a single
// envelope call. Nothing in it outlives the call.
type workspace struct {
	dir string
}

func acquireWorkspace(parent string) (*workspace, error) {
	dir, err := os.MkdirTemp(strings.TrimSpace(parent), "gateways-envelope-")
	if err != nil {
		return nil, fmt.Errorf("security: envelope workspace: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("security: envelope workspace permissions: %w", err)
	}
	return &workspace{dir: dir}, nil
}

// importKeys stores an armored key block in the workspace and reads it back as
// a key ring. The count follows keyring import semantics: one per entity plus
// one more for each entity that carries its secret half.
func (w *workspace) importKeys(name string, armored string) (openpgp.EntityList, int, error) {
	if strings.TrimSpace(armored) == "" {
		return nil, 0, fmt.Errorf("security: envelope %s key is empty", name)
	}
	path := filepath.Join(w.dir, name+".asc")
	if err := os.WriteFile(path, []byte(armored), 0o600); err != nil {
		return nil, 0, fmt.Errorf("security: envelope write %s key: %w", name, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("security: envelope open %s key: %w", name, err)
	}
	defer file.Close()

	entities, err := openpgp.ReadArmoredKeyRing(file)
	if err != nil {
		return nil, 0, fmt.Errorf("security: envelope read %s key: %w", name, err)
	}
	imported := 0
	for _, entity := range entities {
		imported++
		if entity.PrivateKey != nil {
			imported++
		}
	}
	return entities, imported, nil
}

// release removes the workspace. A directory that is already gone is not an
// error.
func (w *workspace) release() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("security: envelope workspace cleanup: %w", err)
	}
	return nil
}
