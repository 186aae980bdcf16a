package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const secretBytes = 32

// LoadOrCreateSecret reads the instance secret from path, generating and
// persisting a new one on first run. created reports whether the file was written.
func LoadOrCreateSecret(path string) (secret []byte, created bool, err error) {
	b, err := os.ReadFile(path)
	if err == nil {
		s := strings.TrimSpace(string(b))
		if len(s) < secretBytes {
			return nil, false, fmt.Errorf("secret file %s is too short", path)
		}
		return []byte(s), false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	raw := make([]byte, secretBytes)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return nil, false, err
	}
	s := hex.EncodeToString(raw)
	if err = os.WriteFile(path, []byte(s), 0o600); err != nil {
		return nil, false, err
	}
	return []byte(s), true, nil
}
