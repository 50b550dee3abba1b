package deferred

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/natefinch/atomic"
)

// LoadOrCreateIdentity loads the scheduler's age x25519 identity from path,
// generating and persisting one on first run. Secrets inside deferred actions
// are encrypted to this identity at scheduling time and decrypted only inside
// fire.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(content)))
		if err != nil {
			return nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return identity, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, strings.NewReader(identity.String()+"\n")); err != nil {
		return nil, fmt.Errorf("persist identity: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, err
	}

	return identity, nil
}

// EncryptSecret encrypts plaintext to the identity's recipient and returns
// base64 ciphertext suitable for a JSON field.
func EncryptSecret(identity *age.X25519Identity, plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(identity *age.X25519Identity, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("creating age decryptor: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading plaintext: %w", err)
	}
	return string(plaintext), nil
}
