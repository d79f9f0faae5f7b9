// Package credstore persists encrypted session tokens keyed by account id.
// Tokens are encrypted at rest with ChaCha20-Poly1305 using a key derived,
// via HKDF, from a per-install secret; a plaintext token never leaves this
// package, callers only get back an opaque cloudclient.SessionToken to
// hand to Client.LoginWithSession.
package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/megacustom/core/internal/cloudclient"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the credentials directory.
const DirPerms = 0o700

const hkdfInfo = "megacustom credstore v1"

// ErrNotFound is returned by Load when no credential file exists for the
// account id.
var ErrNotFound = errors.New("credstore: not found")

// ErrCorrupt is returned by Load when the stored file fails to decrypt
// (wrong key, truncation, tampering). The caller should discard the token
// and require the user to re-login.
var ErrCorrupt = errors.New("credstore: corrupt, re-login required")

// Store persists encrypted session tokens under dir/<account-id>.bin.
type Store struct {
	dir    string
	key    []byte
	logger *slog.Logger
}

// New creates a Store rooted at dir (typically
// "${CONFIG_DIR}/MegaCustom/credentials"), deriving the encryption key from
// installSecret via HKDF-SHA256.
func New(dir string, installSecret []byte, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if len(installSecret) == 0 {
		return nil, fmt.Errorf("credstore: install secret must not be empty")
	}

	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return nil, fmt.Errorf("credstore: creating %s: %w", dir, err)
	}

	key := make([]byte, chacha20poly1305.KeySize)

	kdf := hkdf.New(sha256.New, installSecret, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("credstore: deriving key: %w", err)
	}

	return &Store{dir: dir, key: key, logger: logger}, nil
}

func (s *Store) path(accountID string) string {
	return filepath.Join(s.dir, accountID+".bin")
}

// Store encrypts token and writes it to <dir>/<accountID>.bin.
func (s *Store) Store(accountID string, token cloudclient.SessionToken) error {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return fmt.Errorf("credstore: building cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credstore: generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, token, []byte(accountID))

	// Write to a temp file in the same directory, then rename over the
	// target, so a crash never leaves a half-written credential file.
	tmp, err := os.CreateTemp(s.dir, "."+accountID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("credstore: writing %s: %w", accountID, err)
	}

	_, werr := tmp.Write(sealed)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}

	if werr == nil {
		werr = os.Rename(tmp.Name(), s.path(accountID))
	}

	if werr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("credstore: writing %s: %w", accountID, werr)
	}

	return nil
}

// Load decrypts and returns the session token for accountID. Returns
// ErrNotFound if no file exists, ErrCorrupt if decryption fails (logged;
// the caller must not retry the same ciphertext).
func (s *Store) Load(accountID string) (cloudclient.SessionToken, error) {
	data, err := os.ReadFile(s.path(accountID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("credstore: reading %s: %w", accountID, err)
	}

	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, fmt.Errorf("credstore: building cipher: %w", err)
	}

	if len(data) < aead.NonceSize() {
		s.logger.Warn("credstore: truncated credential file, discarding", slog.String("account_id", accountID))
		return nil, ErrCorrupt
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, []byte(accountID))
	if err != nil {
		s.logger.Warn("credstore: decrypt failed, discarding credential",
			slog.String("account_id", accountID), slog.String("error", err.Error()))

		_ = s.Delete(accountID)

		return nil, ErrCorrupt
	}

	return cloudclient.SessionToken(plain), nil
}

// Delete removes the stored credential for accountID, if any.
func (s *Store) Delete(accountID string) error {
	err := os.Remove(s.path(accountID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// ListAccountIDs returns the account ids with a stored credential.
func (s *Store) ListAccountIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("credstore: reading %s: %w", s.dir, err)
	}

	var ids []string

	for _, e := range entries {
		name := e.Name()
		const ext = ".bin"

		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			ids = append(ids, name[:len(name)-len(ext)])
		}
	}

	return ids, nil
}
