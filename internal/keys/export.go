package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	dErrors "vigil/pkg/domain-errors"
)

// Key wrapping parameters. The iteration count follows current OWASP guidance
// for PBKDF2-HMAC-SHA256.
const (
	wrapIterations = 210_000
	wrapSaltSize   = 16
)

// wrappedKey is the export blob layout. Salt and iterations travel with the
// blob so imports survive parameter changes.
type wrappedKey struct {
	Algorithm  string `json:"algorithm"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Wrapped    []byte `json:"wrapped"`
}

// Export wraps a key's material under a password-derived key and returns an
// opaque blob suitable for offline escrow.
func (m *Manager) Export(keyID, password string) ([]byte, error) {
	if password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "export password cannot be empty")
	}

	m.mu.RLock()
	k, ok := m.keys[keyID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	salt := make([]byte, wrapSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	kek := pbkdf2.Key([]byte(password), salt, wrapIterations, keySize, sha256.New)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("init wrap cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init wrap gcm: %w", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate wrap nonce: %w", err)
	}

	blob := wrappedKey{
		Algorithm:  k.algorithm,
		Iterations: wrapIterations,
		Salt:       salt,
		IV:         iv,
		Wrapped:    gcm.Seal(nil, iv, k.material, nil),
	}
	out, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("marshal export blob: %w", err)
	}
	return out, nil
}

// Import unwraps an exported blob and registers the key material under a new
// ID with active status. A wrong password surfaces as an authentication
// failure, not a parse error.
func (m *Manager) Import(blob []byte, password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "import password cannot be empty")
	}

	var wrapped wrappedKey
	if err := json.Unmarshal(blob, &wrapped); err != nil {
		return "", dErrors.Wrap(dErrors.CodeInvalidInput, "malformed key blob", err)
	}
	if wrapped.Iterations <= 0 || len(wrapped.Salt) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed key blob")
	}

	kek := pbkdf2.Key([]byte(password), wrapped.Salt, wrapped.Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(kek)
	if err != nil {
		return "", fmt.Errorf("init unwrap cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init unwrap gcm: %w", err)
	}
	material, err := gcm.Open(nil, wrapped.IV, wrapped.Wrapped, nil)
	if err != nil {
		m.metrics.IncrementAuthFailures()
		return "", ErrAuthenticationFailed
	}
	if len(material) != keySize {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unexpected key size in blob")
	}

	k := &key{
		id:        uuid.NewString(),
		algorithm: wrapped.Algorithm,
		material:  material,
		createdAt: time.Now().UTC(),
		status:    StatusActive,
	}
	m.mu.Lock()
	m.keys[k.id] = k
	m.mu.Unlock()

	m.metrics.IncrementGenerated()
	return k.id, nil
}
