// Package keys manages symmetric encryption keys: generation, rotation,
// password-wrapped export/import, and AEAD encrypt/decrypt primitives.
// Keys never leave the manager in plaintext outside Export.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/internal/keys/metrics"
)

// Typed errors for cryptographic operations. Callers must distinguish a
// missing key from a failed integrity check: the latter is security-relevant
// and must be audit-logged.
var (
	ErrNoActiveKey          = errors.New("no active encryption key")
	ErrKeyNotFound          = errors.New("encryption key not found")
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

// Status tracks a key through its lifecycle. Exactly one key is current at a
// time; rotated keys stay decryptable until externally garbage-collected.
type Status string

const (
	StatusActive     Status = "active"
	StatusRotating   Status = "rotating"
	StatusDeprecated Status = "deprecated"
)

const (
	// AlgorithmAESGCM is the only algorithm currently produced. The field is
	// carried per key so envelopes stay decryptable across future changes.
	AlgorithmAESGCM = "aes-256-gcm"

	keySize = 32
)

type key struct {
	id        string
	algorithm string
	material  []byte
	createdAt time.Time
	rotatedAt *time.Time
	status    Status
}

// Metadata describes a key without exposing its material.
type Metadata struct {
	ID        string     `json:"id"`
	Algorithm string     `json:"algorithm"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	RotatedAt *time.Time `json:"rotatedAt,omitempty"`
	Current   bool       `json:"current"`
}

// Envelope is the result of an Encrypt call. The key ID travels with the
// ciphertext so decryption survives rotation.
type Envelope struct {
	KeyID      string `json:"keyId"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
	AuthTag    []byte `json:"authTag"`
}

// Manager owns the key store. The mutex covers both the key map and the
// current pointer so rotation swaps atomically with respect to Encrypt.
type Manager struct {
	mu      sync.RWMutex
	keys    map[string]*key
	current string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager with a genesis key already current.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{keys: make(map[string]*key)}
	for _, opt := range opts {
		opt(m)
	}
	id, err := m.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate genesis key: %w", err)
	}
	m.mu.Lock()
	m.current = id
	m.mu.Unlock()
	return m, nil
}

// GenerateKey creates and registers a new 256-bit key. It does not change
// the current pointer; use Rotate for that.
func (m *Manager) GenerateKey() (string, error) {
	material := make([]byte, keySize)
	if _, err := rand.Read(material); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	k := &key{
		id:        uuid.NewString(),
		algorithm: AlgorithmAESGCM,
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

// Rotate marks the current key rotating, generates a fresh key, and swaps the
// current pointer. The old key remains available for decryption.
func (m *Manager) Rotate() (string, error) {
	id, err := m.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("rotate: %w", err)
	}

	m.mu.Lock()
	if old, ok := m.keys[m.current]; ok {
		now := time.Now().UTC()
		old.status = StatusRotating
		old.rotatedAt = &now
	}
	m.current = id
	m.mu.Unlock()

	m.metrics.IncrementRotations()
	if m.logger != nil {
		m.logger.Info("encryption key rotated", "key_id", id)
	}
	return id, nil
}

// CurrentKeyID returns the ID of the key Encrypt would use.
func (m *Manager) CurrentKeyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Keys lists metadata for all registered keys. Material is never included.
func (m *Manager) Keys() []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metadata, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Metadata{
			ID:        k.id,
			Algorithm: k.algorithm,
			Status:    k.status,
			CreatedAt: k.createdAt,
			RotatedAt: k.rotatedAt,
			Current:   k.id == m.current,
		})
	}
	return out
}

// Encrypt seals plaintext under the current key with a fresh random nonce.
func (m *Manager) Encrypt(plaintext []byte) (*Envelope, error) {
	m.mu.RLock()
	k, ok := m.keys[m.current]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveKey
	}
	return seal(k, plaintext)
}

// Decrypt opens an envelope using the key it was sealed under.
func (m *Manager) Decrypt(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrKeyNotFound
	}
	m.mu.RLock()
	k, ok := m.keys[env.KeyID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	plaintext, err := open(k, env)
	if err != nil {
		m.metrics.IncrementAuthFailures()
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// SecureDelete zeroizes key material before removing the key. Best effort:
// the GC may have copied the slice, but the canonical bytes are destroyed.
func (m *Manager) SecureDelete(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	for i := range k.material {
		k.material[i] = 0
	}
	delete(m.keys, keyID)
	if m.current == keyID {
		m.current = ""
	}
	return nil
}

func seal(k *key, plaintext []byte) (*Envelope, error) {
	block, err := aes.NewCipher(k.material)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	return &Envelope{
		KeyID:      k.id,
		IV:         nonce,
		Ciphertext: sealed[:tagStart],
		AuthTag:    sealed[tagStart:],
	}, nil
}

func open(k *key, env *Envelope) ([]byte, error) {
	block, err := aes.NewCipher(k.material)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	sealed := append(append([]byte{}, env.Ciphertext...), env.AuthTag...)
	return gcm.Open(nil, env.IV, sealed, nil)
}
