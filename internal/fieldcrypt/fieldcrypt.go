// Package fieldcrypt encrypts sensitive fields inside arbitrary structured
// records before they are persisted. Field selection is a name-based
// heuristic, not a schema: it catches the common cases (passwords, tokens,
// contact data) but callers must not rely on it as the sole control for
// fields with unusual names.
package fieldcrypt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"vigil/internal/keys"
)

// sensitiveKeywords drive field matching, case-insensitively, on substring
// containment. Both camelCase and snake_case spellings are covered.
var sensitiveKeywords = []string{
	"password",
	"apikey", "api_key",
	"secret",
	"token",
	"credential",
	"privatekey", "private_key",
	"connectionstring", "connection_string",
	"email",
	"phone",
}

// Field keys of the encrypted-field shape produced by EncryptSensitive.
const (
	fieldValue   = "value"
	fieldKeyID   = "keyId"
	fieldIV      = "iv"
	fieldAuthTag = "authTag"
)

// Scrubber walks records and replaces sensitive string fields with encrypted
// envelopes via the key manager.
type Scrubber struct {
	keys *keys.Manager
}

func NewScrubber(manager *keys.Manager) *Scrubber {
	return &Scrubber{keys: manager}
}

// EncryptSensitive returns a copy of v with sensitive string fields replaced
// by encrypted-field maps. Non-container inputs pass through unchanged.
func (s *Scrubber) EncryptSensitive(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if str, ok := item.(string); ok && isSensitiveField(k) {
				enc, err := s.encryptValue(str)
				if err != nil {
					return nil, fmt.Errorf("encrypt field %q: %w", k, err)
				}
				out[k] = enc
				continue
			}
			child, err := s.EncryptSensitive(item)
			if err != nil {
				return nil, err
			}
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			child, err := s.EncryptSensitive(item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return v, nil
	}
}

// DecryptSensitive reverses EncryptSensitive: any map structurally matching
// the encrypted-field shape is decrypted back to its plaintext string.
func (s *Scrubber) DecryptSensitive(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if env, ok := asEnvelope(val); ok {
			plaintext, err := s.keys.Decrypt(env)
			if err != nil {
				return nil, fmt.Errorf("decrypt field: %w", err)
			}
			return string(plaintext), nil
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			child, err := s.DecryptSensitive(item)
			if err != nil {
				return nil, err
			}
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			child, err := s.DecryptSensitive(item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return v, nil
	}
}

func (s *Scrubber) encryptValue(plaintext string) (map[string]any, error) {
	env, err := s.keys.Encrypt([]byte(plaintext))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldValue:   base64.StdEncoding.EncodeToString(env.Ciphertext),
		fieldKeyID:   env.KeyID,
		fieldIV:      base64.StdEncoding.EncodeToString(env.IV),
		fieldAuthTag: base64.StdEncoding.EncodeToString(env.AuthTag),
	}, nil
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// asEnvelope detects the encrypted-field shape: exactly the four string
// fields produced by encryptValue.
func asEnvelope(m map[string]any) (*keys.Envelope, bool) {
	if len(m) != 4 {
		return nil, false
	}
	value, ok1 := m[fieldValue].(string)
	keyID, ok2 := m[fieldKeyID].(string)
	iv, ok3 := m[fieldIV].(string)
	tag, ok4 := m[fieldAuthTag].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, false
	}
	authTag, err := base64.StdEncoding.DecodeString(tag)
	if err != nil {
		return nil, false
	}
	return &keys.Envelope{
		KeyID:      keyID,
		IV:         nonce,
		Ciphertext: ciphertext,
		AuthTag:    authTag,
	}, true
}
