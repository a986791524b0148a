package fieldcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/keys"
)

func newScrubber(t *testing.T) *Scrubber {
	t.Helper()
	mgr, err := keys.NewManager()
	require.NoError(t, err)
	return NewScrubber(mgr)
}

func TestEncryptSensitive_ReplacesMatchingFields(t *testing.T) {
	s := newScrubber(t)

	record := map[string]any{
		"username":  "alice",
		"password":  "hunter2",
		"apiKey":    "sk-12345",
		"userEmail": "alice@example.com",
		"note":      "plain",
	}

	out, err := s.EncryptSensitive(record)
	require.NoError(t, err)
	m := out.(map[string]any)

	assert.Equal(t, "alice", m["username"])
	assert.Equal(t, "plain", m["note"])

	for _, field := range []string{"password", "apiKey", "userEmail"} {
		env, ok := m[field].(map[string]any)
		require.True(t, ok, "field %q should be encrypted", field)
		assert.NotEmpty(t, env["value"])
		assert.NotEmpty(t, env["keyId"])
		assert.NotEmpty(t, env["iv"])
		assert.NotEmpty(t, env["authTag"])
		assert.NotEqual(t, record[field], env["value"])
	}
}

func TestEncryptSensitive_WalksNestedStructures(t *testing.T) {
	s := newScrubber(t)

	record := map[string]any{
		"connections": []any{
			map[string]any{"name": "db", "connectionString": "postgres://u:p@h/db"},
			map[string]any{"name": "cache", "host": "redis"},
		},
		"meta": map[string]any{"ownerPhone": "+15551234567"},
	}

	out, err := s.EncryptSensitive(record)
	require.NoError(t, err)
	m := out.(map[string]any)

	conns := m["connections"].([]any)
	first := conns[0].(map[string]any)
	_, encrypted := first["connectionString"].(map[string]any)
	assert.True(t, encrypted)

	second := conns[1].(map[string]any)
	assert.Equal(t, "redis", second["host"])

	meta := m["meta"].(map[string]any)
	_, encrypted = meta["ownerPhone"].(map[string]any)
	assert.True(t, encrypted)
}

func TestDecryptSensitive_RoundTrip(t *testing.T) {
	s := newScrubber(t)

	record := map[string]any{
		"password": "opensesame",
		"nested":   map[string]any{"refreshToken": "tok-99"},
		"list":     []any{map[string]any{"secret": "shh"}},
		"count":    3.0,
	}

	encrypted, err := s.EncryptSensitive(record)
	require.NoError(t, err)
	decrypted, err := s.DecryptSensitive(encrypted)
	require.NoError(t, err)

	assert.Equal(t, record, decrypted)
}

func TestScrubber_NonObjectPassthrough(t *testing.T) {
	s := newScrubber(t)

	for _, v := range []any{"password string", 42, 1.5, true, nil} {
		out, err := s.EncryptSensitive(v)
		require.NoError(t, err)
		assert.Equal(t, v, out)

		out, err = s.DecryptSensitive(v)
		require.NoError(t, err)
		assert.Equal(t, v, out)
	}
}

func TestIsSensitiveField(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		sensitive bool
	}{
		{"exact match", "password", true},
		{"case insensitive", "PASSWORD", true},
		{"substring", "userPasswordHash", true},
		{"snake case", "api_key", true},
		{"camel case", "apiKey", true},
		{"private key", "privateKey", true},
		{"plain field", "username", false},
		{"lookalike", "passport", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sensitive, isSensitiveField(tt.field))
		})
	}
}
