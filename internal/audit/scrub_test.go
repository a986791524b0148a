package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/fieldcrypt"
	"vigil/internal/keys"
)

func TestLogEvent_ScrubsSensitiveDetails(t *testing.T) {
	manager, err := keys.NewManager()
	require.NoError(t, err)
	scrubber := fieldcrypt.NewScrubber(manager)

	l := NewLogger([]byte("test-signing-key"), WithScrubber(scrubber))

	event, err := l.LogEvent(context.Background(), Entry{
		UserID:   "u1",
		Action:   "credential_update",
		Resource: "/accounts/u1",
		Details: map[string]any{
			"password": "hunter2",
			"note":     "routine rotation",
		},
	})
	require.NoError(t, err)

	// The sensitive field became an encryption envelope; the rest is intact.
	env, ok := event.Details["password"].(map[string]any)
	require.True(t, ok, "password should be an envelope, got %T", event.Details["password"])
	assert.NotEmpty(t, env["value"])
	assert.NotEqual(t, "hunter2", env["value"])
	assert.Equal(t, "routine rotation", event.Details["note"])

	// The chain hash covers the scrubbed form.
	assert.True(t, l.VerifyChainIntegrity().Valid)

	// And the envelope decrypts back to the original.
	restored, err := scrubber.DecryptSensitive(event.Details)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", restored.(map[string]any)["password"])
}

type failingScrubber struct{}

func (failingScrubber) EncryptSensitive(any) (any, error) {
	return nil, errors.New("kms unavailable")
}

func TestLogEvent_ScrubFailureRedacts(t *testing.T) {
	l := NewLogger([]byte("test-signing-key"), WithScrubber(failingScrubber{}))

	event, err := l.LogEvent(context.Background(), Entry{
		Action:   "credential_update",
		Resource: "/accounts/u1",
		Details:  map[string]any{"password": "hunter2"},
	})
	require.NoError(t, err)

	// The append still happened, with the details redacted rather than
	// leaked.
	assert.Equal(t, map[string]any{"redacted": true}, event.Details)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.VerifyChainIntegrity().Valid)
}
