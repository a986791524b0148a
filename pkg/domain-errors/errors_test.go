package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	coded := New(CodeNotFound, "key missing")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"direct coded error", coded, CodeNotFound},
		{"wrapped once", fmt.Errorf("loading key: %w", coded), CodeNotFound},
		{"wrapped twice", fmt.Errorf("handler: %w", fmt.Errorf("loading key: %w", coded)), CodeNotFound},
		{"coded wrap around plain cause", Wrap(CodeCryptoFailure, "seal", errors.New("boom")), CodeCryptoFailure},
		{"plain error", errors.New("boom"), CodeInternal},
		{"nil", nil, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid_input: bad operator", New(CodeInvalidInput, "bad operator").Error())

	wrapped := Wrap(CodeUnavailable, "directory lookup", errors.New("timeout"))
	assert.Equal(t, "unavailable: directory lookup: timeout", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "timeout")
}
