package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLog_AllTime(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 5)

	export, err := l.ExportLog(time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Len(t, export.Events, 5)
	assert.NotEmpty(t, export.MerkleRoot)
	assert.NotEmpty(t, export.Signature)
	assert.False(t, export.ExportedAt.IsZero())

	ok, err := l.VerifySignedExport(export)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportLog_DateRangeIsInclusive(t *testing.T) {
	l := newTestLogger()
	events := logN(t, l, 3)

	start := events[1].Timestamp
	end := events[2].Timestamp
	export, err := l.ExportLog(start, end)
	require.NoError(t, err)
	assert.Len(t, export.Events, 2)
	assert.Equal(t, events[1].ID, export.Events[0].ID)
}

func TestExportLog_EmptyRange(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 2)

	export, err := l.ExportLog(time.Now().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, export.Events)
	assert.Equal(t, "", export.MerkleRoot)

	ok, err := l.VerifySignedExport(export)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySignedExport_DetectsMutation(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 4)

	export, err := l.ExportLog(time.Time{}, time.Time{})
	require.NoError(t, err)

	t.Run("dropped event", func(t *testing.T) {
		mutated := *export
		mutated.Events = export.Events[:3]
		ok, err := l.VerifySignedExport(&mutated)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("swapped merkle root", func(t *testing.T) {
		mutated := *export
		mutated.MerkleRoot = merkleCombine("fake", "root")
		ok, err := l.VerifySignedExport(&mutated)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("tampered event detail breaks root", func(t *testing.T) {
		mutated := *export
		mutated.Events = append([]Event{}, export.Events...)
		mutated.Events[0].Hash = merkleCombine("tampered", "hash")
		ok, err := l.VerifySignedExport(&mutated)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("signature from another key", func(t *testing.T) {
		other := NewLogger([]byte("different-key"))
		_, err := other.LogEvent(context.Background(), Entry{Action: "a", Resource: "r"})
		require.NoError(t, err)
		foreign, err := other.ExportLog(time.Time{}, time.Time{})
		require.NoError(t, err)

		ok, err := l.VerifySignedExport(foreign)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestExportLog_RequiresSigningKey(t *testing.T) {
	l := NewLogger(nil)
	_, err := l.ExportLog(time.Time{}, time.Time{})
	assert.Error(t, err)
}
