//go:build integration

package intel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/testutil/containers"
)

func TestRedisFeed(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	feed := NewRedisFeed(rc.Client)
	ctx := context.Background()

	// Unknown IP: clean, not a VPN, default reputation.
	malicious, err := feed.IsMalicious(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, malicious)

	vpn, err := feed.IsVPN(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, vpn)

	rep, err := feed.Reputation(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rep)

	// Ingest writes are visible to the reader.
	require.NoError(t, feed.MarkMalicious(ctx, "6.6.6.6"))
	require.NoError(t, feed.MarkVPN(ctx, "7.7.7.7"))
	require.NoError(t, feed.SetReputation(ctx, "1.2.3.4", 0.85))

	malicious, err = feed.IsMalicious(ctx, "6.6.6.6")
	require.NoError(t, err)
	assert.True(t, malicious)

	vpn, err = feed.IsVPN(ctx, "7.7.7.7")
	require.NoError(t, err)
	assert.True(t, vpn)

	rep, err = feed.Reputation(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0.85, rep)

	require.NoError(t, feed.Refresh(ctx))
}

func TestRedisFeed_CustomDefaultReputation(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	feed := NewRedisFeed(rc.Client, WithRedisDefaultReputation(0.2))

	rep, err := feed.Reputation(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, 0.2, rep)
}
