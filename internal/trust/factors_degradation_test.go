package trust_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vigil/internal/trust"
	"vigil/internal/trust/mocks"
)

// Collaborator outages must degrade factors to their least-trusting values
// without failing the evaluation.

func TestEvaluateAccess_DirectoryOutageDegradesIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	feed := mocks.NewMockFeed(ctrl)

	directory.EXPECT().AccountInfo(gomock.Any(), "u1").
		Return(nil, errors.New("ldap: connection refused"))
	feed.EXPECT().IsMalicious(gomock.Any(), "1.2.3.4").Return(false, nil)
	feed.EXPECT().IsVPN(gomock.Any(), "1.2.3.4").Return(false, nil)
	feed.EXPECT().Reputation(gomock.Any(), "1.2.3.4").Return(0.7, nil)

	e := trust.NewEngine(directory, feed)
	d, err := e.EvaluateAccess(context.Background(), trust.SecurityContext{
		UserID:            "u1",
		SessionID:         "s1",
		DeviceFingerprint: "d1",
		IPAddress:         "1.2.3.4",
	}, "/workflows/123", "read")

	require.NoError(t, err)
	assert.Equal(t, 0.1, d.TrustScore.Factors.Identity)
	assert.Equal(t, 0.7, d.TrustScore.Factors.Network)
	assert.False(t, d.Allowed)
}

func TestEvaluateAccess_IntelOutageDegradesNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	feed := mocks.NewMockFeed(ctrl)

	directory.EXPECT().AccountInfo(gomock.Any(), "u1").
		Return(&trust.AccountInfo{AgeInDays: 400, LastActivityHoursAgo: 1}, nil)
	directory.EXPECT().MFAEnabled(gomock.Any(), "u1").Return(true, nil)
	feed.EXPECT().IsMalicious(gomock.Any(), "1.2.3.4").
		Return(false, errors.New("feed unavailable"))

	e := trust.NewEngine(directory, feed)
	d, err := e.EvaluateAccess(context.Background(), trust.SecurityContext{
		UserID:            "u1",
		SessionID:         "s1",
		DeviceFingerprint: "d1",
		IPAddress:         "1.2.3.4",
	}, "/workflows/123", "read")

	require.NoError(t, err)
	assert.Equal(t, 1.0, d.TrustScore.Factors.Identity)
	assert.Equal(t, 0.0, d.TrustScore.Factors.Network)
}

func TestEvaluateAccess_NoIPDegradesNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	feed := mocks.NewMockFeed(ctrl)

	directory.EXPECT().AccountInfo(gomock.Any(), "u1").
		Return(&trust.AccountInfo{AgeInDays: 400, LastActivityHoursAgo: 1}, nil)
	directory.EXPECT().MFAEnabled(gomock.Any(), "u1").Return(true, nil)

	e := trust.NewEngine(directory, feed)
	d, err := e.EvaluateAccess(context.Background(), trust.SecurityContext{
		UserID:            "u1",
		SessionID:         "s1",
		DeviceFingerprint: "d1",
	}, "/workflows/123", "read")

	require.NoError(t, err)
	assert.Equal(t, 0.0, d.TrustScore.Factors.Network)
}

func TestEvaluateAccess_SlowDirectoryTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	feed := mocks.NewMockFeed(ctrl)

	directory.EXPECT().AccountInfo(gomock.Any(), "u1").
		DoAndReturn(func(ctx context.Context, _ string) (*trust.AccountInfo, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	feed.EXPECT().IsMalicious(gomock.Any(), "1.2.3.4").Return(false, nil)
	feed.EXPECT().IsVPN(gomock.Any(), "1.2.3.4").Return(false, nil)
	feed.EXPECT().Reputation(gomock.Any(), "1.2.3.4").Return(0.9, nil)

	e := trust.NewEngine(directory, feed, trust.WithLookupTimeout(50*time.Millisecond))

	start := time.Now()
	d, err := e.EvaluateAccess(context.Background(), trust.SecurityContext{
		UserID:            "u1",
		SessionID:         "s1",
		DeviceFingerprint: "d1",
		IPAddress:         "1.2.3.4",
	}, "/workflows/123", "read")

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0.1, d.TrustScore.Factors.Identity)
}
