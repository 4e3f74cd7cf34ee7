package health

import (
	"testing"

	"github.com/appconnect-x/clipcore/trust"
	"github.com/appconnect-x/clipcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_HealthyWhenPrimaryConnected(t *testing.T) {
	store := trust.NewMemoryStore()
	checker := NewChecker(func() types.ConnectionState { return types.Connected }, func() bool { return false }, store)

	report := checker.CheckAll()
	assert.Equal(t, StatusHealthy, report.Status)
	assert.True(t, report.TransportStatus.PrimaryConnected)
}

func TestChecker_DegradedOnFallback(t *testing.T) {
	store := trust.NewMemoryStore()
	checker := NewChecker(func() types.ConnectionState { return types.Disconnected }, func() bool { return true }, store)

	report := checker.CheckAll()
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.TransportStatus.FallbackInUse)
}

func TestChecker_UnhealthyWithNoTransport(t *testing.T) {
	store := trust.NewMemoryStore()
	checker := NewChecker(func() types.ConnectionState { return types.Disconnected }, func() bool { return false }, store)

	report := checker.CheckAll()
	assert.Equal(t, StatusUnhealthy, report.Status)
	require.NotEmpty(t, report.Errors)
}

func TestChecker_NoTrustStoreAttached(t *testing.T) {
	checker := NewChecker(func() types.ConnectionState { return types.Connected }, nil, nil)

	report := checker.CheckAll()
	assert.Equal(t, StatusDegraded, report.Status)
}
