package dispatch

import (
	"context"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

func newBreakerMock(t *testing.T) (*breakerProvider, *MockProvider) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mock := NewMockProvider(ctrl)
	mock.EXPECT().Name().Return("flaky").AnyTimes()

	return wrapWithBreaker(mock, logger.NewTestLogger()), mock
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	wrapped, mock := newBreakerMock(t)
	mock.EXPECT().SendMetrics(gomock.Any(), gomock.Any()).Return(errProviderDown).Times(3)

	batch := []models.MetricData{metricSample("cpu")}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, wrapped.SendMetrics(context.Background(), batch), errProviderDown)
	}

	// The breaker is open now; the provider is no longer called.
	err := wrapped.SendMetrics(context.Background(), batch)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, wrapped.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	wrapped, mock := newBreakerMock(t)
	gomock.InOrder(
		mock.EXPECT().SendMetrics(gomock.Any(), gomock.Any()).Return(errProviderDown).Times(2),
		mock.EXPECT().SendMetrics(gomock.Any(), gomock.Any()).Return(nil),
		mock.EXPECT().SendMetrics(gomock.Any(), gomock.Any()).Return(errProviderDown).Times(2),
	)

	batch := []models.MetricData{metricSample("cpu")}

	for i := 0; i < 2; i++ {
		assert.Error(t, wrapped.SendMetrics(context.Background(), batch))
	}

	require.NoError(t, wrapped.SendMetrics(context.Background(), batch))

	for i := 0; i < 2; i++ {
		assert.Error(t, wrapped.SendMetrics(context.Background(), batch))
	}

	assert.Equal(t, gobreaker.StateClosed, wrapped.State())
}

func TestBreakerHealthCheckBypassesOpenState(t *testing.T) {
	wrapped, mock := newBreakerMock(t)
	mock.EXPECT().SendMetrics(gomock.Any(), gomock.Any()).Return(errProviderDown).Times(3)
	mock.EXPECT().HealthCheck(gomock.Any()).Return(nil)

	batch := []models.MetricData{metricSample("cpu")}

	for i := 0; i < 3; i++ {
		assert.Error(t, wrapped.SendMetrics(context.Background(), batch))
	}

	require.Equal(t, gobreaker.StateOpen, wrapped.State())

	// Probes reach the backend even while sends are rejected.
	assert.NoError(t, wrapped.HealthCheck(context.Background()))
}
