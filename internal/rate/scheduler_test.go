package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRefresher struct{ mock.Mock }

func (m *MockRefresher) Refresh(ctx context.Context, execID string) error {
	args := m.Called(ctx, execID)
	return args.Error(0)
}

func TestNewScheduler_Constructs(t *testing.T) {
	s := NewScheduler(new(MockRefresher), 10*time.Second)
	require.NotNil(t, s)
	require.False(t, s.running())
}

func TestScheduler_Shutdown_NoScheduler_ReturnsNil(t *testing.T) {
	s := NewScheduler(new(MockRefresher), 10*time.Second)
	require.NoError(t, s.Shutdown())
	require.False(t, s.running())
}

func TestScheduler_Start_RunsRefreshImmediately(t *testing.T) {
	refresher := new(MockRefresher)
	called := make(chan string, 1)
	refresher.On("Refresh", mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			select {
			case called <- args.String(1):
			default:
			}
		}).
		Return(nil)

	s := NewScheduler(refresher, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Shutdown() }()

	select {
	case execID := <-called:
		require.NotEmpty(t, execID)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not run on start")
	}
}

func TestScheduler_Start_And_ContextCancel_ShutsDown(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(nil).Maybe()
	s := NewScheduler(refresher, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	require.True(t, s.running())

	cancel()

	require.Eventually(t, func() bool { return !s.running() }, 2*time.Second, 10*time.Millisecond,
		"expected scheduler to be shutdown after ctx cancel")
}

func TestScheduler_Shutdown_AfterStart_Idempotent(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).Return(nil).Maybe()
	s := NewScheduler(refresher, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.True(t, s.running())

	require.NoError(t, s.Shutdown())
	require.False(t, s.running())

	require.NoError(t, s.Shutdown())
}

func TestNewScheduler_UsesProvidedInterval(t *testing.T) {
	s := NewScheduler(new(MockRefresher), 42*time.Second)
	require.Equal(t, 42*time.Second, s.refreshInterval)
}

func TestNewScheduler_DefaultsIntervalWhenInvalid(t *testing.T) {
	s := NewScheduler(new(MockRefresher), 0)
	require.Equal(t, 30*time.Second, s.refreshInterval)
}
