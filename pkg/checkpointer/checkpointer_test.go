package checkpointer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/pkg/slidingwindow"
)

type mockCheckpointer struct {
	mock.Mock
}

func (m *mockCheckpointer) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockCheckpointer) Write(ctx context.Context, chainID uint64, lowestUnprocessed uint64) error {
	args := m.Called(ctx, chainID, lowestUnprocessed)
	return args.Error(0)
}

func (m *mockCheckpointer) Read(ctx context.Context, chainID uint64) (uint64, bool, error) {
	args := m.Called(ctx, chainID)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

func testCfg() Config {
	return Config{
		Interval:     10 * time.Millisecond,
		WriteTimeout: time.Second,
		MaxAttempts:  3,
		RetryBase:    time.Millisecond,
		RetryMax:     5 * time.Millisecond,
	}
}

func TestStartWritesAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	state, err := slidingwindow.NewState(5, 10)
	require.NoError(t, err)
	cp := &mockCheckpointer{}

	written := make(chan struct{}, 1)
	cp.
		On("Write", mock.Anything, uint64(1), uint64(5)).
		Run(func(mock.Arguments) {
			select {
			case written <- struct{}{}:
			default:
			}
		}).
		Return(nil)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, zap.NewNop().Sugar(), state, cp, testCfg(), 1)
	}()

	select {
	case <-written:
		cancel()
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for checkpoint write")
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for checkpointer to exit")
	}
}

func TestStartRetriesTransientWriteFailures(t *testing.T) {
	t.Parallel()

	state, err := slidingwindow.NewState(0, 10)
	require.NoError(t, err)
	cp := &mockCheckpointer{}

	succeeded := make(chan struct{}, 1)
	cp.On("Write", mock.Anything, uint64(1), uint64(0)).
		Return(errors.New("connection reset")).Twice()
	cp.On("Write", mock.Anything, uint64(1), uint64(0)).
		Run(func(mock.Arguments) {
			select {
			case succeeded <- struct{}{}:
			default:
			}
		}).
		Return(nil)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, zap.NewNop().Sugar(), state, cp, testCfg(), 1)
	}()

	select {
	case <-succeeded:
		cancel()
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for retried write to succeed")
	}
	require.NoError(t, <-done)
}

func TestStartFailsAfterExhaustedRetries(t *testing.T) {
	t.Parallel()

	state, err := slidingwindow.NewState(0, 10)
	require.NoError(t, err)
	cp := &mockCheckpointer{}
	cp.On("Write", mock.Anything, uint64(1), uint64(0)).
		Return(errors.New("disk full"))

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	err = Start(ctx, zap.NewNop().Sugar(), state, cp, testCfg(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write checkpoint")
	assert.Contains(t, err.Error(), "disk full")
	cp.AssertNumberOfCalls(t, "Write", 3)
}
