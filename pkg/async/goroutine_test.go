package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestRun_Success(t *testing.T) {
	log, buf := testLogger()

	err := Run(context.Background(), time.Second, "test task", log, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})

	assert.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestRun_WithError(t *testing.T) {
	log, buf := testLogger()

	err := Run(context.Background(), time.Second, "test task", log, func(context.Context) error {
		return errors.New("test error")
	})

	assert.EqualError(t, err, "test error")
	assert.Contains(t, buf.String(), "Background task failed")
	assert.Contains(t, buf.String(), "task=\"test task\"")
}

func TestRun_Timeout(t *testing.T) {
	log, _ := testLogger()

	err := Run(context.Background(), 20*time.Millisecond, "slow", log, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_NoTimeout(t *testing.T) {
	err := Run(context.Background(), 0, "unbounded", nil, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil
	})
	assert.NoError(t, err)
}

func TestRun_Panic(t *testing.T) {
	log, buf := testLogger()

	err := Run(context.Background(), time.Second, "panicky", log, func(context.Context) error {
		panic("boom")
	})

	var perr *observability.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestSafeGo(t *testing.T) {
	log, _ := testLogger()
	executed := atomic.Bool{}

	SafeGo(context.Background(), time.Second, "test task", log, func(context.Context) error {
		executed.Store(true)
		panic("must not crash the test binary")
	})

	assert.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)
}
