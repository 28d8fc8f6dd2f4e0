package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimitedReturnsImmediately(t *testing.T) {
	l := New(0, 0, 0)
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, Download, 1<<30))
}

func TestLimitedBlocksUntilRefill(t *testing.T) {
	l := New(1000, 1000, 2000)
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Acquire(ctx, Download, 1500))
	// second call exhausts remaining burst and must wait for a tick
	start := time.Now()
	require.NoError(t, l.Acquire(ctx, Download, 1500))
	assert.True(t, time.Since(start) > 0)
}

func TestDirectionsAreIndependent(t *testing.T) {
	l := New(100, 0, 100)
	defer l.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, Upload, 1<<20))
}

func TestSetLimitsAppliesLive(t *testing.T) {
	l := New(10, 10, 10)
	defer l.Close()
	l.SetLimits(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, Download, 1<<20))
}
