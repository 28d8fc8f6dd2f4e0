package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/config"
)

func newTestContext(t *testing.T, reconnectDelay time.Duration) *EngineContext {
	t.Helper()
	cfg := config.Default()
	cfg.ReconnectDelay = reconnectDelay
	ctx, err := NewEngineContext(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func TestRemainingDelayIsNearFullDelayRightAfterFailure(t *testing.T) {
	ctx := newTestContext(t, time.Minute)
	server := Server{Host: "example.com", Port: 21, User: "anon"}

	ctx.RecordFailedLogin(server, false)
	remaining := ctx.RemainingDelay(server)

	assert.Greater(t, remaining, 59*time.Second)
	assert.LessOrEqual(t, remaining, time.Minute)
}

func TestRemainingDelayShrinksWithAge(t *testing.T) {
	ctx := newTestContext(t, 20*time.Millisecond)
	server := Server{Host: "example.com", Port: 21, User: "anon"}

	ctx.RecordFailedLogin(server, false)
	time.Sleep(10 * time.Millisecond)
	remaining := ctx.RemainingDelay(server)

	assert.Less(t, remaining, 15*time.Millisecond)
}

func TestRemainingDelayMatchesHostPortForNonCriticalFailureAcrossUserChange(t *testing.T) {
	ctx := newTestContext(t, time.Minute)
	first := Server{Host: "example.com", Port: 21, User: "alice"}
	second := Server{Host: "example.com", Port: 21, User: "bob"}

	ctx.RecordFailedLogin(first, false)
	// A non-critical failure under a different username still backs off
	// the same host:port, per spec.md section 4.1.
	assert.Greater(t, ctx.RemainingDelay(second), time.Duration(0))
}

func TestRemainingDelayIgnoresHostPortMatchForCriticalFailure(t *testing.T) {
	ctx := newTestContext(t, time.Minute)
	first := Server{Host: "example.com", Port: 21, User: "alice"}
	second := Server{Host: "example.com", Port: 21, User: "bob"}

	ctx.RecordFailedLogin(first, true)
	// A critical failure is scoped to the exact server identity only.
	assert.Equal(t, time.Duration(0), ctx.RemainingDelay(second))
}

func TestRecordFailedLoginDropsIdenticalServerEntryInsteadOfAccumulating(t *testing.T) {
	ctx := newTestContext(t, time.Minute)
	server := Server{Host: "example.com", Port: 21, User: "alice"}

	ctx.RecordFailedLogin(server, false)
	ctx.RecordFailedLogin(server, false)

	ctx.failedLoginMu.Lock()
	count := len(ctx.failedLogins)
	ctx.failedLoginMu.Unlock()
	assert.Equal(t, 1, count)
}

func TestClearFailedLoginRemovesMatchingEntries(t *testing.T) {
	ctx := newTestContext(t, time.Minute)
	server := Server{Host: "example.com", Port: 21, User: "alice"}

	ctx.RecordFailedLogin(server, false)
	ctx.ClearFailedLogin(server)

	assert.Equal(t, time.Duration(0), ctx.RemainingDelay(server))
}
