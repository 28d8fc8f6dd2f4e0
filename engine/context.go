package engine

import (
	"sync"
	"time"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/controlsocket"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/transport/ratelimit"
)

// EngineContext is the process-wide singleton every Engine instance
// shares: configuration, the rate limiter, the directory listing cache,
// the cache-lock table, and the failed-login list, per spec.md section
// 9's note that these were module-level statics in the original and
// must become explicit handles passed through a context instead.
type EngineContext struct {
	Config    config.Configuration
	Logger    *config.Logger
	RateLimit *ratelimit.Limiter
	CacheLock *controlsocket.CacheLockTable

	dirCacheMu sync.Mutex
	dirCache   map[dirCacheKey]listing.Listing

	failedLoginMu sync.Mutex
	failedLogins  []failedLogin

	enginesMu sync.Mutex
	engines   map[string]*Engine

	driversMu sync.Mutex
	drivers   map[Protocol]ProtocolDriver
}

type dirCacheKey struct {
	server string
	path   string
}

type failedLogin struct {
	server   Server
	at       time.Time
	critical bool
}

// NewEngineContext builds a shared context from cfg.
func NewEngineContext(cfg config.Configuration) (*EngineContext, error) {
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &EngineContext{
		Config:    cfg,
		Logger:    logger,
		RateLimit: ratelimit.New(cfg.DownloadSpeedLimit, cfg.UploadSpeedLimit, cfg.BurstTolerance),
		CacheLock: controlsocket.NewCacheLockTable(),
		dirCache:  map[dirCacheKey]listing.Listing{},
		engines:   map[string]*Engine{},
		drivers:   map[Protocol]ProtocolDriver{},
	}, nil
}

// RegisterDriver binds a ProtocolDriver implementation to proto, so
// every Engine sharing this context can dispatch CmdConnect for that
// protocol. Composition roots (e.g. cmd/enginectl) call this once at
// startup for each protocol they support; engine itself never imports
// a concrete driver package, per spec.md section 9's trait design note.
func (ctx *EngineContext) RegisterDriver(proto Protocol, d ProtocolDriver) {
	ctx.driversMu.Lock()
	defer ctx.driversMu.Unlock()
	ctx.drivers[proto] = d
}

// DriverFor looks up the registered driver for proto.
func (ctx *EngineContext) DriverFor(proto Protocol) (ProtocolDriver, bool) {
	ctx.driversMu.Lock()
	defer ctx.driversMu.Unlock()
	d, ok := ctx.drivers[proto]
	return d, ok
}

// RegisterEngine adds e to the shared registry under id, so peer
// engines can be notified of cross-engine cache invalidation (spec.md
// section 8's E6 scenario).
func (ctx *EngineContext) RegisterEngine(id string, e *Engine) {
	ctx.enginesMu.Lock()
	defer ctx.enginesMu.Unlock()
	ctx.engines[id] = e
}

// UnregisterEngine removes id from the registry.
func (ctx *EngineContext) UnregisterEngine(id string) {
	ctx.enginesMu.Lock()
	defer ctx.enginesMu.Unlock()
	delete(ctx.engines, id)
}

// peerEngines returns a snapshot of every registered engine except
// excludeID, taken under the registry lock but returned without it held
// so iterating never risks deadlocking against a per-engine mutex, per
// spec.md section 9's warning about this exact hazard.
func (ctx *EngineContext) peerEngines(excludeID string) []*Engine {
	ctx.enginesMu.Lock()
	defer ctx.enginesMu.Unlock()
	peers := make([]*Engine, 0, len(ctx.engines))
	for id, e := range ctx.engines {
		if id != excludeID {
			peers = append(peers, e)
		}
	}
	return peers
}

// CacheLookup returns a cached listing for (server, path), per spec.md
// section 4.3.
func (ctx *EngineContext) CacheLookup(server, path string) (listing.Listing, bool) {
	ctx.dirCacheMu.Lock()
	defer ctx.dirCacheMu.Unlock()
	l, ok := ctx.dirCache[dirCacheKey{server, path}]
	return l, ok
}

// CacheStore records a fresh listing and notifies peer engines whose
// current_path is invalidated by it, implementing spec.md section 8's
// E6 cross-engine-invalidation scenario.
func (ctx *EngineContext) CacheStore(server, path string, l listing.Listing, originatingEngineID string) {
	l.FetchedAt = time.Now()
	ctx.dirCacheMu.Lock()
	ctx.dirCache[dirCacheKey{server, path}] = l
	ctx.dirCacheMu.Unlock()

	for _, peer := range ctx.peerEngines(originatingEngineID) {
		peer.invalidateIfUnder(server, path)
	}
}

// CacheInvalidate drops any cached listing for (server, path) and below
// it, without storing a new one (used after mkdir/delete/rename).
func (ctx *EngineContext) CacheInvalidate(server, path string) {
	ctx.dirCacheMu.Lock()
	defer ctx.dirCacheMu.Unlock()
	for k := range ctx.dirCache {
		if k.server == server && (k.path == path || isUnder(k.path, path)) {
			delete(ctx.dirCache, k)
		}
	}
}

// InvalidatePeers clears current_path on every other engine on server
// whose path falls under the affected subtree, without touching the
// directory cache itself (callers that also changed cached content use
// CacheStore/CacheInvalidate for that half separately), per spec.md
// section 4.1's cross-engine "directory deletion/rename" cooperation.
func (ctx *EngineContext) InvalidatePeers(server, path, originatingEngineID string) {
	for _, peer := range ctx.peerEngines(originatingEngineID) {
		peer.invalidateIfUnder(server, path)
	}
}

func isUnder(child, parent string) bool {
	if parent == "" || parent == "/" {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '/'
}

// RecordFailedLogin pushes a {server, now, critical} entry onto the
// failed-login list, per spec.md section 4.1. Before appending, it
// drops every existing entry that is stale (older than the configured
// reconnect delay), identical to server (so a successful parameter
// change doesn't leave a stale sibling behind), or — when this failure
// is non-critical — merely sharing server's host:port (so
// username/password churn against the same host doesn't accumulate
// entries).
func (ctx *EngineContext) RecordFailedLogin(server Server, critical bool) {
	ctx.failedLoginMu.Lock()
	defer ctx.failedLoginMu.Unlock()

	delay := ctx.Config.ReconnectDelay
	kept := ctx.failedLogins[:0]
	for _, f := range ctx.failedLogins {
		stale := time.Since(f.at) >= delay
		matches := f.server.Equal(server) || (!critical && f.server.SameHostPort(server))
		if !stale && !matches {
			kept = append(kept, f)
		}
	}
	ctx.failedLogins = append(kept, failedLogin{server: server, at: time.Now(), critical: critical})
}

// RemainingDelay returns configured_delay - age(most-recent matching
// entry) for server, per spec.md section 4.1, where a matching entry
// is either identical to server or, if that entry is non-critical,
// shares server's host:port. Stale entries (older than the configured
// delay) are pruned along the way. Returns 0 if no matching entry
// remains.
func (ctx *EngineContext) RemainingDelay(server Server) time.Duration {
	ctx.failedLoginMu.Lock()
	defer ctx.failedLoginMu.Unlock()

	delay := ctx.Config.ReconnectDelay
	kept := ctx.failedLogins[:0]
	remaining := time.Duration(0)
	found := false
	for _, f := range ctx.failedLogins {
		age := time.Since(f.at)
		if age >= delay {
			continue
		}
		kept = append(kept, f)
		if f.server.Equal(server) || (!f.critical && f.server.SameHostPort(server)) {
			remaining = delay - age
			found = true
		}
	}
	ctx.failedLogins = kept
	if !found {
		return 0
	}
	return remaining
}

// ClearFailedLogin removes every failed-login entry for server,
// per spec.md section 4.1: a successful connection prunes the record
// so a later retry doesn't carry a stale backoff.
func (ctx *EngineContext) ClearFailedLogin(server Server) {
	ctx.failedLoginMu.Lock()
	defer ctx.failedLoginMu.Unlock()
	kept := ctx.failedLogins[:0]
	for _, f := range ctx.failedLogins {
		if !f.server.Equal(server) {
			kept = append(kept, f)
		}
	}
	ctx.failedLogins = kept
}

// Close releases the rate limiter's background goroutine and log file.
func (ctx *EngineContext) Close() error {
	ctx.RateLimit.Close()
	return ctx.Logger.Close()
}
