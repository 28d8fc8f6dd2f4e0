package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/transferengine/engine/controlsocket"
)

// NotificationKind identifies the variant carried by a Notification.
type NotificationKind int

const (
	NotifyOperation NotificationKind = iota
	NotifyDirectoryListing
	NotifyStatusMessage
	NotifyAsyncRequest
	NotifyTransferStatus
	NotifyConnectionAttempt
)

// Notification is the tagged-variant event type Engine.NextNotification
// hands back to the caller, per spec.md section 4's notification queue.
type Notification struct {
	Kind         NotificationKind
	Reply        ReplyCode
	Path         string
	Message      string
	AsyncRequest *AsyncRequest
	TransferStat *TransferStatus
}

// AsyncRequestKind identifies what kind of answer an async request
// needs (interactive password, host key trust, overwrite decision...).
type AsyncRequestKind int

const (
	AsyncPassword AsyncRequestKind = iota
	AsyncHostKeyTrust
	AsyncOverwriteDecision
	AsyncCertificateTrust
)

// AsyncRequest suspends the current operation until the caller supplies
// an answer via Engine.SetAsyncRequestReply.
type AsyncRequest struct {
	ID     int64
	Kind   AsyncRequestKind
	Prompt string
}

// TransferStatus reports progress for the transfer currently in flight.
type TransferStatus struct {
	BytesTransferred int64
	TotalBytes       int64
	Done             bool
}

// Engine is one logical connection/session: it owns a Command queue,
// a ProtocolSession once connected, and a notification outbox, per
// spec.md section 2's facade (init/execute/cancel/is_active/is_busy/
// is_connected/cache_lookup/set_async_request_reply/next_notification/
// get_transfer_status).
type Engine struct {
	id  string
	ctx *EngineContext

	mu           sync.Mutex
	server       Server
	session      ProtocolSession
	connected    bool
	busy         bool
	canceling    bool
	currentPath  string
	retryCount   int

	notifications chan Notification
	pendingAsync  map[int64]chan string
	nextAsyncID   int64
	transfer      TransferStatus
}

// New creates an Engine bound to ctx and identified by id (used in log
// lines and cross-engine notifications).
func New(ctx *EngineContext, id string) *Engine {
	e := &Engine{
		id:            id,
		ctx:           ctx,
		notifications: make(chan Notification, 64),
		pendingAsync:  map[int64]chan string{},
	}
	ctx.RegisterEngine(id, e)
	return e
}

// Init binds server as this engine's current target, per spec.md
// section 2's init().
func (e *Engine) Init(server Server) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.server = server
	e.connected = false
	e.currentPath = ""
	e.retryCount = 0
}

// Execute validates and queues cmd for processing, returning
// immediately; the result surfaces later as a Notification. This
// mirrors spec.md section 2's execute(), which is asynchronous by
// design — every command completes via a terminal notification rather
// than a return value, per spec.md section 8's serialization/terminal-
// notification-guarantee properties.
func (e *Engine) Execute(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("engine: invalid command: %w", err)
	}
	if err := e.checkPreconditionsAndMarkBusy(cmd); err != nil {
		return err
	}

	go e.run(ctx, cmd)
	return nil
}

// checkPreconditionsAndMarkBusy applies the connection-state
// preconditions from spec.md section 4.1 that execute() must check
// before any wire activity — connect requires not-already-connected,
// every other command except disconnect/cancel requires connected, and
// none may start while another command is in flight — and, if they all
// pass, atomically marks the engine busy so a second concurrent
// Execute() cannot slip through before run() starts.
func (e *Engine) checkPreconditionsAndMarkBusy(cmd Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return fmt.Errorf("engine: busy with another command")
	}
	switch cmd.Kind {
	case CmdConnect:
		if e.connected {
			return fmt.Errorf("engine: already connected")
		}
	case CmdDisconnect, CmdCancel:
		// idempotent / always valid regardless of connection state
	default:
		if !e.connected {
			return fmt.Errorf("engine: not connected")
		}
	}
	e.busy = true
	return nil
}

// run executes cmd and always emits exactly one terminal
// NotifyOperation notification, per spec.md section 8's terminal-
// notification guarantee — even a canceled or failed command reports
// back rather than being silently dropped.
func (e *Engine) run(ctx context.Context, cmd Command) {
	defer func() {
		e.mu.Lock()
		e.busy = false
		e.canceling = false
		e.mu.Unlock()
	}()

	reply := e.dispatch(ctx, cmd)
	e.emit(Notification{Kind: NotifyOperation, Reply: reply, Path: pathOf(cmd)})
}

func pathOf(cmd Command) string {
	if !cmd.ListPath.Empty() {
		return cmd.ListPath.String()
	}
	if !cmd.RemotePath.Empty() {
		return cmd.RemotePath.String()
	}
	return ""
}

// dispatch performs the actual per-kind work. This is the generic
// driver spec.md section 2 describes: validate, find the protocol
// operation appropriate to the command, drive it, and report the
// outcome — the protocol-specific wire exchange itself lives behind
// ProtocolSession, implemented per protocol in protocol/ftp,
// protocol/http and protocol/sftp.
func (e *Engine) dispatch(ctx context.Context, cmd Command) ReplyCode {
	e.mu.Lock()
	canceling := e.canceling
	e.mu.Unlock()
	if canceling {
		return Canceled
	}
	select {
	case <-ctx.Done():
		return Canceled
	default:
	}

	switch cmd.Kind {
	case CmdConnect:
		return e.connectWithRetry(ctx, *cmd.Server)
	case CmdDisconnect:
		return e.disconnect()
	case CmdCancel:
		return OK
	case CmdList:
		return e.doList(ctx, cmd)
	case CmdTransfer:
		return e.doTransfer(ctx, cmd)
	case CmdMkdir:
		return e.doMkdir(ctx, cmd)
	case CmdDelete:
		return e.doDelete(ctx, cmd)
	case CmdRmdir:
		return e.doRmdir(ctx, cmd)
	case CmdRename:
		return e.doRename(ctx, cmd)
	case CmdChmod:
		return e.doChmod(ctx, cmd)
	case CmdRaw:
		return e.doRaw(ctx, cmd)
	default:
		return NotSupported
	}
}

// sessionOrNotConnected returns the engine's current ProtocolSession, failing with
// NotConnected when there isn't one (defensive: checkPreconditions
// should already have refused the command).
func (e *Engine) sessionOrNotConnected() (ProtocolSession, ReplyCode, bool) {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return nil, NotConnected, false
	}
	return s, OK, true
}

// connectWithRetry drives CmdConnect, applying spec.md section 4.1's
// retry policy: a non-critical, non-password, retry-eligible failure
// re-enters CONNECT after the remaining backoff delay from the
// per-host failed-login record, up to the configured reconnect count.
func (e *Engine) connectWithRetry(ctx context.Context, server Server) ReplyCode {
	hostPort := fmt.Sprintf("%s:%d", server.Host, server.Port)
	for {
		driver, ok := e.ctx.DriverFor(server.Protocol)
		if !ok {
			return NotSupported
		}

		e.log(NotifyStatusMessage, "connecting to "+hostPort)
		session, reply, err := driver.Connect(ctx, server, e.ctx.Config, e.emit)
		if reply.Ok() {
			e.mu.Lock()
			e.server = server
			e.session = session
			e.connected = true
			e.retryCount = 0
			e.mu.Unlock()
			e.ctx.ClearFailedLogin(server)
			return OK
		}

		e.ctx.RecordFailedLogin(server, reply.Has(CriticalError))
		if err != nil {
			e.log(NotifyStatusMessage, "connect failed: "+err.Error())
		}

		if !reply.RetryEligible() {
			return reply
		}

		e.mu.Lock()
		e.retryCount++
		attempt := e.retryCount
		e.mu.Unlock()
		if attempt > e.ctx.Config.ReconnectCount {
			return reply
		}

		delay := e.ctx.RemainingDelay(server)
		if delay < time.Millisecond {
			delay = time.Millisecond
		}
		e.log(NotifyStatusMessage, "waiting to retry...")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Canceled
		}
	}
}

// disconnect tears down the transport, OK even if already down, per
// spec.md section 6.
func (e *Engine) disconnect() ReplyCode {
	e.mu.Lock()
	session := e.session
	e.session = nil
	e.connected = false
	e.currentPath = ""
	e.mu.Unlock()
	if session != nil {
		_ = session.Close()
	}
	return OK
}

// doList implements spec.md section 4.1's list short-circuit: a cache
// hit that is not outdated and carries no unsure bits is returned
// synchronously without contacting the server; otherwise the listing
// is fetched (under the cache lock for this server/path) and stored.
func (e *Engine) doList(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}

	e.mu.Lock()
	serverName := e.server.Name
	e.mu.Unlock()

	path := cmd.ListPath
	if cached, hit := e.ctx.CacheLookup(serverName, path.String()); hit && !cmd.ListFlags.Has(ListRefresh) {
		if !cached.HasUnsure() && !cached.Outdated(e.ctx.Config.DirectoryCacheTTL) {
			e.emit(Notification{Kind: NotifyDirectoryListing, Path: path.String()})
			e.setCurrentPath(path.String())
			return OK
		}
	}

	release := e.ctx.CacheLock.Acquire(controlsocket.LockKey{Server: serverName, Path: path.String(), Reason: "list"})
	defer release()

	l, reply, err := session.List(ctx, path, cmd.ListSubdir, cmd.ListFlags)
	if err != nil || !reply.Ok() {
		e.emit(Notification{Kind: NotifyDirectoryListing, Path: path.String(), Message: "failed"})
		if reply == 0 {
			reply = Error
		}
		return reply
	}

	e.ctx.CacheStore(serverName, path.String(), l, e.id)
	e.setCurrentPath(path.String())
	e.emit(Notification{Kind: NotifyDirectoryListing, Path: path.String()})
	return OK
}

func (e *Engine) setCurrentPath(path string) {
	e.mu.Lock()
	e.currentPath = path
	e.mu.Unlock()
}

// doMkdir issues a single session.Mkdir for the target under the "mkdir"
// cache lock and invalidates the parent's cached listing on success.
// Creating missing parents is left to the session: the FTP session
// walks up and creates them, the SFTP helper creates the leaf only.
func (e *Engine) doMkdir(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	release := e.ctx.CacheLock.Acquire(controlsocket.LockKey{Server: e.serverName(), Path: cmd.MkdirPath.String(), Reason: "mkdir"})
	defer release()

	reply, err := session.Mkdir(ctx, cmd.MkdirPath)
	if err == nil && reply.Ok() {
		e.ctx.CacheInvalidate(e.serverName(), cmd.MkdirPath.Parent().String())
	}
	return reply
}

func (e *Engine) doDelete(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	reply, err := session.Delete(ctx, cmd.DeletePath, cmd.DeleteFiles)
	if err == nil && reply.Ok() {
		e.ctx.CacheInvalidate(e.serverName(), cmd.DeletePath.String())
	}
	return reply
}

func (e *Engine) doRmdir(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	reply, err := session.Rmdir(ctx, cmd.RmdirPath, cmd.RmdirSubdir)
	if err == nil && reply.Ok() {
		target := cmd.RmdirPath
		if cmd.RmdirSubdir != "" {
			target = target.AddSegment(cmd.RmdirSubdir)
		}
		e.ctx.CacheInvalidate(e.serverName(), target.String())
		e.invalidatePeersUnder(target.String())
	}
	return reply
}

func (e *Engine) doRename(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	reply, err := session.Rename(ctx, cmd.FromPath, cmd.FromName, cmd.ToPath, cmd.ToName)
	if err == nil && reply.Ok() {
		e.ctx.CacheInvalidate(e.serverName(), cmd.FromPath.String())
		e.ctx.CacheInvalidate(e.serverName(), cmd.ToPath.String())
		e.invalidatePeersUnder(cmd.FromPath.AddSegment(cmd.FromName).String())
	}
	return reply
}

func (e *Engine) doChmod(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	reply, _ = session.Chmod(ctx, cmd.ChmodPath, cmd.ChmodFile, cmd.ChmodPermission)
	return reply
}

func (e *Engine) doRaw(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}
	reply, _ = session.Raw(ctx, cmd.RawCommand)
	return reply
}

func (e *Engine) serverName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server.Name
}

// invalidatePeersUnder invalidates the current_path of every other
// engine on the same server whose path falls under the affected
// subtree, per spec.md section 4.1's cross-engine cooperation and
// section 8's E6 scenario.
func (e *Engine) invalidatePeersUnder(path string) {
	e.ctx.InvalidatePeers(e.serverName(), path, e.id)
}

// log emits a Status notification carrying msg, and writes the same
// text to the shared log file with the "Status:" prefix spec.md
// section 6's log-line format names.
func (e *Engine) log(kind NotificationKind, msg string) {
	e.emit(Notification{Kind: kind, Message: msg})
	if e.ctx.Logger != nil {
		e.ctx.Logger.WithEngine(e.id).WithField("prefix", "Status:").Info(msg)
	}
}

// Cancel requests cancellation of the in-flight command, per spec.md
// section 2's cancel(). It is advisory: the running operation observes
// it at its next checkpoint rather than being forcibly interrupted.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canceling = true
}

// IsActive reports whether a command is currently executing.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// IsBusy is an alias for IsActive kept for parity with spec.md's naming.
func (e *Engine) IsBusy() bool { return e.IsActive() }

// IsConnected reports whether the control connection is currently
// established.
func (e *Engine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// CacheLookup consults the shared directory cache for the engine's
// current server and the given path.
func (e *Engine) CacheLookup(path string) (any, bool) {
	e.mu.Lock()
	server := e.server.Name
	e.mu.Unlock()
	return e.ctx.CacheLookup(server, path)
}

// emit pushes a notification, dropping it rather than blocking forever
// if the outbox is full and nobody is draining it — a slow consumer
// must not stall the engine's own goroutine.
func (e *Engine) emit(n Notification) {
	select {
	case e.notifications <- n:
	default:
	}
}

// NextNotification blocks until a notification is available or ctx is
// canceled, per spec.md section 2's next_notification().
func (e *Engine) NextNotification(ctx context.Context) (Notification, bool) {
	select {
	case n := <-e.notifications:
		return n, true
	case <-ctx.Done():
		return Notification{}, false
	}
}

// SetAsyncRequestReply answers a previously issued AsyncRequest by ID,
// per spec.md section 2's set_async_request_reply().
func (e *Engine) SetAsyncRequestReply(requestID int64, answer string) error {
	e.mu.Lock()
	ch, ok := e.pendingAsync[requestID]
	if ok {
		delete(e.pendingAsync, requestID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine: no pending async request %d", requestID)
	}
	ch <- answer
	return nil
}

// askAsync suspends the caller until SetAsyncRequestReply answers the
// request it emits, used internally by protocol drivers that need an
// interactive decision (password, host key trust, overwrite).
func (e *Engine) askAsync(ctx context.Context, kind AsyncRequestKind, prompt string) (string, error) {
	e.mu.Lock()
	e.nextAsyncID++
	id := e.nextAsyncID
	ch := make(chan string, 1)
	e.pendingAsync[id] = ch
	e.mu.Unlock()

	e.emit(Notification{Kind: NotifyAsyncRequest, AsyncRequest: &AsyncRequest{ID: id, Kind: kind, Prompt: prompt}})

	select {
	case answer := <-ch:
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// GetTransferStatus reports the progress of the transfer currently in
// flight, per spec.md section 2's get_transfer_status().
func (e *Engine) GetTransferStatus() TransferStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transfer
}

// setTransferStatus updates the in-flight transfer's progress and
// notifies any listener polling via NextNotification.
func (e *Engine) setTransferStatus(status TransferStatus) {
	e.mu.Lock()
	e.transfer = status
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyTransferStatus, TransferStat: &status})
}

// invalidateIfUnder clears the engine's notion of its current_path if
// it falls under the invalidated path, and emits a directory-listing
// notification, per spec.md section 8's E6 scenario.
func (e *Engine) invalidateIfUnder(server, path string) {
	e.mu.Lock()
	if e.server.Name != server {
		e.mu.Unlock()
		return
	}
	under := e.currentPath == path || isUnder(e.currentPath, path)
	e.mu.Unlock()
	if under {
		e.currentPathInvalidated()
		e.emit(Notification{Kind: NotifyDirectoryListing, Path: path})
	}
}

func (e *Engine) currentPathInvalidated() {
	e.mu.Lock()
	e.currentPath = ""
	e.mu.Unlock()
}

// Close unregisters the engine from its EngineContext.
func (e *Engine) Close() {
	_ = e.disconnect()
	e.ctx.UnregisterEngine(e.id)
}
