// Package controlsocket implements the generic operation-stack driver
// shared by every protocol (FTP, HTTP, SFTP), per spec.md section 4.2.
// A single logical command (e.g. "list this directory") can require
// several control-connection round trips (connect, login, CWD, LIST);
// each round trip is modeled as an Operation pushed onto a stack, so a
// sub-operation (like a login retry) can suspend the operation that
// triggered it without either one needing to know about the other's
// internals. This mirrors original_source's CControlSocket operation
// stack and rclone's own pattern of a pooled connection plus a
// pacer-driven retry loop (backend/ftp/ftp.go, backend/sftp/sftp.go).
package controlsocket

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/transferengine/engine/replycode"
)

// Operation is one entry in the control socket's operation stack. Send
// is called when the operation becomes the top of the stack; OnReply is
// called with each reply line/event until it reports done.
type Operation interface {
	// Name identifies the operation for logging and notifications.
	Name() string
	// Send issues whatever the operation needs to write to the wire.
	Send(ctx context.Context, cs *ControlSocket) error
	// OnReply is fed every parsed reply while this operation is on top
	// of the stack. Returning done=true pops it; a non-nil subResult
	// lets a popped sub-operation hand a result back to the operation
	// beneath it via its ResumeWith, if that operation implements it.
	OnReply(cs *ControlSocket, reply replycode.ReplyCode, data any) (done bool, subResult any, err error)
}

// Resumable is implemented by an Operation that wants to receive the
// result of a sub-operation pushed on top of it.
type Resumable interface {
	ResumeWith(cs *ControlSocket, result any) error
}

// Transport is the minimal surface ControlSocket needs from whatever
// layer stack (socket -> proxy -> TLS) sits underneath it.
type Transport interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// ControlSocket drives one control connection's operation stack. It is
// not safe for concurrent use by more than one goroutine at a time,
// matching the original engine's single-threaded-per-connection model;
// callers serialize access the same way rclone serializes access to a
// pooled backend connection.
type ControlSocket struct {
	mu    sync.Mutex
	conn  Transport
	stack []Operation

	aliveTimeout time.Duration
	waitTimeout  time.Duration
	aliveTimer   *time.Timer
	waitTimer    *time.Timer

	onNotify func(event string, detail any)
}

// New wraps conn in a ControlSocket with the given idle/alive and
// per-operation wait timeouts.
func New(conn Transport, aliveTimeout, waitTimeout time.Duration, onNotify func(string, any)) *ControlSocket {
	return &ControlSocket{
		conn:         conn,
		aliveTimeout: aliveTimeout,
		waitTimeout:  waitTimeout,
		onNotify:     onNotify,
	}
}

func (cs *ControlSocket) notify(event string, detail any) {
	if cs.onNotify != nil {
		cs.onNotify(event, detail)
	}
}

// Push starts op, sending it immediately if it becomes the new top.
func (cs *ControlSocket) Push(ctx context.Context, op Operation) error {
	cs.mu.Lock()
	cs.stack = append(cs.stack, op)
	cs.mu.Unlock()

	cs.setWait(cs.waitTimeout)
	cs.notify("operation_started", op.Name())
	return op.Send(ctx, cs)
}

// Top returns the operation currently driving the control connection,
// or nil if the stack is empty.
func (cs *ControlSocket) Top() Operation {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.stack) == 0 {
		return nil
	}
	return cs.stack[len(cs.stack)-1]
}

// Deliver feeds one parsed reply to the top-of-stack operation,
// unwinding the stack as operations complete and handing results down
// to a waiting parent via Resumable, per spec.md section 4.2's
// "subcommand_result" propagation.
func (cs *ControlSocket) Deliver(ctx context.Context, reply replycode.ReplyCode, data any) error {
	cs.setAlive()
	for {
		cs.mu.Lock()
		if len(cs.stack) == 0 {
			cs.mu.Unlock()
			return fmt.Errorf("controlsocket: reply received with empty operation stack")
		}
		top := cs.stack[len(cs.stack)-1]
		cs.mu.Unlock()

		done, subResult, err := top.OnReply(cs, reply, data)
		if err != nil {
			cs.popTo(top)
			return err
		}
		if !done {
			cs.setWait(cs.waitTimeout)
			return nil
		}

		cs.popTo(top)
		cs.notify("operation_finished", top.Name())

		cs.mu.Lock()
		empty := len(cs.stack) == 0
		var parent Operation
		if !empty {
			parent = cs.stack[len(cs.stack)-1]
		}
		cs.mu.Unlock()

		if empty {
			cs.setWait(0)
			return nil
		}
		if resumable, ok := parent.(Resumable); ok {
			if err := resumable.ResumeWith(cs, subResult); err != nil {
				return err
			}
		}
		// Loop: the same reply may also need to be seen by the parent
		// operation's own OnReply the next time the wire produces one;
		// here we simply continue waiting for the next reply.
		cs.setWait(cs.waitTimeout)
		return nil
	}
}

// popTo removes the given operation from the top of the stack if it is
// still there (it always should be; the check guards against a bug
// elsewhere silently corrupting stack order).
func (cs *ControlSocket) popTo(op Operation) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.stack) == 0 || cs.stack[len(cs.stack)-1] != op {
		return
	}
	cs.stack = cs.stack[:len(cs.stack)-1]
}

// Write sends raw bytes on the control connection, resetting the
// alive timer the way any successful write or read does.
func (cs *ControlSocket) Write(p []byte) (int, error) {
	n, err := cs.conn.Write(p)
	if err == nil {
		cs.setAlive()
	}
	return n, err
}

func (cs *ControlSocket) setAlive() {
	if cs.aliveTimeout <= 0 {
		return
	}
	if cs.aliveTimer == nil {
		cs.aliveTimer = time.AfterFunc(cs.aliveTimeout, func() { cs.notify("connection_idle_timeout", nil) })
		return
	}
	cs.aliveTimer.Reset(cs.aliveTimeout)
}

func (cs *ControlSocket) setWait(d time.Duration) {
	if cs.waitTimer != nil {
		cs.waitTimer.Stop()
		cs.waitTimer = nil
	}
	if d <= 0 {
		return
	}
	cs.waitTimer = time.AfterFunc(d, func() { cs.notify("operation_timeout", nil) })
}

// Close tears down both timers and the underlying connection.
func (cs *ControlSocket) Close() error {
	if cs.aliveTimer != nil {
		cs.aliveTimer.Stop()
	}
	if cs.waitTimer != nil {
		cs.waitTimer.Stop()
	}
	return cs.conn.Close()
}
