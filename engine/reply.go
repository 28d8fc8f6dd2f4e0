package engine

import "github.com/transferengine/engine/replycode"

// ReplyCode is an alias of replycode.ReplyCode so callers of this
// package can keep writing engine.ReplyCode/engine.OK while
// controlsocket, which sits below engine, depends only on replycode.
type ReplyCode = replycode.ReplyCode

const (
	OK               = replycode.OK
	WouldBlock       = replycode.WouldBlock
	Continue         = replycode.Continue
	Error            = replycode.Error
	NotSupported     = replycode.NotSupported
	SyntaxError      = replycode.SyntaxError
	Busy             = replycode.Busy
	AlreadyConnected = replycode.AlreadyConnected
	NotConnected     = replycode.NotConnected
	Canceled         = replycode.Canceled
	Timeout          = replycode.Timeout
	Disconnected     = replycode.Disconnected
	InternalError    = replycode.InternalError
	PasswordFailed   = replycode.PasswordFailed
	LinkNotDir       = replycode.LinkNotDir
	CriticalError    = replycode.CriticalError
)
