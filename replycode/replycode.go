// Package replycode defines the composable reply-outcome bitfield
// shared by the engine facade and the lower-level control-socket
// driver. It is split out from package engine so that controlsocket
// (which sits below engine in the dependency order) can report
// outcomes without importing engine itself, per spec.md section 4.1/7.
package replycode

import "strings"

// ReplyCode is a composable bitfield carrying a primary outcome plus
// orthogonal sticky modifiers.
type ReplyCode uint32

// Primary values. Exactly one of these (the bits in primaryMask) identifies the
// outcome of a command; the remaining bits are independent modifiers
// that can be OR'd on top.
const (
	OK ReplyCode = 1 << iota
	WouldBlock
	Continue // internal signal, never surfaced to the UI
	Error
	NotSupported
	SyntaxError
	Busy
	AlreadyConnected
	NotConnected
	Canceled
	Timeout
	Disconnected
	InternalError
	PasswordFailed
	LinkNotDir
	CriticalError
)

// primaryMask selects the bits that are mutually exclusive outcomes
// rather than modifiers. Canceled, Disconnected, CriticalError and
// PasswordFailed are modifiers and may be combined with any of these.
const primaryMask = OK | WouldBlock | Continue | Error | NotSupported |
	SyntaxError | Busy | AlreadyConnected | NotConnected | Timeout | InternalError | LinkNotDir

// Primary returns the primary outcome bits, stripping sticky modifiers.
func (r ReplyCode) Primary() ReplyCode {
	return r & primaryMask
}

// Has reports whether all bits of mask are set.
func (r ReplyCode) Has(mask ReplyCode) bool {
	return r&mask == mask
}

// Ok reports whether the primary outcome is success.
func (r ReplyCode) Ok() bool {
	return r.Has(OK)
}

// Sticky returns the modifiers that must survive a retry (canceled,
// disconnected, critical, password-failed) per spec.md section 7.
func (r ReplyCode) Sticky() ReplyCode {
	return r & (Canceled | Disconnected | CriticalError | PasswordFailed)
}

var names = []struct {
	bit  ReplyCode
	name string
}{
	{OK, "OK"},
	{WouldBlock, "WOULDBLOCK"},
	{Continue, "CONTINUE"},
	{Error, "ERROR"},
	{NotSupported, "NOTSUPPORTED"},
	{SyntaxError, "SYNTAX_ERROR"},
	{Busy, "BUSY"},
	{AlreadyConnected, "ALREADY_CONNECTED"},
	{NotConnected, "NOT_CONNECTED"},
	{Canceled, "CANCELED"},
	{Timeout, "TIMEOUT"},
	{Disconnected, "DISCONNECTED"},
	{InternalError, "INTERNAL_ERROR"},
	{PasswordFailed, "PASSWORD_FAILED"},
	{LinkNotDir, "LINK_NOT_DIR"},
	{CriticalError, "CRITICAL_ERROR"},
}

func (r ReplyCode) String() string {
	if r == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range names {
		if r.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// RetryEligible reports whether a failed CONNECT carrying this code may
// be retried per the policy in spec.md section 4.1: not critical, not
// password-failed, not canceled.
func (r ReplyCode) RetryEligible() bool {
	return !r.Has(CriticalError) && !r.Has(PasswordFailed) && !r.Has(Canceled)
}
