package engine

import (
	"context"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
	"github.com/transferengine/engine/transport/proxylayer"
)

// ProtocolDriver is the per-protocol implementation Engine dispatches
// to once a Server names its protocol, per spec.md section 9's design
// note: "Re-model as a trait (ProtocolDriver) implemented per protocol,
// with the generic operation-stack driver living on the common holder."
// Concrete drivers (protocol/ftp, protocol/http, protocol/sftp) import
// this package, never the other way around, so a composition root can
// register them into an EngineContext without an import cycle.
type ProtocolDriver interface {
	// Connect dials server and runs its full login/handshake sequence,
	// returning a live ProtocolSession on success. cfg carries the
	// process-wide settings (spec.md section 6) a driver needs for
	// dialing, such as the SOCKS4/SOCKS5/HTTP-CONNECT transport proxy;
	// notify lets the driver surface intermediate Status/Trace log
	// lines while it works, per spec.md section 4's notification
	// queue.
	Connect(ctx context.Context, server Server, cfg config.Configuration, notify func(Notification)) (ProtocolSession, ReplyCode, error)
}

// ProxyConfigFor translates the process-wide transport proxy settings
// in cfg into a transport/proxylayer.Config for one connection
// attempt, honoring server.ProxyBypass (spec.md section 3's
// per-server "proxy-bypass flag"). It is the one place a
// ProtocolDriver needs to bridge config's mirrored ProxyKind enum
// (config stays a leaf package with no transport dependency) back to
// the real proxylayer.Kind transport/socket.Options.Proxy expects.
func ProxyConfigFor(cfg config.Configuration, bypass bool) proxylayer.Config {
	if bypass || cfg.ProxyKind == config.ProxyNone {
		return proxylayer.Config{}
	}
	var kind proxylayer.Kind
	switch cfg.ProxyKind {
	case config.ProxySOCKS4:
		kind = proxylayer.SOCKS4
	case config.ProxySOCKS5:
		kind = proxylayer.SOCKS5
	case config.ProxyHTTPConnect:
		kind = proxylayer.HTTPConnect
	default:
		return proxylayer.Config{}
	}
	return proxylayer.Config{
		Kind:     kind,
		Host:     cfg.ProxyHost,
		Port:     cfg.ProxyPort,
		User:     cfg.ProxyUser,
		Password: cfg.ProxyPassword,
	}
}

// ProtocolSession is one live connection a ProtocolDriver handed back
// from Connect; Engine drives every subsequent command through it
// until Close (explicit disconnect, or teardown on a terminal error).
// A session is used by exactly one Engine at a time, matching spec.md
// section 5's single-threaded-per-connection scheduling model.
type ProtocolSession interface {
	List(ctx context.Context, path serverpath.Path, subdir string, flags ListFlags) (listing.Listing, ReplyCode, error)
	OpenTransfer(ctx context.Context, req TransferRequest) (TransferStream, ReplyCode, error)
	Mkdir(ctx context.Context, path serverpath.Path) (ReplyCode, error)
	Delete(ctx context.Context, dir serverpath.Path, files []string) (ReplyCode, error)
	Rmdir(ctx context.Context, path serverpath.Path, subdir string) (ReplyCode, error)
	Rename(ctx context.Context, fromDir serverpath.Path, fromName string, toDir serverpath.Path, toName string) (ReplyCode, error)
	Chmod(ctx context.Context, dir serverpath.Path, file, permission string) (ReplyCode, error)
	Raw(ctx context.Context, command string) (ReplyCode, error)
	Close() error
}

// TransferRequest carries everything a ProtocolSession needs to open
// the remote half of a file transfer (spec.md section 4.6); Engine
// resolves the local-file/overwrite-decision bookkeeping itself (in
// transferop.go) and passes only the already-decided remote-side
// parameters down.
type TransferRequest struct {
	RemotePath serverpath.Path
	RemoteFile string
	Direction  TransferDirection
	Settings   TransferSettings
	Resume     bool
	RestOffset int64
}

// TransferStream is the protocol-specific half of an open transfer: a
// byte stream to or from the remote file (only Read is used for a
// download, only Write for an upload), the size the server reports (-1
// if unknown), and whether it actually honored a resume request.
// Closing it must also settle any protocol-level transfer-complete
// handshake (e.g. FTP's final 226 reply on the control connection).
type TransferStream struct {
	Stream        ReadWriteCloser
	RemoteSize    int64
	ResumeHonored bool
}

// ReadWriteCloser is the minimal byte-stream surface TransferStream
// needs; declared locally so this package does not need to import io
// just for one embedded interface.
type ReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DirectTransferSession is an optional capability a ProtocolSession may
// additionally implement when it cannot expose a plain byte stream for
// OpenTransfer: per spec.md section 6, the SFTP driver speaks to its
// server through a child process that opens and copies the local file
// itself, so there is no in-process stream for the generic
// transfer.Copy pipeline to read from or write to. doTransfer type-
// asserts for this interface and, when present, hands off the whole
// local<->remote copy to it instead of calling OpenTransfer.
type DirectTransferSession interface {
	DirectTransfer(ctx context.Context, req TransferRequest, localPath string) (ReplyCode, error)
}
