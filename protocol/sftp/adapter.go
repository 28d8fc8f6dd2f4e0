package sftp

import (
	"context"
	"fmt"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/internal/lineproto"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
)

// Driver implements engine.ProtocolDriver for SFTP by spawning
// cmd/sftp-helper, per spec.md section 6. Engine never imports this
// package; a composition root registers Driver{} for engine.ProtocolSFTP.
type Driver struct {
	// HelperPath overrides where the child binary is looked up, mainly
	// for deployments that install it next to the main binary rather
	// than relying on PATH.
	HelperPath string
}

func (d Driver) Connect(ctx context.Context, server engine.Server, cfg config.Configuration, notify func(engine.Notification)) (engine.ProtocolSession, engine.ReplyCode, error) {
	adapter := &sessionAdapter{notify: notify}

	sess, err := Start(ctx, server, Options{
		HelperPath: d.HelperPath,
		Proxy:      engine.ProxyConfigFor(cfg, server.ProxyBypass),
		OnStatus: func(text string) {
			if notify != nil {
				notify(engine.Notification{Kind: engine.NotifyStatusMessage, Message: text})
			}
		},
		OnListEntry: func(name, kind string, size int64) {
			adapter.appendEntry(name, kind, size)
		},
		// Host-key and password prompts default to the non-interactive
		// answer (empty reply for a password, accept for a host key),
		// the same trust-on-first-use scoping decision protocol/ftp's
		// TLS driver makes, pending a synchronous bridge from here back
		// to Engine.SetAsyncRequestReply.
		OnPrompt: func(token lineproto.Token, msg lineproto.Message) (string, error) {
			if notify != nil {
				notify(engine.Notification{Kind: engine.NotifyStatusMessage, Message: "auto-answering prompt: " + string(token)})
			}
			if token == lineproto.TokenAskPassword {
				return "", nil
			}
			return "y", nil
		},
	})
	if err != nil {
		return nil, engine.Error | engine.Disconnected, err
	}
	adapter.session = sess
	return adapter, engine.OK, nil
}

// sessionAdapter wraps the child-process Session to satisfy
// engine.ProtocolSession (so Engine can hold it generically) plus
// engine.DirectTransferSession (so doTransfer hands the whole copy to
// the helper instead of trying to stream through it), since the
// helper process, not the engine, owns the local file handle for a
// transfer.
type sessionAdapter struct {
	session *Session
	notify  func(engine.Notification)

	entries []listing.Entry
}

func (a *sessionAdapter) appendEntry(name, kind string, size int64) {
	k := listing.KindFile
	if kind == "dir" {
		k = listing.KindDir
	} else if kind == "link" {
		k = listing.KindLink
	}
	a.entries = append(a.entries, listing.Entry{Name: name, Kind: k, Size: size})
}

func (a *sessionAdapter) List(ctx context.Context, path serverpath.Path, subdir string, flags engine.ListFlags) (listing.Listing, engine.ReplyCode, error) {
	target := path
	if subdir != "" {
		target = path.AddSegment(subdir)
	}
	a.entries = nil
	if err := a.session.List(target.String()); err != nil {
		return listing.Listing{}, engine.Error, err
	}
	return listing.Listing{Path: target.String(), Entries: a.entries}, engine.OK, nil
}

// OpenTransfer is never called in practice: doTransfer type-asserts for
// DirectTransferSession first and this adapter always satisfies it. It
// stays implemented (rather than a permanent panic) only so
// sessionAdapter satisfies engine.ProtocolSession for code paths that
// hold a ProtocolSession generically without knowing the protocol.
func (a *sessionAdapter) OpenTransfer(ctx context.Context, req engine.TransferRequest) (engine.TransferStream, engine.ReplyCode, error) {
	return engine.TransferStream{}, engine.NotSupported, fmt.Errorf("sftp: use DirectTransfer, not a streamed OpenTransfer")
}

// DirectTransfer implements engine.DirectTransferSession: the helper
// process opens both ends of the file itself and reports back only
// success/failure, per spec.md section 6.
func (a *sessionAdapter) DirectTransfer(ctx context.Context, req engine.TransferRequest, localPath string) (engine.ReplyCode, error) {
	remote := req.RemotePath.AddSegment(req.RemoteFile).String()
	switch req.Direction {
	case engine.Download:
		if err := a.session.Download(remote, localPath); err != nil {
			return engine.Error | engine.Disconnected, err
		}
	default:
		if err := a.session.Upload(localPath, remote); err != nil {
			return engine.Error | engine.Disconnected, err
		}
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Mkdir(ctx context.Context, path serverpath.Path) (engine.ReplyCode, error) {
	if err := a.session.Mkdir(path.String()); err != nil {
		return engine.Error, err
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Delete(ctx context.Context, dir serverpath.Path, files []string) (engine.ReplyCode, error) {
	for _, f := range files {
		if err := a.session.Remove(dir.AddSegment(f).String()); err != nil {
			return engine.Error, err
		}
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Rmdir(ctx context.Context, path serverpath.Path, subdir string) (engine.ReplyCode, error) {
	target := path
	if subdir != "" {
		target = path.AddSegment(subdir)
	}
	if err := a.session.Rmdir(target.String()); err != nil {
		return engine.Error, err
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Rename(ctx context.Context, fromDir serverpath.Path, fromName string, toDir serverpath.Path, toName string) (engine.ReplyCode, error) {
	from := fromDir.AddSegment(fromName).String()
	to := toDir.AddSegment(toName).String()
	if err := a.session.Rename(from, to); err != nil {
		return engine.Error, err
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Chmod(ctx context.Context, dir serverpath.Path, file, permission string) (engine.ReplyCode, error) {
	if err := a.session.Chmod(dir.AddSegment(file).String(), permission); err != nil {
		return engine.Error, err
	}
	return engine.OK, nil
}

func (a *sessionAdapter) Raw(ctx context.Context, command string) (engine.ReplyCode, error) {
	return engine.NotSupported, fmt.Errorf("sftp: raw passthrough is not supported over the helper protocol")
}

func (a *sessionAdapter) Close() error {
	return a.session.Close()
}
