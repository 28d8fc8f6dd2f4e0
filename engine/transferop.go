package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/transferengine/engine/serverpath"
	"github.com/transferengine/engine/transfer"
	"github.com/transferengine/engine/transport/ratelimit"
)

// noSeekWriter adapts a plain io.Writer (a remote upload stream has no
// seek concept) to transfer.Copy's io.WriteSeeker parameter. Seek is
// never actually invoked on it: doTransfer always passes startOffset 0
// on the upload path, having already seeked the *local* reader to the
// resume point itself.
type noSeekWriter struct{ io.Writer }

func (noSeekWriter) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("engine: remote upload stream does not support seeking")
}

// doTransfer implements spec.md section 4.6's protocol-agnostic
// file-transfer pipeline: resolve the local file, ask the overwrite
// question when the default dispatch table has no opinion, open/create
// the local file (creating parent directories as needed), open the
// protocol-specific remote stream, and copy bytes while reporting
// progress, then refresh the directory cache on success.
func (e *Engine) doTransfer(ctx context.Context, cmd Command) ReplyCode {
	session, reply, ok := e.sessionOrNotConnected()
	if !ok {
		return reply
	}

	local := localFileInfo(cmd.LocalPath)
	action, err := e.resolveOverwrite(ctx, cmd, local)
	if err != nil {
		return Canceled
	}
	if action == transfer.ActionSkip {
		return OK
	}

	resume := cmd.TransferSettings.Resume && action == transfer.ActionResume
	var restOffset int64
	if resume {
		restOffset = local.Size
	}

	req := TransferRequest{
		RemotePath: cmd.RemotePath,
		RemoteFile: cmd.RemoteFile,
		Direction:  cmd.Direction,
		Settings:   cmd.TransferSettings,
		Resume:     resume,
		RestOffset: restOffset,
	}

	if direct, ok := session.(DirectTransferSession); ok {
		if cmd.Direction == Download {
			if dir := filepath.Dir(cmd.LocalPath); dir != "" {
				if created, derr := transfer.EnsureLocalDir(dir); derr == nil && created {
					e.emit(Notification{Kind: NotifyStatusMessage, Message: "local-dir-created: " + dir})
				}
			}
		}
		reply, err := direct.DirectTransfer(ctx, req, cmd.LocalPath)
		if err != nil || !reply.Ok() {
			if reply == 0 {
				reply = Error
			}
			return reply
		}
		e.ctx.CacheInvalidate(e.serverName(), cmd.RemotePath.String())
		e.ctx.InvalidatePeers(e.serverName(), cmd.RemotePath.String(), e.id)
		return OK
	}

	stream, reply, err := session.OpenTransfer(ctx, req)
	if err != nil || !reply.Ok() {
		if reply == 0 {
			reply = Error
		}
		return reply
	}
	defer stream.Stream.Close()

	onProgress := func(p transfer.Progress) {
		e.setTransferStatus(TransferStatus{BytesTransferred: p.BytesTransferred, TotalBytes: p.TotalBytes})
	}

	switch cmd.Direction {
	case Download:
		dir := filepath.Dir(cmd.LocalPath)
		created, derr := transfer.EnsureLocalDir(dir)
		if derr != nil {
			return Error
		}
		if created {
			e.emit(Notification{Kind: NotifyStatusMessage, Message: "local-dir-created: " + dir})
		}

		// spec.md section 8 E3: a resume request the server doesn't
		// honor must still produce a file of exactly the server's
		// size, not local-size-plus-body. O_APPEND would force every
		// write to end-of-file regardless of transfer.Copy's Seek(0),
		// so only use it when the server actually honors the resume;
		// otherwise truncate like any fresh download.
		flags := os.O_CREATE | os.O_WRONLY
		if resume && stream.ResumeHonored {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, ferr := os.OpenFile(cmd.LocalPath, flags, 0o644)
		if ferr != nil {
			return Error
		}
		defer f.Close()

		result, cerr := transfer.Copy(ctx, f, stream.Stream, restOffset, stream.ResumeHonored, 250*time.Millisecond, e.ctx.RateLimit, ratelimit.Download, onProgress)
		if cerr != nil {
			return Error | Disconnected
		}
		if result.ResumeNotHonored {
			e.emit(Notification{Kind: NotifyStatusMessage, Message: "server did not honor resume; restarted from 0"})
		}
	case Upload:
		f, ferr := os.Open(cmd.LocalPath)
		if ferr != nil {
			return Error
		}
		defer f.Close()
		if restOffset > 0 {
			if _, serr := f.Seek(restOffset, io.SeekStart); serr != nil {
				return Error
			}
		}
		if _, cerr := transfer.Copy(ctx, noSeekWriter{stream.Stream}, f, 0, true, 250*time.Millisecond, e.ctx.RateLimit, ratelimit.Upload, onProgress); cerr != nil {
			return Error | Disconnected
		}
	}

	e.ctx.CacheInvalidate(e.serverName(), cmd.RemotePath.String())
	e.ctx.InvalidatePeers(e.serverName(), cmd.RemotePath.String(), e.id)
	return OK
}

// resolveOverwrite applies spec.md section 4.6's check_overwrite step:
// consult the default dispatch table first (e.g. "local file doesn't
// exist yet, just overwrite"), and only raise an async file-exists
// prompt when the table has no opinion. The prompt's seven possible
// answers (overwrite, overwrite-newer, overwrite-size,
// overwrite-size-or-newer, resume, rename, skip) are reconciled against
// the conflicting files' known size/mtime via
// transfer.OverwriteDecisionTable, per spec.md section 4.6/4.7.
func (e *Engine) resolveOverwrite(ctx context.Context, cmd Command, local transfer.LocalFileInfo) (transfer.OverwriteAction, error) {
	incomingSize, incomingModTime := e.remoteFileInfo(cmd.RemotePath, cmd.RemoteFile)

	action := transfer.Decide(transfer.DefaultOverwriteTable, local, incomingSize, incomingModTime)
	if action != transfer.ActionAsk {
		return action, nil
	}

	answer, err := e.askAsync(ctx, AsyncOverwriteDecision, fmt.Sprintf("file-exists: %s", cmd.RemoteFile))
	if err != nil {
		return transfer.ActionSkip, err
	}
	return transfer.Reconcile(transfer.OverwriteDecisionTable, transfer.UIDecision(answer), local, incomingSize, incomingModTime), nil
}

// remoteFileInfo looks up the incoming file's size and modification
// time from the cached directory listing for path, if one is known;
// it returns (-1, zero time) when nothing is cached yet, which the
// overwrite/resume reconciliation rules treat as "differs" rather than
// as a match.
func (e *Engine) remoteFileInfo(path serverpath.Path, name string) (int64, time.Time) {
	l, hit := e.ctx.CacheLookup(e.serverName(), path.String())
	if !hit {
		return -1, time.Time{}
	}
	for _, entry := range l.Entries {
		if entry.Name == name {
			return entry.Size, entry.ModTime
		}
	}
	return -1, time.Time{}
}

func localFileInfo(path string) transfer.LocalFileInfo {
	info, err := os.Stat(path)
	if err != nil {
		return transfer.LocalFileInfo{}
	}
	return transfer.LocalFileInfo{Exists: true, Size: info.Size(), ModTime: info.ModTime()}
}
