// Package sftp is the engine-side SFTP ProtocolDriver. Rather than
// linking an SSH client in-process, it spawns cmd/sftp-helper as a
// child process and drives it over the token line protocol in
// internal/lineproto, per spec.md section 6's architecture for this
// protocol. rclone's backend/sftp embeds github.com/pkg/sftp directly;
// this package keeps that same dependency reachable from the workspace
// (via the helper binary) while matching the spec's literal
// child-process design.
package sftp

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/internal/lineproto"
	"github.com/transferengine/engine/transport/proxylayer"
)

// Session manages one spawned helper process for one logical SFTP
// connection.
type Session struct {
	cmd    *exec.Cmd
	writer *lineproto.Writer
	reader *lineproto.Reader
	stdin  io.WriteCloser

	mu           sync.Mutex
	onPrompt     func(token lineproto.Token, msg lineproto.Message) (string, error)
	onStatus     func(text string)
	onListEntry  func(name, kind string, size int64)
}

// Options configures how the helper binary is located and launched.
type Options struct {
	HelperPath string // defaults to "sftp-helper" on PATH
	// Proxy routes the helper's outbound SSH dial through a
	// SOCKS4/SOCKS5/HTTP CONNECT proxy, per spec.md section 4's
	// ProxyLayer; its zero value (Kind: None) dials the server
	// directly. The helper process, not this package, does the actual
	// dialing, so the settings are passed down as flags.
	Proxy       proxylayer.Config
	OnPrompt    func(token lineproto.Token, msg lineproto.Message) (string, error)
	OnStatus    func(text string)
	OnListEntry func(name, kind string, size int64)
}

// Start launches the helper process for server and begins the protocol
// loop in a background goroutine.
func Start(ctx context.Context, server engine.Server, opts Options) (*Session, error) {
	helper := opts.HelperPath
	if helper == "" {
		helper = "sftp-helper"
	}
	args := []string{
		"--host", server.Host,
		"--port", strconv.Itoa(server.Port),
		"--user", server.User,
	}
	if server.KeyFile != "" {
		args = append(args, "--keyfile", server.KeyFile)
	}
	if opts.Proxy.Kind != proxylayer.None {
		var kind string
		switch opts.Proxy.Kind {
		case proxylayer.SOCKS4:
			kind = "socks4"
		case proxylayer.SOCKS5:
			kind = "socks5"
		case proxylayer.HTTPConnect:
			kind = "http-connect"
		}
		args = append(args,
			"--proxy-kind", kind,
			"--proxy-host", opts.Proxy.Host,
			"--proxy-port", strconv.Itoa(opts.Proxy.Port),
		)
		if opts.Proxy.User != "" {
			args = append(args, "--proxy-user", opts.Proxy.User, "--proxy-password", opts.Proxy.Password)
		}
	}

	cmd := exec.CommandContext(ctx, helper, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "sftp: creating stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "sftp: creating stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "sftp: starting helper process")
	}

	s := &Session{
		cmd:         cmd,
		writer:      lineproto.NewWriter(stdin),
		reader:      lineproto.NewReader(stdout),
		stdin:       stdin,
		onPrompt:    opts.OnPrompt,
		onStatus:    opts.OnStatus,
		onListEntry: opts.OnListEntry,
	}
	return s, nil
}

// List requests a directory listing and blocks until the helper reports
// Done or Error.
func (s *Session) List(path string) error {
	if err := s.writer.Send(lineproto.TokenListentry, path); err != nil {
		return errors.Wrap(err, "sftp: sending list request")
	}
	return s.pump("list")
}

// Download requests a file transfer from remotePath to localPath.
func (s *Session) Download(remotePath, localPath string) error {
	if err := s.writer.Send(lineproto.TokenRecv, remotePath, localPath); err != nil {
		return errors.Wrap(err, "sftp: sending recv request")
	}
	return s.pump("recv")
}

// Upload requests a file transfer from localPath to remotePath.
func (s *Session) Upload(localPath, remotePath string) error {
	if err := s.writer.Send(lineproto.TokenSend, localPath, remotePath); err != nil {
		return errors.Wrap(err, "sftp: sending send request")
	}
	return s.pump("send")
}

// Mkdir requests creation of a single remote directory.
func (s *Session) Mkdir(path string) error {
	if err := s.writer.Send(lineproto.TokenMkdir, path); err != nil {
		return errors.Wrap(err, "sftp: sending mkdir request")
	}
	return s.pump("mkdir")
}

// Remove requests deletion of a single remote file.
func (s *Session) Remove(path string) error {
	if err := s.writer.Send(lineproto.TokenRemove, path); err != nil {
		return errors.Wrap(err, "sftp: sending remove request")
	}
	return s.pump("remove")
}

// Rmdir requests removal of a single remote directory.
func (s *Session) Rmdir(path string) error {
	if err := s.writer.Send(lineproto.TokenRmdir, path); err != nil {
		return errors.Wrap(err, "sftp: sending rmdir request")
	}
	return s.pump("rmdir")
}

// Rename requests a remote rename/move from to.
func (s *Session) Rename(from, to string) error {
	if err := s.writer.Send(lineproto.TokenRename, from, to); err != nil {
		return errors.Wrap(err, "sftp: sending rename request")
	}
	return s.pump("rename")
}

// Chmod requests a permission change, permission being an octal mode
// string (e.g. "755") as used throughout spec.md's chmod command.
func (s *Session) Chmod(path, permission string) error {
	if err := s.writer.Send(lineproto.TokenChmod, path, permission); err != nil {
		return errors.Wrap(err, "sftp: sending chmod request")
	}
	return s.pump("chmod")
}

// pump reads messages until a Done or Error for op arrives, dispatching
// prompts and status/listentry callbacks along the way.
func (s *Session) pump(op string) error {
	for {
		msg, err := s.reader.Next()
		if err != nil {
			return errors.Wrapf(err, "sftp: reading helper output during %s", op)
		}
		switch msg.Token {
		case lineproto.TokenDone:
			return nil
		case lineproto.TokenError:
			return fmt.Errorf("sftp: %s failed: %s", op, msg.Field(0))
		case lineproto.TokenStatus:
			if s.onStatus != nil {
				s.onStatus(msg.Field(0))
			}
		case lineproto.TokenListentry:
			if s.onListEntry != nil {
				size, _ := strconv.ParseInt(msg.Field(2), 10, 64)
				s.onListEntry(msg.Field(0), msg.Field(1), size)
			}
		case lineproto.TokenAskPassword, lineproto.TokenAskHostkey,
			lineproto.TokenAskHostkeyChanged, lineproto.TokenAskHostkeyBetteralg:
			if err := s.respondToPrompt(msg); err != nil {
				return err
			}
		case lineproto.TokenHostkey, lineproto.TokenVerbose,
			lineproto.TokenKexAlgorithm, lineproto.TokenKexHash, lineproto.TokenKexCurve,
			lineproto.TokenCipherClientToServer, lineproto.TokenCipherServerToClient,
			lineproto.TokenMacClientToServer, lineproto.TokenMacServerToClient,
			lineproto.TokenUsedQuotaRecv, lineproto.TokenUsedQuotaSend:
			// informational; no response required
		default:
			return fmt.Errorf("sftp: unexpected message %q during %s", msg.Token, op)
		}
	}
}

func (s *Session) respondToPrompt(msg lineproto.Message) error {
	if s.onPrompt == nil {
		return s.writer.Send(lineproto.TokenReply, "")
	}
	reply, err := s.onPrompt(msg.Token, msg)
	if err != nil {
		return err
	}
	return s.writer.Send(lineproto.TokenReply, reply)
}

// Close terminates the helper process.
func (s *Session) Close() error {
	_ = s.writer.Send(lineproto.TokenCancel)
	_ = s.stdin.Close()
	return s.cmd.Wait()
}

// newTestSession builds a Session around an in-memory reader/writer
// pair, bypassing process spawning, so the pump/prompt dispatch logic
// can be exercised without an actual helper binary.
func newTestSession(r io.Reader, w io.Writer, opts Options) *Session {
	return &Session{
		writer:      lineproto.NewWriter(w),
		reader:      lineproto.NewReader(r),
		onPrompt:    opts.OnPrompt,
		onStatus:    opts.OnStatus,
		onListEntry: opts.OnListEntry,
	}
}
