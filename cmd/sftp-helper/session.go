package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/pkg/sftp"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/transferengine/engine/internal/lineproto"
)

// sessionConfig carries the connection parameters passed on argv; the
// password (if any) arrives later over the line protocol as an
// AskPassword reply, since spec.md's helper is meant to prompt rather
// than take secrets on the command line.
type sessionConfig struct {
	Host    string
	Port    int
	User    string
	KeyFile string
}

// session wraps one SSH connection and its SFTP subsystem client.
type session struct {
	conn   *ssh.Client
	client *sftp.Client
}

func newSession(cfg sessionConfig, r *lineproto.Reader, w *lineproto.Writer) (*session, error) {
	authMethods, err := gatherAuthMethods(cfg, r, w)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback(w),
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	_ = w.Send(lineproto.TokenStatus, "connecting to "+addr)
	conn, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("sftp-helper: dialing %s: %w", addr, err)
	}

	reportAlgorithms(w, conn)

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sftp-helper: starting sftp subsystem: %w", err)
	}
	return &session{conn: conn, client: client}, nil
}

// gatherAuthMethods prefers an ssh-agent (xanzy/ssh-agent handles both
// the Unix socket and the Windows Pageant/OpenSSH-agent cases), falls
// back to a key file, and finally prompts the parent process for a
// password via AskPassword.
func gatherAuthMethods(cfg sessionConfig, r *lineproto.Reader, w *lineproto.Writer) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if agentConn, _, err := sshagent.New(); err == nil && agentConn != nil {
		methods = append(methods, ssh.PublicKeysCallback(agentConn.Signers))
	}

	if cfg.KeyFile != "" {
		if signer, err := loadKeyFile(cfg.KeyFile); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	methods = append(methods, ssh.PasswordCallback(func() (string, error) {
		return askPassword(r, w)
	}))

	return methods, nil
}

func loadKeyFile(path string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(raw)
}

// askPassword implements the synchronous AskPassword/reply round trip:
// the helper blocks on the line protocol, which is safe here because
// this callback only fires during ssh.Dial, before Serve's command loop
// starts consuming the same reader.
func askPassword(r *lineproto.Reader, w *lineproto.Writer) (string, error) {
	if err := w.Send(lineproto.TokenAskPassword); err != nil {
		return "", err
	}
	msg, err := r.Next()
	if err != nil {
		return "", fmt.Errorf("sftp-helper: reading password reply: %w", err)
	}
	if msg.Token != lineproto.TokenReply {
		return "", fmt.Errorf("sftp-helper: expected reply to askpassword, got %q", msg.Token)
	}
	return msg.Field(0), nil
}

// hostKeyCallback sends the parent a hostkey token carrying the
// hostname, key type and SHA256 fingerprint, and accepts every key. No
// AskHostkey/AskHostkeyChanged prompt is sent and no reply is awaited.
func hostKeyCallback(w *lineproto.Writer) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		fingerprint := ssh.FingerprintSHA256(key)
		_ = w.Send(lineproto.TokenHostkey, hostname, key.Type(), fingerprint)
		return nil
	}
}

// reportAlgorithms sends nothing: golang.org/x/crypto/ssh does not
// expose negotiated algorithm names on *ssh.Client after the handshake
// completes, so no KexAlgorithm/Cipher*/Mac* tokens are emitted.
func reportAlgorithms(w *lineproto.Writer, conn *ssh.Client) {}

// Serve pumps commands from r, issuing them against client and writing
// results to w until the stream closes or a Cancel token is received.
func (s *session) Serve(r *lineproto.Reader, w *lineproto.Writer) error {
	for {
		msg, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.dispatch(msg, w); err != nil {
			if err == io.EOF {
				return nil
			}
			_ = w.Send(lineproto.TokenError, err.Error())
		}
	}
}

func (s *session) dispatch(msg lineproto.Message, w *lineproto.Writer) error {
	switch msg.Token {
	case lineproto.TokenListentry:
		return s.list(msg.Field(0), w)
	case lineproto.TokenRecv:
		return s.download(msg.Field(0), msg.Field(1), w)
	case lineproto.TokenSend:
		return s.upload(msg.Field(0), msg.Field(1), w)
	case lineproto.TokenMkdir:
		return s.mkdir(msg.Field(0), w)
	case lineproto.TokenRemove:
		return s.remove(msg.Field(0), w)
	case lineproto.TokenRmdir:
		return s.rmdir(msg.Field(0), w)
	case lineproto.TokenRename:
		return s.rename(msg.Field(0), msg.Field(1), w)
	case lineproto.TokenChmod:
		return s.chmod(msg.Field(0), msg.Field(1), w)
	case lineproto.TokenCancel:
		return io.EOF
	default:
		return fmt.Errorf("sftp-helper: unsupported command %q", msg.Token)
	}
}

func (s *session) list(path string, w *lineproto.Writer) error {
	entries, err := s.client.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		_ = w.Send(lineproto.TokenListentry, e.Name(), kind, strconv.FormatInt(e.Size(), 10), e.ModTime().UTC().Format("20060102150405"))
	}
	return w.Send(lineproto.TokenDone, "list")
}

func (s *session) download(remotePath, localPath string, w *lineproto.Writer) error {
	remote, err := s.client.Open(remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	n, err := io.Copy(local, remote)
	if err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "recv", strconv.FormatInt(n, 10))
}

func (s *session) upload(localPath, remotePath string, w *lineproto.Writer) error {
	local, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	remote, err := s.client.Create(remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()

	n, err := io.Copy(remote, local)
	if err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "send", strconv.FormatInt(n, 10))
}

func (s *session) mkdir(path string, w *lineproto.Writer) error {
	if err := s.client.Mkdir(path); err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "mkdir")
}

func (s *session) remove(path string, w *lineproto.Writer) error {
	if err := s.client.Remove(path); err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "remove")
}

func (s *session) rmdir(path string, w *lineproto.Writer) error {
	if err := s.client.RemoveDirectory(path); err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "rmdir")
}

func (s *session) rename(from, to string, w *lineproto.Writer) error {
	if err := s.client.Rename(from, to); err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "rename")
}

func (s *session) chmod(path, permission string, w *lineproto.Writer) error {
	mode, err := strconv.ParseUint(permission, 8, 32)
	if err != nil {
		return fmt.Errorf("sftp-helper: invalid permission %q: %w", permission, err)
	}
	if err := s.client.Chmod(path, os.FileMode(mode)); err != nil {
		return err
	}
	return w.Send(lineproto.TokenDone, "chmod")
}

func (s *session) Close() error {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
