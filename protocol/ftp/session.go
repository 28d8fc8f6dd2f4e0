package ftp

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
	"github.com/transferengine/engine/transport/socket"
	"github.com/transferengine/engine/transport/tlslayer"
)

// Driver implements engine.ProtocolDriver for FTP/FTPS/FTPES, per
// spec.md section 9's "trait implemented per protocol" design note.
// Engine never imports this package directly; a composition root (see
// cmd/enginectl) registers a Driver value into an EngineContext for
// engine.ProtocolFTP/FTPS/FTPES.
type Driver struct{}

// Connect dials server, performs the full AUTH/login sequence driven by
// LoginState, and returns a live Session. Control-connection reply
// parsing uses net/textproto directly (it already understands RFC
// 959-style multi-line "code-text" continuations, the same convention
// SMTP uses), matching rclone's own backend/ftp error handling rather
// than a third-party FTP reply parser.
func (Driver) Connect(ctx context.Context, server engine.Server, cfg config.Configuration, notify func(engine.Notification)) (engine.ProtocolSession, engine.ReplyCode, error) {
	addr := fmt.Sprintf("%s:%d", server.Host, server.Port)
	opts := socket.DefaultOptions()
	opts.Proxy = engine.ProxyConfigFor(cfg, server.ProxyBypass)
	sock, err := socket.Dial(ctx, addr, opts)
	if err != nil {
		return nil, engine.Error | engine.Disconnected, err
	}

	conn := sock.Underlying()
	if server.Protocol == engine.ProtocolFTPS {
		// implicit FTPS: the TLS handshake happens before any FTP chatter
		tc, err := tlslayer.Wrap(ctx, conn, tlslayer.Config{ServerName: server.Host, Trust: alwaysTrustOnce})
		if err != nil {
			return nil, engine.Error | engine.Disconnected, err
		}
		conn = tc
	}

	tp := textproto.NewConn(conn)
	s := &Session{server: server, cfg: cfg, conn: conn, tp: tp, ls: NewLoginState(server), notify: notify}

	reply, err := s.login(ctx)
	if err != nil || !reply.Ok() {
		tp.Close()
		return nil, reply, err
	}
	return s, engine.OK, nil
}

// alwaysTrustOnce is the default certificate trust policy used when no
// interactive UI is wired up to answer a TOFU prompt synchronously:
// accept whatever chain the server presents for this connection only.
// tlslayer.Conn still records and classifies the handshake, so a
// caller that does want interactive confirmation can swap this for a
// TrustFunc that blocks on engine.Engine.SetAsyncRequestReply.
func alwaysTrustOnce(host string, chain []*x509.Certificate, verifyErr error) tlslayer.TrustDecision {
	return tlslayer.TrustOnce
}

// Session is one live FTP control connection plus whatever capability
// and encoding state the login sequence negotiated.
type Session struct {
	server engine.Server
	cfg    config.Configuration
	conn   net.Conn
	tp     *textproto.Conn
	ls     *LoginState
	notify func(engine.Notification)
}

func (s *Session) status(msg string) {
	if s.notify != nil {
		s.notify(engine.Notification{Kind: engine.NotifyStatusMessage, Message: msg})
	}
}

// login drives LoginState from CONNECT through DONE, issuing each
// step's wire command and feeding the response back into the state
// machine, per spec.md section 4.4.
func (s *Session) login(ctx context.Context) (engine.ReplyCode, error) {
	for s.ls.Step != StepDone {
		select {
		case <-ctx.Done():
			return engine.Canceled, ctx.Err()
		default:
		}

		switch s.ls.Step {
		case StepConnect:
			s.ls.Advance()

		case StepWelcome:
			code, banner, err := s.tp.ReadResponse(0)
			if err != nil {
				return engine.Error | engine.Disconnected, err
			}
			rc, _ := ParseWelcome(code, banner)
			if !rc.Ok() {
				return rc, fmt.Errorf("ftp: welcome rejected: %d %s", code, banner)
			}
			s.ls.Advance()

		case StepAuthTLS:
			code, _, err := s.cmd("AUTH TLS")
			if err != nil {
				return engine.Error | engine.Disconnected, err
			}
			s.ls.HandleAuthResponse(code)
			if s.ls.UseTLS {
				s.status("upgrading to TLS")
				tc, err := tlslayer.Wrap(ctx, s.conn, tlslayer.Config{ServerName: s.server.Host, Trust: alwaysTrustOnce})
				if err != nil {
					return engine.Error | engine.Disconnected, err
				}
				s.conn = tc
				s.tp = textproto.NewConn(tc)
			}
			s.ls.Advance()

		case StepAuthSSL, StepAuthWait:
			// AUTH TLS already resolved both of these in one round trip
			// above (legacy AUTH SSL is not sent separately); Needed()
			// only reaches here when AuthTLS already ran.
			s.ls.Advance()

		case StepSYST:
			s.cmd("SYST")
			s.ls.Advance()

		case StepFEAT:
			code, msg, err := s.cmd("FEAT")
			if err == nil && code == 211 {
				s.ls.ParseFEAT(strings.Split(msg, "\n"))
			}
			s.ls.Advance()

		case StepCLNT:
			s.cmd("CLNT FileZillaEngine")
			s.ls.Advance()

		case StepOptsUTF8On:
			code, _, _ := s.cmd("OPTS UTF8 ON")
			s.ls.UseUTF8 = code/100 == 2
			s.ls.Advance()

		case StepPBSZ:
			s.cmd("PBSZ 0")
			s.ls.Advance()

		case StepPROT:
			code, _, _ := s.cmd("PROT P")
			s.ls.ProtectData = code/100 == 2
			s.ls.Advance()

		case StepUserPassAccount:
			if rc, err := s.runLoginSequence(); err != nil || !rc.Ok() {
				return rc, err
			}
			s.ls.Advance()

		case StepOptsMLST:
			if arg := s.ls.OptsMLSTArgument(); arg != "" {
				s.cmd("OPTS MLST " + arg)
			}
			s.ls.Advance()

		case StepCustomCommands:
			for _, c := range s.server.PostLoginCommands {
				s.cmd(c)
			}
			s.ls.Advance()

		default:
			s.ls.Advance()
		}
	}
	return engine.OK, nil
}

// runLoginSequence sends the USER/PASS/ACCOUNT (or proxy-wrapped)
// sequence BuildLoginSequence emits, applying the special-case response
// rules from spec.md section 4.4.
func (s *Session) runLoginSequence() (engine.ReplyCode, error) {
	seq := BuildLoginSequence(s.server)
	for i, step := range seq {
		line := ResolveDeferred(step, s.server.Password)
		code, msg, err := s.cmd(line)
		if err != nil {
			return engine.Error | engine.Disconnected, err
		}
		if step.Type == "pass" {
			if rc := HandlePassResponse(code); !rc.Ok() {
				return rc, fmt.Errorf("ftp: PASS rejected: %d %s", code, msg)
			}
			continue
		}
		if step.Optional && code >= 500 {
			continue
		}
		if i == len(seq)-1 {
			if rc, hint := HandleFinalSequenceResponse(code, s.server.Account == ""); !rc.Ok() {
				if hint != "" {
					return rc, fmt.Errorf("ftp: %s", hint)
				}
				return rc, fmt.Errorf("ftp: login sequence rejected: %d %s", code, msg)
			}
		} else if code >= 500 && !step.Optional {
			return engine.Error | engine.CriticalError, fmt.Errorf("ftp: %s rejected: %d %s", step.Type, code, msg)
		}
	}
	return engine.OK, nil
}

// cmd writes one command line and reads its (possibly multi-line)
// response.
func (s *Session) cmd(line string) (int, string, error) {
	if err := s.tp.PrintfLine("%s", line); err != nil {
		return 0, "", err
	}
	return s.tp.ReadResponse(0)
}

func (s *Session) pathTypeHint() listing.ServerTypeHint {
	switch s.server.PathType {
	case serverpath.VMS:
		return listing.HintVMS
	case serverpath.MVS:
		return listing.HintMVS
	case serverpath.DOS:
		return listing.HintDOS
	default:
		return listing.HintUnix
	}
}

// List changes to path+subdir (if given) and retrieves the directory
// listing over a PASV data connection, per spec.md section 4.7.
func (s *Session) List(ctx context.Context, path serverpath.Path, subdir string, flags engine.ListFlags) (listing.Listing, engine.ReplyCode, error) {
	target := path
	if subdir != "" {
		target = path.AddSegment(subdir)
	}
	if !target.Empty() {
		code, msg, err := s.cmd(CWDCommand(target))
		if err != nil {
			return listing.Listing{}, engine.Error | engine.Disconnected, err
		}
		if code/100 != 2 {
			return listing.Listing{}, engine.Error, fmt.Errorf("ftp: CWD failed: %d %s", code, msg)
		}
	}

	data, err := s.openPassive(ctx)
	if err != nil {
		return listing.Listing{}, engine.Error | engine.Disconnected, err
	}

	code, msg, err := s.cmd(ListCommand(s.ls.Caps, target))
	if err != nil {
		data.Close()
		return listing.Listing{}, engine.Error | engine.Disconnected, err
	}
	if code/100 != 1 {
		data.Close()
		return listing.Listing{}, engine.Error, fmt.Errorf("ftp: LIST rejected: %d %s", code, msg)
	}

	raw, readErr := readAll(data)
	data.Close()
	// 226 Transfer complete (or a 4xx abort) on the control connection.
	finalCode, finalMsg, finalErr := s.tp.ReadResponse(0)
	if readErr != nil {
		return listing.Listing{}, engine.Error | engine.Disconnected, readErr
	}
	if finalErr != nil || finalCode/100 != 2 {
		return listing.Listing{}, engine.Error, fmt.Errorf("ftp: LIST transfer failed: %d %s", finalCode, finalMsg)
	}

	encoding := listing.EncodingUnknown
	if s.ls.UseUTF8 {
		encoding = listing.EncodingUTF8
	}
	tz := time.Duration(s.server.TimezoneOffset) * time.Minute
	if !s.ls.TimezoneKnown {
		tz = 0 // MLSD/MLST facts are already UTC
	}
	l := listing.Parse(target.String(), raw, encoding, s.pathTypeHint(), time.Now(), tz)
	return l, engine.OK, nil
}

// Mkdir issues MKD for path, creating missing parents first since FTP
// servers generally refuse MKD when an intermediate directory is
// absent.
func (s *Session) Mkdir(ctx context.Context, path serverpath.Path) (engine.ReplyCode, error) {
	parent := path.Parent()
	if !parent.Empty() {
		if code, _, _ := s.cmd(CWDCommand(parent)); code/100 != 2 {
			if rc, err := s.Mkdir(ctx, parent); !rc.Ok() {
				return rc, err
			}
		}
	}
	return s.simple(MkdirCommand(path))
}

func (s *Session) Delete(ctx context.Context, dir serverpath.Path, files []string) (engine.ReplyCode, error) {
	for _, f := range files {
		if rc, err := s.simple(DeleteCommand(dir, f)); !rc.Ok() {
			return rc, err
		}
	}
	return engine.OK, nil
}

func (s *Session) Rmdir(ctx context.Context, path serverpath.Path, subdir string) (engine.ReplyCode, error) {
	target := path
	if subdir != "" {
		target = path.AddSegment(subdir)
	}
	return s.simple(RmdirCommand(target))
}

func (s *Session) Rename(ctx context.Context, fromDir serverpath.Path, fromName string, toDir serverpath.Path, toName string) (engine.ReplyCode, error) {
	rnfr, rnto := RenameCommands(fromDir.AddSegment(fromName), toDir.AddSegment(toName))
	if rc, err := s.simple(rnfr); !rc.Ok() {
		return rc, err
	}
	return s.simple(rnto)
}

func (s *Session) Chmod(ctx context.Context, dir serverpath.Path, file, permission string) (engine.ReplyCode, error) {
	return s.simple(ChmodCommand(dir, file, permission))
}

func (s *Session) Raw(ctx context.Context, command string) (engine.ReplyCode, error) {
	return s.simple(RawCommand(command))
}

func (s *Session) simple(line string) (engine.ReplyCode, error) {
	code, msg, err := s.cmd(line)
	if err != nil {
		return engine.Error | engine.Disconnected, err
	}
	if code >= 500 {
		return engine.Error, fmt.Errorf("ftp: %s: %d %s", line, code, msg)
	}
	if code/100 != 2 && code/100 != 3 {
		return engine.Error, fmt.Errorf("ftp: %s: %d %s", line, code, msg)
	}
	return engine.OK, nil
}

// OpenTransfer opens a PASV data connection and issues REST (if
// resuming) then RETR/STOR/APPE, returning a TransferStream whose
// Close also drains the final control-connection reply, per spec.md
// section 4.6.
func (s *Session) OpenTransfer(ctx context.Context, req engine.TransferRequest) (engine.TransferStream, engine.ReplyCode, error) {
	typeCmd := "TYPE I"
	if req.Settings.ASCII {
		typeCmd = "TYPE A"
	}
	s.cmd(typeCmd)

	data, err := s.openPassive(ctx)
	if err != nil {
		return engine.TransferStream{}, engine.Error | engine.Disconnected, err
	}

	restCmd, xferCmd := TransferCommand(s.ls.Caps, req.Direction, req.Resume, req.RestOffset, req.RemotePath, req.RemoteFile)
	resumeHonored := false
	if restCmd != "" {
		code, _, _ := s.cmd(restCmd)
		resumeHonored = code/100 == 3 || code/100 == 2
	}

	code, msg, err := s.cmd(xferCmd)
	if err != nil {
		data.Close()
		return engine.TransferStream{}, engine.Error | engine.Disconnected, err
	}
	if code/100 != 1 {
		data.Close()
		if code == 550 && req.Direction == engine.Download {
			return engine.TransferStream{}, engine.Error, fmt.Errorf("ftp: %s: %d %s", xferCmd, code, msg)
		}
		return engine.TransferStream{}, engine.Error, fmt.Errorf("ftp: %s rejected: %d %s", xferCmd, code, msg)
	}

	return engine.TransferStream{
		Stream:        &dataStream{conn: data, tp: s.tp},
		RemoteSize:    -1,
		ResumeHonored: resumeHonored,
	}, engine.OK, nil
}

func (s *Session) Close() error {
	s.cmd("QUIT")
	return s.tp.Close()
}

// openPassive issues PASV and dials the host:port it returns, per
// spec.md section 4's data-connection handling. EPSV is recorded as a
// capability (LoginState.Caps.EPSV) but this driver always uses PASV
// for the data connection itself, keeping the IPv4 address parsing in
// one place; a dual-stack EPSV path is a natural follow-up once IPv6
// servers are in scope.
func (s *Session) openPassive(ctx context.Context) (net.Conn, error) {
	code, msg, err := s.cmd("PASV")
	if err != nil {
		return nil, err
	}
	if code/100 != 2 {
		return nil, fmt.Errorf("ftp: PASV rejected: %d %s", code, msg)
	}
	host, port, err := parsePASV(msg)
	if err != nil {
		return nil, err
	}
	opts := socket.DefaultOptions()
	opts.Proxy = engine.ProxyConfigFor(s.cfg, s.server.ProxyBypass)
	sock, err := socket.Dial(ctx, fmt.Sprintf("%s:%d", host, port), opts)
	if err != nil {
		return nil, err
	}
	return sock.Underlying(), nil
}

// parsePASV extracts the host:port tuple from a "227 Entering Passive
// Mode (h1,h2,h3,h4,p1,p2)" reply.
func parsePASV(msg string) (string, int, error) {
	open := strings.IndexByte(msg, '(')
	shut := strings.IndexByte(msg, ')')
	if open < 0 || shut < 0 || shut < open {
		return "", 0, fmt.Errorf("ftp: malformed PASV reply: %q", msg)
	}
	parts := strings.Split(msg[open+1:shut], ",")
	if len(parts) != 6 {
		return "", 0, fmt.Errorf("ftp: malformed PASV reply: %q", msg)
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", 0, fmt.Errorf("ftp: malformed PASV reply: %q", msg)
		}
		nums[i] = n
	}
	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]<<8 + nums[5]
	return host, port, nil
}

func readAll(r net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}

// dataStream wraps an FTP data connection, settling the control
// connection's final reply (226 Transfer complete, or an error status)
// on Close, per spec.md section 4.6.
type dataStream struct {
	conn   net.Conn
	tp     *textproto.Conn
	closed bool
}

func (d *dataStream) Read(p []byte) (int, error)  { return d.conn.Read(p) }
func (d *dataStream) Write(p []byte) (int, error) { return d.conn.Write(p) }

func (d *dataStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.conn.Close()
	d.tp.ReadResponse(0)
	return err
}
