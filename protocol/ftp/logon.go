// Package ftp implements the FTP/FTPS/FTPES ProtocolDriver: the login
// state machine, directory listing/transfer/file-management operations,
// and reply-line parsing, per spec.md section 4.4 and original_source's
// ftp/logon.cpp. Control-connection reply parsing uses net/textproto
// directly, matching rclone's own backend/ftp error handling rather
// than a third-party FTP reply parser.
package ftp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/transferengine/engine/engine"
)

// Step enumerates the login state machine's steps, in the fixed order
// spec.md section 4.4 specifies.
type Step int

const (
	StepConnect Step = iota
	StepWelcome
	StepAuthTLS
	StepAuthSSL
	StepAuthWait
	StepSYST
	StepFEAT
	StepCLNT
	StepOptsUTF8On
	StepPBSZ
	StepPROT
	StepUserPassAccount
	StepOptsMLST
	StepCustomCommands
	StepDone
)

// Capabilities records what the FEAT response advertised, consulted by
// later steps to decide whether CLNT/OPTS UTF8/MLST negotiation apply.
type Capabilities struct {
	UTF8        bool
	CLNT        bool
	MLSD        bool
	MFMT        bool
	MDTM        bool
	SIZE        bool
	TVFS        bool
	RestStream  bool
	EPSV        bool
	ModeZ       bool
	MLSTFacts   map[string]bool
}

// wantedMLSTFacts is the full fact set the engine would like enabled,
// per spec.md section 4.4; OPTS MLST only requests the intersection
// with what the server actually advertises.
var wantedMLSTFacts = []string{
	"type", "size", "modify", "perm", "unix.mode", "unix.owner",
	"unix.ownername", "unix.group", "unix.groupname", "unix.user",
	"unix.uid", "unix.gid", "x.hidden",
}

// LoginState drives one login attempt from CONNECT to DONE.
type LoginState struct {
	Step         Step
	Server       engine.Server
	Caps         Capabilities
	UseTLS       bool // AUTH TLS/SSL succeeded, or protocol forces it
	SSLFallback  bool // plaintext continuation after a failed AUTH TLS
	ProtectData  bool // PROT P succeeded
	UseUTF8      bool
	TimezoneKnown bool // cleared (forced UTC) once MLSD/MLST is confirmed
	sequence     []LoginCommand
	seqIndex     int
}

// LoginCommand is one emitted step of the USER/PASS/ACCOUNT sequence.
type LoginCommand struct {
	Type          string // "proxy-user", "proxy-pass", "user", "pass", "acct", "site", "open"
	Command       string // fully substituted command text, deferred for %p until send time
	Template      string // raw template, kept for deferred %p substitution
	Optional      bool
	HideArguments bool
}

// NewLoginState begins a login attempt for server.
func NewLoginState(server engine.Server) *LoginState {
	return &LoginState{Step: StepConnect, Server: server, TimezoneKnown: true}
}

// Needed reports whether step applies to this server's configured
// protocol, implementing spec.md section 4.4's needed[step] bitmap:
// FTPS skips AUTH negotiation (it is already encrypted at connect
// time), plain FTP skips PBSZ/PROT, and non-FTP servers never reach
// this driver at all.
func (ls *LoginState) Needed(step Step) bool {
	switch step {
	case StepAuthTLS, StepAuthSSL, StepAuthWait:
		return ls.Server.Protocol == engine.ProtocolFTPES
	case StepPBSZ, StepPROT:
		return ls.Server.Protocol == engine.ProtocolFTPES || ls.Server.Protocol == engine.ProtocolFTPS
	case StepCLNT:
		return ls.UseUTF8 && ls.Caps.CLNT
	case StepOptsUTF8On:
		return ls.UseUTF8 && ls.Caps.UTF8
	case StepOptsMLST:
		return ls.Caps.MLSD
	case StepCustomCommands:
		return len(ls.Server.PostLoginCommands) > 0
	default:
		return true
	}
}

// Advance moves to the next applicable step after the current one
// completes successfully.
func (ls *LoginState) Advance() {
	for s := ls.Step + 1; s <= StepDone; s++ {
		if ls.Needed(s) {
			ls.Step = s
			return
		}
	}
	ls.Step = StepDone
}

// ParseWelcome applies spec.md section 4.4's banner rule: a 5xx banner
// is always fatal; a 2xx banner may also hint at a mainframe dialect
// used later by the listing parser's type hint.
func ParseWelcome(code int, banner string) (engine.ReplyCode, string) {
	if code >= 500 {
		return engine.Error | engine.CriticalError, ""
	}
	upper := strings.ToUpper(banner)
	switch {
	case strings.Contains(upper, "MVS"):
		return engine.OK, "mvs"
	case strings.Contains(upper, "VM/"), strings.Contains(upper, "Z/VM"):
		return engine.OK, "zvm"
	case strings.Contains(upper, "HP NONSTOP"), strings.Contains(upper, "TANDEM"):
		return engine.OK, "hpnonstop"
	default:
		return engine.OK, ""
	}
}

// ParseFEAT extracts capability lines from a multiline FEAT reply body
// (one capability per indented line), setting Caps and implementing the
// "MLSD/MLST imply UTC" rule.
func (ls *LoginState) ParseFEAT(lines []string) {
	caps := Capabilities{MLSTFacts: map[string]bool{}}
	for _, raw := range lines {
		line := strings.ToUpper(strings.TrimSpace(raw))
		switch {
		case line == "UTF8":
			caps.UTF8 = true
		case line == "CLNT":
			caps.CLNT = true
		case strings.HasPrefix(line, "MLSD") || strings.HasPrefix(line, "MLST"):
			caps.MLSD = true
			for _, f := range strings.Split(strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "MLST"), "MLSD")), ";") {
				f = strings.TrimSuffix(strings.TrimSpace(f), "*")
				if f != "" {
					caps.MLSTFacts[strings.ToLower(f)] = true
				}
			}
		case line == "MFMT":
			caps.MFMT = true
		case line == "MDTM":
			caps.MDTM = true
		case line == "SIZE":
			caps.SIZE = true
		case line == "TVFS":
			caps.TVFS = true
		case strings.HasPrefix(line, "REST STREAM"):
			caps.RestStream = true
		case line == "EPSV":
			caps.EPSV = true
		case strings.HasPrefix(line, "MODE Z"):
			caps.ModeZ = true
		}
	}
	ls.Caps = caps
	if caps.MLSD {
		ls.TimezoneKnown = false // spec.md 4.4: facts are UTC, clear any offset
	}
	// spec.md 4.4: CLNT/OPTS UTF8 ON only apply when UTF-8 is in use —
	// either the user explicitly chose it, or the encoding policy is
	// auto and the server advertised UTF8 in FEAT.
	switch ls.Server.Encoding {
	case engine.EncodingUTF8:
		ls.UseUTF8 = true
	case engine.EncodingAuto:
		ls.UseUTF8 = caps.UTF8
	default:
		ls.UseUTF8 = false
	}
}

// OptsMLSTArgument builds the "OPTS MLST <facts>;" argument: the
// intersection of wantedMLSTFacts with what FEAT advertised, in the
// fixed order wantedMLSTFacts lists them.
func (ls *LoginState) OptsMLSTArgument() string {
	var b strings.Builder
	for _, f := range wantedMLSTFacts {
		if ls.Caps.MLSTFacts[f] {
			b.WriteString(f)
			b.WriteString(";")
		}
	}
	return b.String()
}

// HandleAuthResponse implements the AUTH TLS/SSL fallback rule: any 5xx
// response continues in plaintext, disables PBSZ/PROT, and jumps
// straight to the login sequence. The fallback is unconditional; no
// setting turns it off.
func (ls *LoginState) HandleAuthResponse(code int) {
	if code < 500 {
		ls.UseTLS = true
		return
	}
	ls.SSLFallback = true
	ls.UseTLS = false
	ls.Step = StepUserPassAccount - 1 // Advance() lands on StepUserPassAccount next
}

// HandlePassResponse implements "5xx on PASS => PASSWORD_FAILED|CRITICAL".
func HandlePassResponse(code int) engine.ReplyCode {
	if code >= 500 {
		return engine.Error | engine.PasswordFailed | engine.CriticalError
	}
	return engine.OK
}

// HandleFinalSequenceResponse implements "3xx on the final login-sequence
// step => CRITICAL, sequence executed yet not logged in".
func HandleFinalSequenceResponse(code int, accountEmpty bool) (engine.ReplyCode, string) {
	if code >= 300 && code < 400 {
		hint := ""
		if accountEmpty {
			hint = "server may require an account; none was configured"
		}
		return engine.Error | engine.CriticalError, hint
	}
	if code >= 500 {
		return engine.Error | engine.CriticalError, ""
	}
	return engine.OK, ""
}

// substitute expands the %h %u %p %a %s %w template placeholders and
// the %% escape, per spec.md section 4.4. %p (password) is left
// untouched when deferSend is true, so it can be filled in at send time
// after an interactive password prompt resolves.
func substitute(template string, s engine.Server, proxy engine.FTPProxyConfig, deferSend bool) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}
		i++
		switch template[i] {
		case 'h':
			b.WriteString(fmt.Sprintf("%s:%d", s.Host, s.Port))
		case 'u':
			b.WriteString(s.User)
		case 'p':
			if deferSend {
				b.WriteString("%p")
			} else {
				b.WriteString(s.Password)
			}
		case 'a':
			b.WriteString(s.Account)
		case 's':
			b.WriteString(proxy.User)
		case 'w':
			b.WriteString(proxy.Password)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	return b.String()
}

// BuildLoginSequence emits the USER/PASS/ACCOUNT command list for
// server's configured FTP proxy variant, per spec.md section 4.4.
func BuildLoginSequence(s engine.Server) []LoginCommand {
	switch s.FTPProxy.Variant {
	case engine.FTPProxyUserAtHost:
		return buildUserAtHostSequence(s)
	case engine.FTPProxySite, engine.FTPProxyOpen:
		return buildSiteOrOpenSequence(s)
	case engine.FTPProxyCustom:
		return buildCustomSequence(s)
	default:
		return buildPlainSequence(s)
	}
}

func buildPlainSequence(s engine.Server) []LoginCommand {
	seq := []LoginCommand{
		{Type: "user", Command: "USER " + s.User},
		{Type: "pass", Command: "PASS " + s.Password, HideArguments: true},
	}
	if s.Account != "" {
		seq = append(seq, LoginCommand{Type: "acct", Command: "ACCT " + s.Account, Optional: true})
	}
	return seq
}

func buildUserAtHostSequence(s engine.Server) []LoginCommand {
	var seq []LoginCommand
	p := s.FTPProxy
	if p.User != "" {
		seq = append(seq,
			LoginCommand{Type: "proxy-user", Command: "USER " + p.User},
			LoginCommand{Type: "proxy-pass", Command: "PASS " + p.Password, HideArguments: true},
		)
	}
	seq = append(seq,
		LoginCommand{Type: "user", Command: fmt.Sprintf("USER %s@%s:%d", s.User, s.Host, s.Port)},
		LoginCommand{Type: "pass", Command: "PASS " + s.Password, HideArguments: true},
	)
	if s.Account != "" {
		seq = append(seq, LoginCommand{Type: "acct", Command: "ACCT " + s.Account, Optional: true})
	}
	return seq
}

func buildSiteOrOpenSequence(s engine.Server) []LoginCommand {
	var seq []LoginCommand
	p := s.FTPProxy
	if p.User != "" {
		seq = append(seq,
			LoginCommand{Type: "proxy-user", Command: "USER " + p.User},
			LoginCommand{Type: "proxy-pass", Command: "PASS " + p.Password, HideArguments: true},
		)
	}
	verb := "SITE"
	if p.Variant == engine.FTPProxyOpen {
		verb = "OPEN"
	}
	seq = append(seq,
		LoginCommand{Type: strings.ToLower(verb), Command: fmt.Sprintf("%s %s:%d", verb, s.Host, s.Port)},
		LoginCommand{Type: "user", Command: "USER " + s.User},
		LoginCommand{Type: "pass", Command: "PASS " + s.Password, HideArguments: true},
	)
	if s.Account != "" {
		seq = append(seq, LoginCommand{Type: "acct", Command: "ACCT " + s.Account, Optional: true})
	}
	return seq
}

// buildCustomSequence expands the fully templated custom proxy login
// sequence, applying the row-skip rules: a row referencing an empty
// account is skipped, and a row referencing an empty proxy-user without
// also referencing host/user is skipped.
func buildCustomSequence(s engine.Server) []LoginCommand {
	var seq []LoginCommand
	for _, template := range s.FTPProxy.CustomSequence {
		if strings.Contains(template, "%a") && s.Account == "" {
			continue
		}
		if strings.Contains(template, "%s") && s.FTPProxy.User == "" &&
			!strings.Contains(template, "%h") && !strings.Contains(template, "%u") {
			continue
		}
		hide := strings.Contains(template, "%p") || strings.Contains(template, "%w")
		seq = append(seq, LoginCommand{
			Type:          "custom",
			Template:      template,
			Command:       substitute(template, s, s.FTPProxy, true),
			HideArguments: hide,
		})
	}
	return seq
}

// ResolveDeferred fills in a deferred %p placeholder at send time, once
// an interactive password prompt (if any) has resolved.
func ResolveDeferred(cmd LoginCommand, password string) string {
	if cmd.Template == "" {
		return cmd.Command
	}
	return strings.ReplaceAll(cmd.Command, "%p", password)
}

// ReencodeForAuto implements spec.md section 4.4's "encoding=auto, login
// failed with non-ASCII credentials => retry in ISO-8859-1" rule. It
// returns ok=false when the server is reached through an FTP proxy,
// where the restriction forbids the re-encode retry.
func ReencodeForAuto(s engine.Server, behindProxy bool) (bool, error) {
	if behindProxy {
		return false, fmt.Errorf("ftp: auto-encoding retry is not permitted behind an FTP proxy")
	}
	if isASCII(s.User) && isASCII(s.Password) {
		return false, nil
	}
	return true, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// ParseReplyCode extracts the 3-digit code from a raw FTP reply line.
func ParseReplyCode(line string) (int, bool) {
	if len(line) < 3 {
		return 0, false
	}
	n, err := strconv.Atoi(line[:3])
	return n, err == nil
}
