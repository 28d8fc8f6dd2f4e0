package engine

import "github.com/transferengine/engine/serverpath"

// Protocol identifies the wire protocol used to talk to a Server.
type Protocol int

const (
	ProtocolFTP Protocol = iota
	ProtocolFTPES          // explicit FTP over TLS
	ProtocolFTPS           // implicit FTP over TLS
	ProtocolSFTP
	ProtocolHTTP
	ProtocolHTTPS
)

// LogonType selects how credentials are obtained, per spec.md section 3.
type LogonType int

const (
	LogonAnonymous LogonType = iota
	LogonNormal
	LogonAsk
	LogonInteractive
	LogonKeyFile
	LogonAccount
)

// EncodingPolicy controls how the control connection's charset is chosen.
type EncodingPolicy int

const (
	EncodingAuto EncodingPolicy = iota
	EncodingUTF8
	EncodingCustom
	EncodingISO88591
)

// Server is the structural data describing a remote endpoint. Two
// servers are equal iff all identifying fields match; Name is not
// identifying (spec.md section 3).
type Server struct {
	Name     string
	Protocol Protocol
	Host     string
	Port     int

	Logon    LogonType
	User     string
	Password string
	Account  string
	KeyFile  string

	Encoding       EncodingPolicy
	CustomCharset  string
	TimezoneOffset int // minutes

	PostLoginCommands []string
	ProxyBypass       bool
	PathType          serverpath.Type

	// FTP proxy login templating (spec.md section 4.4); the zero Variant
	// (FTPProxyNone) means "no FTP proxy".
	FTPProxy FTPProxyConfig
}

// FTPProxyVariant selects one of the five login-sequence builders in
// spec.md section 4.4.
type FTPProxyVariant int

const (
	FTPProxyNone FTPProxyVariant = iota
	FTPProxyUserAtHost
	FTPProxySite
	FTPProxyOpen
	FTPProxyCustom
)

// FTPProxyConfig configures an FTP-level login proxy.
type FTPProxyConfig struct {
	Variant   FTPProxyVariant
	Host      string
	Port      int
	User      string
	Password  string
	// CustomSequence is used only when Variant == FTPProxyCustom; each
	// entry is a template using %h %u %p %a %s %w placeholders, see
	// spec.md section 4.4.
	CustomSequence []string
}

// Equal reports whether s and o agree on every identifying field,
// matching spec.md's "two servers are equal iff all identifying fields
// match (name is not identifying)".
func (s Server) Equal(o Server) bool {
	return s.Protocol == o.Protocol &&
		s.Host == o.Host &&
		s.Port == o.Port &&
		s.Logon == o.Logon &&
		s.User == o.User &&
		s.Password == o.Password &&
		s.Account == o.Account &&
		s.KeyFile == o.KeyFile &&
		s.Encoding == o.Encoding &&
		s.CustomCharset == o.CustomCharset &&
		s.TimezoneOffset == o.TimezoneOffset &&
		s.ProxyBypass == o.ProxyBypass &&
		s.PathType == o.PathType
}

// SameHostPort reports whether two servers share host and port, used by
// the failed-login list's non-critical pruning rule (spec.md section 4.1).
func (s Server) SameHostPort(o Server) bool {
	return s.Host == o.Host && s.Port == o.Port
}

// IsFTPFamily reports whether Protocol is one of the FTP variants.
func (s Server) IsFTPFamily() bool {
	switch s.Protocol {
	case ProtocolFTP, ProtocolFTPES, ProtocolFTPS:
		return true
	}
	return false
}
