// Package urlparse parses server URLs accepted by the engine, per
// spec.md section 6. It builds on stdlib net/url (no pack library adds
// bespoke scheme aliasing or bracketed-IPv6 handling beyond what net/url
// already does) and layers the "fz_*" scheme-equivalence rule on top.
package urlparse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the normalized, engine-recognized protocol scheme.
type Scheme string

const (
	SchemeFTP   Scheme = "ftp"
	SchemeFTPS  Scheme = "ftps"
	SchemeFTPES Scheme = "ftpes"
	SchemeSFTP  Scheme = "sftp"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// schemeAliases maps every canonical scheme name and its "fz_*"-prefixed
// alias onto its canonical Scheme, per spec.md section
// 6: the engine must treat "fz_ftp://" identically to "ftp://" so that
// URLs round-tripped through the UI layer are never misrouted.
var schemeAliases = map[string]Scheme{
	"ftp": SchemeFTP, "fz_ftp": SchemeFTP,
	"ftps": SchemeFTPS, "fz_ftps": SchemeFTPS,
	"ftpes": SchemeFTPES, "fz_ftpes": SchemeFTPES,
	"sftp": SchemeSFTP, "fz_sftp": SchemeSFTP,
	"http": SchemeHTTP, "fz_http": SchemeHTTP,
	"https": SchemeHTTPS, "fz_https": SchemeHTTPS,
}

var defaultPorts = map[Scheme]int{
	SchemeFTP: 21, SchemeFTPS: 990, SchemeFTPES: 21,
	SchemeSFTP: 22, SchemeHTTP: 80, SchemeHTTPS: 443,
}

// ServerURL is a fully parsed, validated server address.
type ServerURL struct {
	Scheme   Scheme
	Host     string // never bracketed, even for IPv6
	Port     int
	User     string
	Password string
	Path     string
}

// Parse parses raw into a ServerURL, resolving fz_* scheme aliases and
// applying the scheme's default port when none is given.
func Parse(raw string) (ServerURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ServerURL{}, fmt.Errorf("urlparse: %w", err)
	}
	if u.Scheme == "" {
		return ServerURL{}, fmt.Errorf("urlparse: missing scheme in %q", raw)
	}
	scheme, ok := schemeAliases[strings.ToLower(u.Scheme)]
	if !ok {
		return ServerURL{}, fmt.Errorf("urlparse: unrecognized scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return ServerURL{}, fmt.Errorf("urlparse: missing host in %q", raw)
	}

	port := defaultPorts[scheme]
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return ServerURL{}, fmt.Errorf("urlparse: invalid port %q", p)
		}
		port = n
	}

	result := ServerURL{Scheme: scheme, Host: host, Port: port, Path: u.Path}
	if u.User != nil {
		result.User = u.User.Username()
		result.Password, _ = u.User.Password()
	}
	return result, nil
}

// String renders a ServerURL back to canonical form, always using the
// plain (non fz_*) scheme and bracketing an IPv6 host.
func (s ServerURL) String() string {
	host := s.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u := url.URL{Scheme: string(s.Scheme), Host: fmt.Sprintf("%s:%d", host, s.Port), Path: s.Path}
	if s.User != "" {
		if s.Password != "" {
			u.User = url.UserPassword(s.User, s.Password)
		} else {
			u.User = url.User(s.User)
		}
	}
	return u.String()
}
