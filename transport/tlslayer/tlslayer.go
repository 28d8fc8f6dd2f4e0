// Package tlslayer wraps a connection with TLS, exposing the
// trust-on-first-use certificate verification and algorithm-warning
// reporting spec.md section 4 calls for. It uses crypto/tls directly
// rather than a third-party TLS library, matching rclone's own backends
// (e.g. its WebDAV/HTTP backends configure tls.Config directly) — the
// pack shows no wrapper library for this concern.
package tlslayer

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Weakness flags an algorithm or parameter choice a handshake used that
// is notable but not fatal, per spec.md section 4's "algorithm warning
// bitmap".
type Weakness uint8

const (
	WeakNone            Weakness = 0
	WeakProtocolVersion Weakness = 1 << iota
	WeakCipherSuite
	WeakKeyExchange
)

// TrustDecision is returned by a TrustFunc to say whether a certificate
// chain should be accepted for this and/or future connections.
type TrustDecision int

const (
	TrustReject TrustDecision = iota
	TrustOnce
	TrustAlways
)

// TrustFunc is consulted for any certificate the engine has not already
// pinned, implementing spec.md's trust-on-first-use certificate prompt.
// It is never called for chains that verify against the system root
// store unless AlwaysPrompt is set.
type TrustFunc func(host string, chain []*x509.Certificate, verifyErr error) TrustDecision

// Config controls how Wrap verifies the peer.
type Config struct {
	ServerName   string
	Trust        TrustFunc
	AlwaysPrompt bool
	Pinned       map[string][]byte // host -> accepted leaf cert fingerprint (sha256)
}

// Conn is a TLS-wrapped connection plus the algorithm-warning bitmap
// observed during the handshake.
type Conn struct {
	*tls.Conn
	Weaknesses Weakness
}

// Wrap performs a client TLS handshake over conn, consulting cfg.Trust
// for any certificate not already pinned in cfg.Pinned.
func Wrap(ctx context.Context, conn net.Conn, cfg Config) (*Conn, error) {
	if cfg.Pinned == nil {
		cfg.Pinned = map[string][]byte{}
	}
	verified := false
	tlsCfg := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: true, // verification is done manually below to support TOFU
		VerifyConnection: func(cs tls.ConnectionState) error {
			verified = true
			return verifyTOFU(cs, cfg)
		},
	}

	tc := tls.Client(conn, tlsCfg)
	done := make(chan error, 1)
	go func() { done <- tc.Handshake() }()
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		_ = tc.Close()
		return nil, ctx.Err()
	}
	if !verified {
		return nil, errors.New("tlslayer: connection state never verified")
	}

	state := tc.ConnectionState()
	return &Conn{Conn: tc, Weaknesses: classify(state)}, nil
}

func verifyTOFU(cs tls.ConnectionState, cfg Config) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("tlslayer: no peer certificate presented")
	}
	leaf := cs.PeerCertificates[0]

	opts := x509.VerifyOptions{
		DNSName:       cfg.ServerName,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(c)
	}
	_, verifyErr := leaf.Verify(opts)

	fingerprint := sha256Sum(leaf.Raw)
	if pinned, ok := cfg.Pinned[cfg.ServerName]; ok {
		if string(pinned) == string(fingerprint) {
			return nil
		}
	}
	if verifyErr == nil && !cfg.AlwaysPrompt {
		return nil
	}
	if cfg.Trust == nil {
		return verifyErr
	}
	switch cfg.Trust(cfg.ServerName, cs.PeerCertificates, verifyErr) {
	case TrustAlways:
		cfg.Pinned[cfg.ServerName] = fingerprint
		return nil
	case TrustOnce:
		return nil
	default:
		return fmt.Errorf("tlslayer: certificate rejected for %s: %w", cfg.ServerName, orDefault(verifyErr))
	}
}

func orDefault(err error) error {
	if err != nil {
		return err
	}
	return errors.New("not trusted by user")
}

func classify(state tls.ConnectionState) Weakness {
	var w Weakness
	if state.Version < tls.VersionTLS12 {
		w |= WeakProtocolVersion
	}
	switch state.CipherSuite {
	case tls.TLS_RSA_WITH_RC4_128_SHA, tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:
		w |= WeakCipherSuite
	}
	return w
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
