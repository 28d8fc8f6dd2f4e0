package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/serverpath"
)

func TestParseProtocolAcceptsAllKnownNames(t *testing.T) {
	cases := map[string]engine.Protocol{
		"ftp":   engine.ProtocolFTP,
		"ftpes": engine.ProtocolFTPES,
		"ftps":  engine.ProtocolFTPS,
		"sftp":  engine.ProtocolSFTP,
		"http":  engine.ProtocolHTTP,
		"https": engine.ProtocolHTTPS,
	}
	for name, want := range cases {
		got, err := parseProtocol(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseProtocolRejectsUnknownName(t *testing.T) {
	_, err := parseProtocol("gopher")
	assert.Error(t, err)
}

func TestDefaultPortPerProtocol(t *testing.T) {
	assert.Equal(t, 21, defaultPort(engine.ProtocolFTP))
	assert.Equal(t, 990, defaultPort(engine.ProtocolFTPS))
	assert.Equal(t, 22, defaultPort(engine.ProtocolSFTP))
	assert.Equal(t, 80, defaultPort(engine.ProtocolHTTP))
	assert.Equal(t, 443, defaultPort(engine.ProtocolHTTPS))
}

func TestParsePathType(t *testing.T) {
	assert.Equal(t, serverpath.VMS, parsePathType("vms"))
	assert.Equal(t, serverpath.MVS, parsePathType("mvs"))
	assert.Equal(t, serverpath.DOS, parsePathType("dos"))
	assert.Equal(t, serverpath.Unix, parsePathType("unix"))
	assert.Equal(t, serverpath.Unix, parsePathType("anything-else"))
}

func TestConnFlagsServerFillsDefaultPort(t *testing.T) {
	cf := connFlags{protocol: "sftp", host: "example.org", user: "bob"}
	server, err := cf.server()
	require.NoError(t, err)
	assert.Equal(t, engine.ProtocolSFTP, server.Protocol)
	assert.Equal(t, 22, server.Port)
	assert.Equal(t, "bob", server.User)
}

func TestConnFlagsServerRejectsUnknownProtocol(t *testing.T) {
	cf := connFlags{protocol: "gopher", host: "example.org"}
	_, err := cf.server()
	assert.Error(t, err)
}
