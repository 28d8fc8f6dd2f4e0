package ftp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
)

func TestParsePASVExtractsHostAndPort(t *testing.T) {
	host, port, err := parsePASV("227 Entering Passive Mode (192,168,1,2,200,10).")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.2", host)
	assert.Equal(t, 200<<8+10, port)
}

func TestParsePASVRejectsMalformedReply(t *testing.T) {
	_, _, err := parsePASV("227 huh")
	assert.Error(t, err)
}

func TestPathTypeHintMapsServerPathType(t *testing.T) {
	s := &Session{server: engine.Server{PathType: serverpath.VMS}}
	assert.Equal(t, listing.HintVMS, s.pathTypeHint())

	s.server.PathType = serverpath.Unix
	assert.Equal(t, listing.HintUnix, s.pathTypeHint())
}

func TestReadAllReturnsBufferedBytesOnEOF(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		server.Write([]byte("hello"))
		server.Close()
	}()
	buf, err := readAll(client)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}
