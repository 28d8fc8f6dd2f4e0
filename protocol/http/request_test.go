package http

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareSetsDefaultHeaders(t *testing.T) {
	req := &Request{Method: "GET", Host: "example.com", Port: 80, Target: "/"}
	require.NoError(t, Prepare(req))
	assert.Equal(t, "example.com:80", req.Headers["Host"])
	assert.Equal(t, "close", req.Headers["Connection"])
	assert.NotEmpty(t, req.Headers["User-Agent"])
}

func TestPrepareRequiresBodySupplierForContentLength(t *testing.T) {
	req := &Request{Method: "POST", Host: "h", Port: 80, Target: "/", ContentLength: 10}
	assert.Error(t, Prepare(req))
}

func TestReadResponseChunkedWithTrailer(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\nX-Md5: deadbeef\r\n\r\n"
	resp, err := ReadResponse(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestReadResponseContentLength(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	resp, err := ReadResponse(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestIsRedirect(t *testing.T) {
	assert.True(t, IsRedirect(302))
	assert.True(t, IsRedirect(308))
	assert.False(t, IsRedirect(200))
	assert.False(t, IsRedirect(404))
}
