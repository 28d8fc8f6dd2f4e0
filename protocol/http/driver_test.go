package http

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteChunkedEncodesFramedBody(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeChunked(&out, strings.NewReader("hello")))
	assert.Equal(t, "5\r\nhello\r\n0\r\n\r\n", out.String())
}

func TestWriteChunkedEncodesEmptyBody(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeChunked(&out, strings.NewReader("")))
	assert.Equal(t, "0\r\n\r\n", out.String())
}

func TestReadOnlyStreamRejectsWrites(t *testing.T) {
	s := readOnlyStream{io.NopCloser(strings.NewReader("x"))}
	_, err := s.Write([]byte("y"))
	assert.Error(t, err)
}

func TestUploadStreamRejectsReads(t *testing.T) {
	u := uploadStream{done: make(chan error, 1)}
	_, err := u.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestUploadStreamCloseWaitsForWriterResult(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	done <- nil
	go io.Copy(io.Discard, pr)
	u := uploadStream{pw: pw, done: done}
	assert.NoError(t, u.Close())
}
