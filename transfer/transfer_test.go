package transfer

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/transport/ratelimit"
)

// memFile is a minimal io.WriteSeeker over an in-memory buffer, enough
// to exercise Copy's seek/resume logic without touching the filesystem.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, assert.AnError
	}
	m.pos = offset
	return offset, nil
}

func TestDecideOverwritesWhenLocalMissing(t *testing.T) {
	action := Decide(DefaultOverwriteTable, LocalFileInfo{Exists: false}, 100, time.Now())
	assert.Equal(t, ActionOverwrite, action)
}

func TestDecideFallsBackToAsk(t *testing.T) {
	action := Decide(nil, LocalFileInfo{Exists: true, Size: 10}, 20, time.Now())
	assert.Equal(t, ActionAsk, action)
}

func TestCopyResumeNotHonoredSeeksBackToZero(t *testing.T) {
	dst := &memFile{buf: make([]byte, 1000)}
	dst.pos = 1000
	src := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 5000))

	result, err := Copy(context.Background(), dst, src, 1000, false, 0, nil, ratelimit.Download, nil)
	require.NoError(t, err)
	assert.True(t, result.ResumeNotHonored)
	assert.Equal(t, int64(5000), result.BytesTransferred)
	assert.Len(t, dst.buf, 5000)
}

func TestCopyHonoredResumeSeeksToOffset(t *testing.T) {
	dst := &memFile{buf: make([]byte, 1000)}
	src := bytes.NewReader([]byte("tail-bytes"))

	result, err := Copy(context.Background(), dst, src, 1000, true, 0, nil, ratelimit.Download, nil)
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, int64(1000+len("tail-bytes")), result.BytesTransferred)
}

func TestEnsureLocalDirReportsCreation(t *testing.T) {
	dir := t.TempDir() + "/nested/child"
	created, err := EnsureLocalDir(dir)
	require.NoError(t, err)
	assert.True(t, created)

	created2, err := EnsureLocalDir(dir)
	require.NoError(t, err)
	assert.False(t, created2)
}
