package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
)

// directSession implements DirectTransferSession (and the bare minimum
// of ProtocolSession) so doTransfer's direct-transfer branch can be
// exercised without a real protocol driver.
type directSession struct {
	downloadedTo string
	uploadedFrom string
	err          error
}

func (d *directSession) List(ctx context.Context, path serverpath.Path, subdir string, flags ListFlags) (listing.Listing, ReplyCode, error) {
	return listing.Listing{}, NotSupported, nil
}
func (d *directSession) OpenTransfer(ctx context.Context, req TransferRequest) (TransferStream, ReplyCode, error) {
	return TransferStream{}, NotSupported, assert.AnError
}
func (d *directSession) Mkdir(ctx context.Context, path serverpath.Path) (ReplyCode, error) { return OK, nil }
func (d *directSession) Delete(ctx context.Context, dir serverpath.Path, files []string) (ReplyCode, error) {
	return OK, nil
}
func (d *directSession) Rmdir(ctx context.Context, path serverpath.Path, subdir string) (ReplyCode, error) {
	return OK, nil
}
func (d *directSession) Rename(ctx context.Context, fromDir serverpath.Path, fromName string, toDir serverpath.Path, toName string) (ReplyCode, error) {
	return OK, nil
}
func (d *directSession) Chmod(ctx context.Context, dir serverpath.Path, file, permission string) (ReplyCode, error) {
	return OK, nil
}
func (d *directSession) Raw(ctx context.Context, command string) (ReplyCode, error) { return OK, nil }
func (d *directSession) Close() error                                              { return nil }

func (d *directSession) DirectTransfer(ctx context.Context, req TransferRequest, localPath string) (ReplyCode, error) {
	if d.err != nil {
		return Error, d.err
	}
	switch req.Direction {
	case Download:
		d.downloadedTo = localPath
	default:
		d.uploadedFrom = localPath
	}
	return OK, nil
}

func newTestEngine(t *testing.T, session ProtocolSession) *Engine {
	t.Helper()
	ctx, err := NewEngineContext(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })

	e := New(ctx, "test")
	e.session = session
	e.connected = true
	e.server = Server{Name: "srv"}
	return e
}

func TestDoTransferUsesDirectTransferSessionForDownload(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "sub", "out.bin")

	sess := &directSession{}
	e := newTestEngine(t, sess)

	reply := e.doTransfer(context.Background(), Command{
		Kind:       CmdTransfer,
		RemotePath: serverpath.New(serverpath.Unix, "/pub"),
		RemoteFile: "file.bin",
		LocalPath:  local,
		Direction:  Download,
	})

	assert.Equal(t, OK, reply)
	assert.Equal(t, local, sess.downloadedTo)
}

func TestDoTransferUsesDirectTransferSessionForUpload(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o644))

	sess := &directSession{}
	e := newTestEngine(t, sess)

	reply := e.doTransfer(context.Background(), Command{
		Kind:       CmdTransfer,
		RemotePath: serverpath.New(serverpath.Unix, "/pub"),
		RemoteFile: "file.bin",
		LocalPath:  local,
		Direction:  Upload,
	})

	assert.Equal(t, OK, reply)
	assert.Equal(t, local, sess.uploadedFrom)
}

func TestDoTransferPropagatesDirectTransferError(t *testing.T) {
	sess := &directSession{err: assert.AnError}
	e := newTestEngine(t, sess)

	reply := e.doTransfer(context.Background(), Command{
		Kind:       CmdTransfer,
		RemotePath: serverpath.New(serverpath.Unix, "/pub"),
		RemoteFile: "file.bin",
		LocalPath:  filepath.Join(t.TempDir(), "out.bin"),
		Direction:  Download,
	})

	assert.True(t, reply&Error != 0)
}
