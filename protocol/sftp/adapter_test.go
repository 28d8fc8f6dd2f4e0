package sftp

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/internal/lineproto"
	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
)

func TestAppendEntryMapsKindStrings(t *testing.T) {
	a := &sessionAdapter{}
	a.appendEntry("file.txt", "file", 10)
	a.appendEntry("sub", "dir", 0)
	a.appendEntry("link", "link", 0)

	require := assert.New(t)
	require.Len(a.entries, 3)
	require.Equal(listing.KindFile, a.entries[0].Kind)
	require.Equal(listing.KindDir, a.entries[1].Kind)
	require.Equal(listing.KindLink, a.entries[2].Kind)
}

// fakeAdapter wires a sessionAdapter to an in-memory Session so the
// Mkdir/Delete/Rmdir/Rename/Chmod forwarding can be exercised without a
// spawned helper process.
func fakeAdapter(in *bytes.Buffer, out *bytes.Buffer) *sessionAdapter {
	return &sessionAdapter{session: newTestSession(in, out, Options{})}
}

func TestSessionAdapterMkdirSendsRequestAndWaitsForDone(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "mkdir"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Mkdir(context.Background(), serverpath.New(serverpath.Unix, "/pub/new"))
	require.NoError(t, err)
	assert.Equal(t, engine.OK, reply)
	assert.Contains(t, out.String(), "mkdir\t/pub/new")
}

func TestSessionAdapterDeleteLoopsOneRemovePerFile(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "remove"))
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "remove"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Delete(context.Background(), serverpath.New(serverpath.Unix, "/pub"), []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, engine.OK, reply)
	assert.Contains(t, out.String(), "remove\t/pub/a.txt")
	assert.Contains(t, out.String(), "remove\t/pub/b.txt")
}

func TestSessionAdapterDeleteStopsOnFirstError(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenError, "no such file"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Delete(context.Background(), serverpath.New(serverpath.Unix, "/pub"), []string{"a.txt", "b.txt"})
	assert.Error(t, err)
	assert.Equal(t, engine.Error, reply)
	assert.NotContains(t, out.String(), "b.txt")
}

func TestSessionAdapterRmdirUsesSubdirWhenGiven(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "rmdir"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Rmdir(context.Background(), serverpath.New(serverpath.Unix, "/pub"), "old")
	require.NoError(t, err)
	assert.Equal(t, engine.OK, reply)
	assert.Contains(t, out.String(), "rmdir\t/pub/old")
}

func TestSessionAdapterRenameJoinsDirAndName(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "rename"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Rename(context.Background(), serverpath.New(serverpath.Unix, "/pub"), "old.txt", serverpath.New(serverpath.Unix, "/pub"), "new.txt")
	require.NoError(t, err)
	assert.Equal(t, engine.OK, reply)
	assert.Contains(t, out.String(), "rename\t/pub/old.txt\t/pub/new.txt")
}

func TestSessionAdapterChmodForwardsPermissionString(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "chmod"))
	a := fakeAdapter(&in, &out)

	reply, err := a.Chmod(context.Background(), serverpath.New(serverpath.Unix, "/pub"), "file.txt", "644")
	require.NoError(t, err)
	assert.Equal(t, engine.OK, reply)
	assert.Contains(t, out.String(), "chmod\t/pub/file.txt\t644")
}

func TestSessionAdapterRawReportsNotSupported(t *testing.T) {
	a := &sessionAdapter{}
	reply, err := a.Raw(context.Background(), "whatever")
	assert.Equal(t, engine.NotSupported, reply)
	assert.Error(t, err)
}
