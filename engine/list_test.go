package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/listing"
	"github.com/transferengine/engine/serverpath"
)

// countingListSession implements ProtocolSession with a List that counts
// how many times it was actually called, so doList's cache short-circuit
// can be verified without a real protocol driver.
type countingListSession struct {
	calls int
}

func (c *countingListSession) List(ctx context.Context, path serverpath.Path, subdir string, flags ListFlags) (listing.Listing, ReplyCode, error) {
	c.calls++
	return listing.Listing{Path: path.String(), Entries: []listing.Entry{{Name: "README"}}}, OK, nil
}
func (c *countingListSession) OpenTransfer(ctx context.Context, req TransferRequest) (TransferStream, ReplyCode, error) {
	return TransferStream{}, NotSupported, nil
}
func (c *countingListSession) Mkdir(ctx context.Context, path serverpath.Path) (ReplyCode, error) {
	return OK, nil
}
func (c *countingListSession) Delete(ctx context.Context, dir serverpath.Path, files []string) (ReplyCode, error) {
	return OK, nil
}
func (c *countingListSession) Rmdir(ctx context.Context, path serverpath.Path, subdir string) (ReplyCode, error) {
	return OK, nil
}
func (c *countingListSession) Rename(ctx context.Context, fromDir serverpath.Path, fromName string, toDir serverpath.Path, toName string) (ReplyCode, error) {
	return OK, nil
}
func (c *countingListSession) Chmod(ctx context.Context, dir serverpath.Path, file, permission string) (ReplyCode, error) {
	return OK, nil
}
func (c *countingListSession) Raw(ctx context.Context, command string) (ReplyCode, error) { return OK, nil }
func (c *countingListSession) Close() error                                              { return nil }

func TestDoListCacheHitAvoidsSecondRoundTrip(t *testing.T) {
	sess := &countingListSession{}
	e := newTestEngine(t, sess)

	path := serverpath.New(serverpath.Unix, "/pub")
	cmd := Command{Kind: CmdList, ListPath: path}

	require.Equal(t, OK, e.doList(context.Background(), cmd))
	require.Equal(t, OK, e.doList(context.Background(), cmd))

	assert.Equal(t, 1, sess.calls)
}

func TestDoListRefetchesWhenCacheEntryIsOutdated(t *testing.T) {
	sess := &countingListSession{}
	e := newTestEngine(t, sess)
	e.ctx.Config.DirectoryCacheTTL = time.Millisecond

	path := serverpath.New(serverpath.Unix, "/pub")
	cmd := Command{Kind: CmdList, ListPath: path}

	require.Equal(t, OK, e.doList(context.Background(), cmd))
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, OK, e.doList(context.Background(), cmd))

	assert.Equal(t, 2, sess.calls)
}

func TestDoListRefetchesWhenCacheEntryIsUnsure(t *testing.T) {
	sess := &countingUnsureListSession{}
	e := newTestEngine(t, sess)

	path := serverpath.New(serverpath.Unix, "/pub")
	cmd := Command{Kind: CmdList, ListPath: path}

	require.Equal(t, OK, e.doList(context.Background(), cmd))
	require.Equal(t, OK, e.doList(context.Background(), cmd))

	assert.Equal(t, 2, sess.calls)
}

// countingUnsureListSession is identical to countingListSession except
// every entry it returns carries an unsure bit, so the cache hit must
// never short-circuit regardless of freshness.
type countingUnsureListSession struct {
	countingListSession
}

func (c *countingUnsureListSession) List(ctx context.Context, path serverpath.Path, subdir string, flags ListFlags) (listing.Listing, ReplyCode, error) {
	c.calls++
	return listing.Listing{Path: path.String(), Entries: []listing.Entry{{Name: "README", Unsure: listing.UnsurePermissions}}}, OK, nil
}
