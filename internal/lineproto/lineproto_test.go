package lineproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Send(TokenStatus, "connecting", "host\twith\ttabs"))
	require.NoError(t, w.Send(TokenDone))

	r := NewReader(&buf)
	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenStatus, msg.Token)
	assert.Equal(t, "connecting", msg.Field(0))
	assert.Equal(t, "host\twith\ttabs", msg.Field(1))

	msg2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenDone, msg2.Token)
	assert.Empty(t, msg2.Fields)
}

func TestReaderReturnsEOFAtStreamEnd(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFieldIntParsesOrFallsBack(t *testing.T) {
	msg := Message{Token: TokenUsedQuotaRecv, Fields: []string{"1234", "notanumber"}}
	assert.Equal(t, int64(1234), msg.FieldInt(0, -1))
	assert.Equal(t, int64(-1), msg.FieldInt(1, -1))
	assert.Equal(t, int64(-1), msg.FieldInt(5, -1))
}
