package sftp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/internal/lineproto"
)

func TestPumpCollectsListEntriesUntilDone(t *testing.T) {
	var in bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenListentry, "a.txt", "file", "10"))
	in.WriteString(lineproto.Encode(lineproto.TokenListentry, "sub", "dir", "0"))
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "list"))

	var entries []string
	s := newTestSession(&in, &bytes.Buffer{}, Options{
		OnListEntry: func(name, kind string, size int64) {
			entries = append(entries, name+":"+kind)
		},
	})
	require.NoError(t, s.pump("list"))
	assert.Equal(t, []string{"a.txt:file", "sub:dir"}, entries)
}

func TestPumpReturnsErrorOnErrorToken(t *testing.T) {
	var in bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenError, "permission denied"))
	s := newTestSession(&in, &bytes.Buffer{}, Options{})
	err := s.pump("recv")
	assert.ErrorContains(t, err, "permission denied")
}

func TestPumpRespondsToAskPasswordPrompt(t *testing.T) {
	var in bytes.Buffer
	in.WriteString(lineproto.Encode(lineproto.TokenAskPassword))
	in.WriteString(lineproto.Encode(lineproto.TokenDone, "recv"))

	var out bytes.Buffer
	s := newTestSession(&in, &out, Options{
		OnPrompt: func(tok lineproto.Token, msg lineproto.Message) (string, error) {
			assert.Equal(t, lineproto.TokenAskPassword, tok)
			return "secret", nil
		},
	})
	require.NoError(t, s.pump("recv"))
	assert.Contains(t, out.String(), "secret")
}
