package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferengine/engine/engine"
)

func TestNeededSkipsAuthForPlainFTP(t *testing.T) {
	ls := NewLoginState(engine.Server{Protocol: engine.ProtocolFTP})
	assert.False(t, ls.Needed(StepAuthTLS))
	assert.False(t, ls.Needed(StepPBSZ))
}

func TestNeededIncludesAuthForFTPES(t *testing.T) {
	ls := NewLoginState(engine.Server{Protocol: engine.ProtocolFTPES})
	assert.True(t, ls.Needed(StepAuthTLS))
	assert.True(t, ls.Needed(StepPBSZ))
}

func TestParseWelcomeCriticalOn5xx(t *testing.T) {
	code, _ := ParseWelcome(530, "530 Too many users")
	assert.True(t, code.Has(engine.CriticalError))
}

func TestParseWelcomeDetectsMVS(t *testing.T) {
	_, hint := ParseWelcome(220, "220-FTP server (MVS) ready")
	assert.Equal(t, "mvs", hint)
}

func TestParseFEATSetsUTCOnMLSD(t *testing.T) {
	ls := NewLoginState(engine.Server{})
	ls.ParseFEAT([]string{" UTF8", " MLST type*;size*;modify*;perm*;", " MDTM", " SIZE"})
	assert.True(t, ls.Caps.UTF8)
	assert.True(t, ls.Caps.MLSD)
	assert.False(t, ls.TimezoneKnown)
}

func TestOptsMLSTArgumentIsIntersection(t *testing.T) {
	ls := NewLoginState(engine.Server{})
	ls.ParseFEAT([]string{" MLST type*;size*;modify*;unix.owner;"})
	arg := ls.OptsMLSTArgument()
	assert.Contains(t, arg, "type;")
	assert.Contains(t, arg, "unix.owner;")
	assert.NotContains(t, arg, "perm;")
}

func TestHandlePassResponseSetsPasswordFailed(t *testing.T) {
	code := HandlePassResponse(530)
	assert.True(t, code.Has(engine.PasswordFailed))
	assert.True(t, code.Has(engine.CriticalError))
}

func TestBuildPlainSequence(t *testing.T) {
	s := engine.Server{User: "alice", Password: "secret"}
	seq := BuildLoginSequence(s)
	require.Len(t, seq, 2)
	assert.Equal(t, "USER alice", seq[0].Command)
	assert.True(t, seq[1].HideArguments)
}

func TestBuildUserAtHostSequenceWithProxyAuth(t *testing.T) {
	s := engine.Server{
		User: "alice", Password: "secret", Host: "example.com", Port: 21,
		FTPProxy: engine.FTPProxyConfig{Variant: engine.FTPProxyUserAtHost, User: "proxyuser", Password: "proxypass"},
	}
	seq := BuildLoginSequence(s)
	require.Len(t, seq, 4)
	assert.Equal(t, "USER proxyuser", seq[0].Command)
	assert.Equal(t, "USER alice@example.com:21", seq[2].Command)
}

func TestBuildCustomSequenceSkipsEmptyAccountRow(t *testing.T) {
	s := engine.Server{
		User: "alice", Password: "secret", Host: "example.com", Port: 21, Account: "",
		FTPProxy: engine.FTPProxyConfig{Variant: engine.FTPProxyCustom, CustomSequence: []string{
			"USER %u", "PASS %p", "ACCT %a",
		}},
	}
	seq := BuildLoginSequence(s)
	require.Len(t, seq, 2)
	for _, c := range seq {
		assert.NotContains(t, c.Template, "%a")
	}
}

func TestReencodeForAutoForbiddenBehindProxy(t *testing.T) {
	s := engine.Server{User: "élise", Password: "secret"}
	_, err := ReencodeForAuto(s, true)
	assert.Error(t, err)
}

func TestReencodeForAutoAllowedDirect(t *testing.T) {
	s := engine.Server{User: "élise", Password: "secret"}
	retry, err := ReencodeForAuto(s, false)
	require.NoError(t, err)
	assert.True(t, retry)
}
