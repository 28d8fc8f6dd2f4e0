package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/serverpath"
)

func TestListCommandPrefersMLSD(t *testing.T) {
	p := serverpath.New(serverpath.Unix, "/pub")
	assert.Equal(t, "MLSD /pub", ListCommand(Capabilities{MLSD: true}, p))
	assert.Equal(t, "LIST /pub", ListCommand(Capabilities{}, p))
}

func TestTransferCommandResume(t *testing.T) {
	remote := serverpath.New(serverpath.Unix, "/pub")
	rest, xfer := TransferCommand(Capabilities{RestStream: true}, engine.Download, true, 100, remote, "file.bin")
	assert.Equal(t, "REST 100", rest)
	assert.Equal(t, "RETR /pub/file.bin", xfer)
}

func TestParseMultilineReplyDropsCodeLines(t *testing.T) {
	raw := "211-Features:\r\n UTF8\r\n MDTM\r\n211 End\r\n"
	lines := ParseMultilineReply(raw)
	assert.Equal(t, []string{" UTF8", " MDTM"}, lines)
}
