package ftp

import (
	"fmt"
	"strings"

	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/serverpath"
)

// ListCommand renders the wire command for a directory listing,
// preferring MLSD when the server advertised it (spec.md section 4.4),
// falling back to LIST otherwise.
func ListCommand(caps Capabilities, path serverpath.Path) string {
	if caps.MLSD {
		return "MLSD " + path.String()
	}
	return "LIST " + path.String()
}

// CWDCommand renders a change-directory command.
func CWDCommand(path serverpath.Path) string {
	return "CWD " + path.String()
}

// MkdirCommand renders a directory-creation command. spec.md section
// 4 requires parent directories to exist; Session.Mkdir walks up and
// creates them one at a time before issuing the final MKD for the leaf.
func MkdirCommand(path serverpath.Path) string {
	return "MKD " + path.String()
}

// DeleteCommand renders a file deletion command for one file in dir.
func DeleteCommand(dir serverpath.Path, name string) string {
	return "DELE " + dir.AddSegment(name).String()
}

// RmdirCommand renders a directory removal command.
func RmdirCommand(path serverpath.Path) string {
	return "RMD " + path.String()
}

// RenameCommands renders the RNFR/RNTO pair for a rename/move.
func RenameCommands(from, to serverpath.Path) (string, string) {
	return "RNFR " + from.String(), "RNTO " + to.String()
}

// ChmodCommand renders a SITE CHMOD command, the de facto standard for
// permission changes across FTP server implementations.
func ChmodCommand(dir serverpath.Path, name, permission string) string {
	return fmt.Sprintf("SITE CHMOD %s %s", permission, dir.AddSegment(name).String())
}

// TransferCommand renders RETR/STOR/APPE for a file transfer, applying
// REST when resuming and the server advertises REST STREAM.
func TransferCommand(caps Capabilities, direction engine.TransferDirection, resume bool, restOffset int64, remote serverpath.Path, name string) (restCmd string, xferCmd string) {
	target := remote.AddSegment(name).String()
	if resume && caps.RestStream && restOffset > 0 {
		restCmd = fmt.Sprintf("REST %d", restOffset)
	}
	switch direction {
	case engine.Upload:
		if resume && restCmd != "" {
			xferCmd = "APPE " + target
		} else {
			xferCmd = "STOR " + target
		}
	default:
		xferCmd = "RETR " + target
	}
	return restCmd, xferCmd
}

// ParseMultilineReply splits a multiline FTP reply ("123-Features:\r\n
// UTF8\r\n123 End\r\n") into its body lines, dropping the opening and
// closing code lines, for FEAT-style responses.
func ParseMultilineReply(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		if _, ok := ParseReplyCode(line); ok {
			continue // opening "NNN-..." or closing "NNN ..." code line
		}
		out = append(out, line)
	}
	return out
}

// RawCommand passes a user-supplied command through unmodified, per
// spec.md section 4.1's CmdRaw.
func RawCommand(cmd string) string { return cmd }
