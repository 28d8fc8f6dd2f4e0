package engine

import (
	"fmt"

	"github.com/transferengine/engine/serverpath"
)

// CommandKind identifies which operation a Command drives, matching the
// tagged variant in spec.md section 3.
type CommandKind int

const (
	CmdConnect CommandKind = iota
	CmdDisconnect
	CmdList
	CmdTransfer
	CmdRename
	CmdDelete
	CmdRmdir
	CmdMkdir
	CmdChmod
	CmdRaw
	CmdCancel
)

func (k CommandKind) String() string {
	switch k {
	case CmdConnect:
		return "connect"
	case CmdDisconnect:
		return "disconnect"
	case CmdList:
		return "list"
	case CmdTransfer:
		return "transfer"
	case CmdRename:
		return "rename"
	case CmdDelete:
		return "delete"
	case CmdRmdir:
		return "rmdir"
	case CmdMkdir:
		return "mkdir"
	case CmdChmod:
		return "chmod"
	case CmdRaw:
		return "raw"
	case CmdCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ListFlags are the flags accepted by the list command (spec.md section 6).
type ListFlags uint8

const (
	ListRefresh ListFlags = 1 << iota
	ListAvoid
	ListLink
	ListFallbackCurrent
)

// TransferDirection distinguishes upload from download.
type TransferDirection int

const (
	Download TransferDirection = iota
	Upload
)

// TransferSettings carries the per-transfer knobs named in spec.md 4.6.
type TransferSettings struct {
	ASCII  bool
	Resume bool
}

// Command is the tagged variant described in spec.md section 3. Only the
// fields relevant to Kind are populated; Validate enforces that.
type Command struct {
	Kind CommandKind

	// connect
	Server *Server

	// list
	ListPath      serverpath.Path
	ListSubdir    string
	ListFlags     ListFlags

	// transfer
	LocalPath        string
	RemotePath       serverpath.Path
	RemoteFile       string
	Direction        TransferDirection
	TransferSettings TransferSettings

	// rename
	FromPath serverpath.Path
	FromName string
	ToPath   serverpath.Path
	ToName   string

	// delete
	DeletePath  serverpath.Path
	DeleteFiles []string

	// rmdir
	RmdirPath   serverpath.Path
	RmdirSubdir string

	// mkdir
	MkdirPath serverpath.Path

	// chmod
	ChmodPath       serverpath.Path
	ChmodFile       string
	ChmodPermission string

	// raw
	RawCommand string
}

// Validate applies the syntactic preconditions from spec.md section 4.1
// that execute() must check before any wire activity. It does not check
// connection state (busy/connected); the Engine does that since it needs
// its own mutable state.
func (c *Command) Validate() error {
	switch c.Kind {
	case CmdConnect:
		if c.Server == nil {
			return fmt.Errorf("connect: server is required")
		}
	case CmdList:
		if c.ListFlags.Has(ListAvoid) && c.ListFlags.Has(ListRefresh) {
			return fmt.Errorf("list: AVOID and REFRESH are mutually exclusive")
		}
		if c.ListSubdir != "" && c.ListPath.Empty() {
			return fmt.Errorf("list: subdir given without path")
		}
		if c.ListFlags.Has(ListLink) && c.ListSubdir == "" {
			return fmt.Errorf("list: LINK requires a subdir")
		}
	case CmdTransfer:
		if c.RemotePath.Empty() {
			return fmt.Errorf("transfer: remote path is required")
		}
		if c.RemoteFile == "" {
			return fmt.Errorf("transfer: remote file is required")
		}
	case CmdDelete:
		if c.DeletePath.Empty() || len(c.DeleteFiles) == 0 {
			return fmt.Errorf("delete: path and at least one file are required")
		}
	case CmdRmdir:
		if c.RmdirPath.Empty() {
			return fmt.Errorf("rmdir: path is required")
		}
	case CmdMkdir:
		if c.MkdirPath.Empty() {
			return fmt.Errorf("mkdir: path is required")
		}
		if c.MkdirPath.Parent().Empty() && c.MkdirPath.String() != "/" {
			return fmt.Errorf("mkdir: path must have a parent")
		}
	case CmdRename:
		if c.FromName == "" || c.ToName == "" {
			return fmt.Errorf("rename: from and to names are both required")
		}
	case CmdChmod:
		if c.ChmodFile == "" || c.ChmodPermission == "" {
			return fmt.Errorf("chmod: file and permission are required")
		}
	case CmdRaw:
		if c.RawCommand == "" {
			return fmt.Errorf("raw: empty command")
		}
	case CmdDisconnect, CmdCancel:
		// always valid
	default:
		return fmt.Errorf("unknown command kind %v", c.Kind)
	}
	return nil
}

// (Flag helper mirrors ReplyCode.Has for readability at call sites.)
func (f ListFlags) Has(mask ListFlags) bool { return f&mask == mask }
