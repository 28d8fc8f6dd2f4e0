// Command enginectl is the composition root that wires concrete
// ProtocolDriver implementations (protocol/ftp, protocol/http,
// protocol/sftp) into an engine.EngineContext and drives a single
// Engine through one command end to end, per spec.md section 9's note
// that engine itself never imports a protocol package — something has
// to. It mirrors rclone's cmd/ tree: a root cobra.Command with one
// subcommand per operation and flags bound via cobra's Flags().
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/transferengine/engine/config"
	"github.com/transferengine/engine/engine"
	"github.com/transferengine/engine/protocol/ftp"
	httpproto "github.com/transferengine/engine/protocol/http"
	"github.com/transferengine/engine/protocol/sftp"
	"github.com/transferengine/engine/serverpath"
)

// connFlags holds the server-connection flags every subcommand shares.
type connFlags struct {
	protocol string
	host     string
	port     int
	user     string
	password string
	keyfile  string
	pathType string
}

func (c *connFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.protocol, "protocol", "ftp", "ftp, ftpes, ftps, sftp, http or https")
	cmd.Flags().StringVar(&c.host, "host", "", "server host")
	cmd.Flags().IntVar(&c.port, "port", 0, "server port (defaults per protocol)")
	cmd.Flags().StringVar(&c.user, "user", "", "login user")
	cmd.Flags().StringVar(&c.password, "password", "", "login password")
	cmd.Flags().StringVar(&c.keyfile, "keyfile", "", "private key file (sftp)")
	cmd.Flags().StringVar(&c.pathType, "path-type", "unix", "unix, vms, mvs or dos")
}

func (c *connFlags) server() (engine.Server, error) {
	proto, err := parseProtocol(c.protocol)
	if err != nil {
		return engine.Server{}, err
	}
	port := c.port
	if port == 0 {
		port = defaultPort(proto)
	}
	return engine.Server{
		Name:     fmt.Sprintf("%s:%d", c.host, port),
		Protocol: proto,
		Host:     c.host,
		Port:     port,
		Logon:    engine.LogonNormal,
		User:     c.user,
		Password: c.password,
		KeyFile:  c.keyfile,
		PathType: parsePathType(c.pathType),
	}, nil
}

func parseProtocol(s string) (engine.Protocol, error) {
	switch s {
	case "ftp":
		return engine.ProtocolFTP, nil
	case "ftpes":
		return engine.ProtocolFTPES, nil
	case "ftps":
		return engine.ProtocolFTPS, nil
	case "sftp":
		return engine.ProtocolSFTP, nil
	case "http":
		return engine.ProtocolHTTP, nil
	case "https":
		return engine.ProtocolHTTPS, nil
	default:
		return 0, fmt.Errorf("unknown --protocol %q", s)
	}
}

func defaultPort(p engine.Protocol) int {
	switch p {
	case engine.ProtocolSFTP:
		return 22
	case engine.ProtocolHTTP:
		return 80
	case engine.ProtocolHTTPS:
		return 443
	case engine.ProtocolFTPS:
		return 990
	default:
		return 21
	}
}

func parsePathType(s string) serverpath.Type {
	switch s {
	case "vms":
		return serverpath.VMS
	case "mvs":
		return serverpath.MVS
	case "dos":
		return serverpath.DOS
	default:
		return serverpath.Unix
	}
}

// newEngineContext builds a shared context with every protocol driver
// this binary knows about registered, per spec.md section 9's design
// note on composition roots.
func newEngineContext() (*engine.EngineContext, error) {
	ctx, err := engine.NewEngineContext(config.Default())
	if err != nil {
		return nil, err
	}
	ctx.RegisterDriver(engine.ProtocolFTP, ftp.Driver{})
	ctx.RegisterDriver(engine.ProtocolFTPES, ftp.Driver{})
	ctx.RegisterDriver(engine.ProtocolFTPS, ftp.Driver{})
	ctx.RegisterDriver(engine.ProtocolHTTP, httpproto.Driver{})
	ctx.RegisterDriver(engine.ProtocolHTTPS, httpproto.Driver{})
	ctx.RegisterDriver(engine.ProtocolSFTP, sftp.Driver{})
	return ctx, nil
}

// runOne connects, executes cmd, and disconnects, draining and printing
// every notification the engine emits along the way, per spec.md
// section 2's asynchronous execute()/next_notification() contract.
func runOne(server engine.Server, cmd engine.Command) error {
	ctx, err := newEngineContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	e := engine.New(ctx, "enginectl")
	defer e.Close()
	e.Init(server)

	background := context.Background()
	if err := e.Execute(background, engine.Command{Kind: engine.CmdConnect, Server: &server}); err != nil {
		return err
	}
	if reply, ok := drain(background, e); !ok || !reply.Ok() {
		return fmt.Errorf("connect failed: %v", reply)
	}

	var opErr error
	if err := e.Execute(background, cmd); err != nil {
		opErr = err
	} else if reply, ok := drain(background, e); !ok || !reply.Ok() {
		opErr = fmt.Errorf("%s failed: %v", cmd.Kind, reply)
	}

	if err := e.Execute(background, engine.Command{Kind: engine.CmdDisconnect}); err == nil {
		drain(background, e)
	}
	return opErr
}

// drain reads notifications until the terminal NotifyOperation arrives,
// printing progress/status/listing notifications as they go.
func drain(ctx context.Context, e *engine.Engine) (engine.ReplyCode, bool) {
	for {
		n, ok := e.NextNotification(ctx)
		if !ok {
			return 0, false
		}
		switch n.Kind {
		case engine.NotifyStatusMessage:
			fmt.Fprintln(os.Stderr, "status:", n.Message)
		case engine.NotifyDirectoryListing:
			fmt.Fprintln(os.Stderr, "listing:", n.Path)
		case engine.NotifyTransferStatus:
			if n.TransferStat != nil {
				fmt.Fprintf(os.Stderr, "progress: %d/%d\n", n.TransferStat.BytesTransferred, n.TransferStat.TotalBytes)
			}
		case engine.NotifyAsyncRequest:
			if n.AsyncRequest != nil {
				fmt.Fprintln(os.Stderr, "prompt:", n.AsyncRequest.Prompt)
				_ = e.SetAsyncRequestReply(n.AsyncRequest.ID, "")
			}
		case engine.NotifyOperation:
			return n.Reply, true
		}
	}
}

func main() {
	var cf connFlags

	root := &cobra.Command{
		Use:   "enginectl",
		Short: "drive the transfer engine against one server for a single command",
	}

	listCmd := &cobra.Command{
		Use:   "list <path>",
		Short: "list a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:     engine.CmdList,
				ListPath: serverpath.New(parsePathType(cf.pathType), args[0]),
			})
		},
	}
	cf.bind(listCmd)

	var localPath string
	getCmd := &cobra.Command{
		Use:   "get <remote-dir> <remote-file>",
		Short: "download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:       engine.CmdTransfer,
				RemotePath: serverpath.New(parsePathType(cf.pathType), args[0]),
				RemoteFile: args[1],
				LocalPath:  localPath,
				Direction:  engine.Download,
			})
		},
	}
	cf.bind(getCmd)
	getCmd.Flags().StringVar(&localPath, "local", "", "local destination path")

	putCmd := &cobra.Command{
		Use:   "put <local-file> <remote-dir> <remote-file>",
		Short: "upload a file",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:       engine.CmdTransfer,
				RemotePath: serverpath.New(parsePathType(cf.pathType), args[1]),
				RemoteFile: args[2],
				LocalPath:  args[0],
				Direction:  engine.Upload,
			})
		},
	}
	cf.bind(putCmd)

	mkdirCmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:      engine.CmdMkdir,
				MkdirPath: serverpath.New(parsePathType(cf.pathType), args[0]),
			})
		},
	}
	cf.bind(mkdirCmd)

	rmCmd := &cobra.Command{
		Use:   "rm <dir> <file>",
		Short: "delete a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:        engine.CmdDelete,
				DeletePath:  serverpath.New(parsePathType(cf.pathType), args[0]),
				DeleteFiles: []string{args[1]},
			})
		},
	}
	cf.bind(rmCmd)

	rmdirCmd := &cobra.Command{
		Use:   "rmdir <path>",
		Short: "remove a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:      engine.CmdRmdir,
				RmdirPath: serverpath.New(parsePathType(cf.pathType), args[0]),
			})
		},
	}
	cf.bind(rmdirCmd)

	renameCmd := &cobra.Command{
		Use:   "rename <from-dir> <from-name> <to-dir> <to-name>",
		Short: "rename or move a remote file",
		Args:  cobra.ExactArgs(4),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			typ := parsePathType(cf.pathType)
			return runOne(server, engine.Command{
				Kind:     engine.CmdRename,
				FromPath: serverpath.New(typ, args[0]),
				FromName: args[1],
				ToPath:   serverpath.New(typ, args[2]),
				ToName:   args[3],
			})
		},
	}
	cf.bind(renameCmd)

	var chmodPerm string
	chmodCmd := &cobra.Command{
		Use:   "chmod <dir> <file>",
		Short: "change a remote file's permissions",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{
				Kind:            engine.CmdChmod,
				ChmodPath:       serverpath.New(parsePathType(cf.pathType), args[0]),
				ChmodFile:       args[1],
				ChmodPermission: chmodPerm,
			})
		},
	}
	cf.bind(chmodCmd)
	chmodCmd.Flags().StringVar(&chmodPerm, "mode", "644", "permission string (e.g. 644)")

	rawCmd := &cobra.Command{
		Use:   "raw <command>",
		Short: "send a raw protocol command",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			server, err := cf.server()
			if err != nil {
				return err
			}
			return runOne(server, engine.Command{Kind: engine.CmdRaw, RawCommand: args[0]})
		},
	}
	cf.bind(rawCmd)

	root.AddCommand(listCmd, getCmd, putCmd, mkdirCmd, rmCmd, rmdirCmd, renameCmd, chmodCmd, rawCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
