// Command sftp-helper is the child process the engine's protocol/sftp
// driver spawns to speak SSH/SFTP, per spec.md section 6's
// child-process architecture for this protocol. It is a thin wrapper
// around github.com/pkg/sftp and golang.org/x/crypto/ssh — the same
// libraries rclone's backend/sftp embeds in-process — split into a
// separate binary so the engine never links SSH code directly, and
// talks to its parent over stdin/stdout using the token line protocol
// in internal/lineproto.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/transferengine/engine/internal/lineproto"
)

func main() {
	root := &cobra.Command{
		Use:   "sftp-helper",
		Short: "SSH/SFTP child process driven by the transfer engine over stdin/stdout",
		RunE:  run,
	}
	root.Flags().String("host", "", "SFTP server host")
	root.Flags().Int("port", 22, "SFTP server port")
	root.Flags().String("user", "", "login user")
	root.Flags().String("keyfile", "", "private key file, if not using an agent")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	user, _ := cmd.Flags().GetString("user")
	keyfile, _ := cmd.Flags().GetString("keyfile")

	w := lineproto.NewWriter(os.Stdout)
	r := lineproto.NewReader(os.Stdin)

	session, err := newSession(sessionConfig{Host: host, Port: port, User: user, KeyFile: keyfile}, r, w)
	if err != nil {
		_ = w.Send(lineproto.TokenError, err.Error())
		return err
	}
	defer session.Close()

	return session.Serve(r, w)
}
