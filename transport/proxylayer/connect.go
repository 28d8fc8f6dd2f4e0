package proxylayer

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/proxy"
)

// connectHandshake issues an HTTP CONNECT request over conn and checks
// for a 2xx response, per the HTTP CONNECT proxy variant named in
// spec.md section 4.
func connectHandshake(conn net.Conn, addr string, auth *proxy.Auth) error {
	req, err := http.NewRequest(http.MethodConnect, "http://"+addr, nil)
	if err != nil {
		return err
	}
	req.Host = addr
	if auth != nil && auth.User != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(auth.User + ":" + auth.Password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}
	if err := req.Write(conn); err != nil {
		return err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxylayer: CONNECT to %s failed: %s", addr, resp.Status)
	}
	return nil
}
