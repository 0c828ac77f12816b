// Command pwspdctl is a minimal admin CLI for pwspd: it dials the control
// socket, frames one request from its flags, prints the decoded
// response, and exits. It is not the rich GUI or CLI front-end spec.md
// excludes — just enough surface for manual debugging and end-to-end
// tests.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"pwspd/internal/daemonhost"
	"pwspd/internal/wire"
)

func main() {
	sock := flag.String("sock", "", "path to daemon.sock (defaults to the daemon's runtime dir)")
	argsFlag := flag.String("args", "", "comma-separated key=value request arguments")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pwspdctl [-sock path] [-args k=v,k=v] <command>")
		os.Exit(2)
	}

	sockPath := *sock
	if sockPath == "" {
		sockPath = daemonhost.SockPath(daemonhost.RuntimeDir())
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer conn.Close()

	req := wire.Request{Name: flag.Arg(0), Args: parseArgs(*argsFlag)}
	if err := wire.WriteRequest(conn, req); err != nil {
		fmt.Fprintln(os.Stderr, "write request:", err)
		os.Exit(1)
	}

	resp, err := wire.ReadResponse(conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read response:", err)
		os.Exit(1)
	}

	fmt.Println(resp.Message)
	if !resp.Status {
		os.Exit(1)
	}
}

func parseArgs(raw string) map[string]string {
	args := make(map[string]string)
	if raw == "" {
		return args
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		args[k] = v
	}
	return args
}
