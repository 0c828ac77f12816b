// Command pwspd is the soundpad daemon: it owns the PipeWire virtual
// microphone, the multi-track playback engine, and the Unix socket
// clients (a GUI, a CLI, pwspdctl) speak the control protocol over.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"pwspd/internal/daemonhost"
	"pwspd/internal/logging"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug-level logging")
	jsonLogs := flag.Bool("json-logs", false, "emit logs as JSON instead of text")
	flag.Parse()

	log := logging.Setup(*debug, *jsonLogs)

	host, err := daemonhost.Start(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	if err := host.Run(ctx); err != nil {
		log.Error("daemon exited with error", "err", err)
		os.Exit(1)
	}
}
