package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/LoanIngest/cmd/ingest/root"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		// One short line on stderr, no usage dump.
		msg := strings.Join(strings.Fields(err.Error()), " ")
		if msg == "" {
			msg = "error"
		}
		_, _ = os.Stderr.WriteString(msg + "\n")
		os.Exit(1)
	}
}
