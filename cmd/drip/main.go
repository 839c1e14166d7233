package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobmcallan/drip/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "drip: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
