package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ardiex/cmd"
)

// Build information (set by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	buildVersion := fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit)
	if err := cmd.Execute(ctx, buildVersion); err != nil {
		fmt.Fprintln(os.Stderr, "ardiex:", err)
		os.Exit(1)
	}
}
