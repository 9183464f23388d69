package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// embeddedConfig holds resources/application.yaml.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main is the entry point of the lockxfer command.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := NewRootCommand(embeddedConfig).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(exitCode(err))
	}
}
