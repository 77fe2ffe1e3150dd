// Command survival runs the passenger survival pipeline: feature
// generation, cross-validated GBDT training and submission writing.
//
// Usage:
//
//	survival run --config configs/default.yaml
//	survival features --force
//	survival train
//	survival predict
//	survival synth --out data/input
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/survival/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.GetLoggerWithName("cli").Error("Command failed", err)
		os.Exit(1)
	}
}
