// Command tanuki runs AI pull request reviews from the terminal against the
// same store and integrations as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hongjs/code-tanuki/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var perr *service.PipelineError
		if errors.As(err, &perr) && perr.Steps != nil {
			renderSteps(os.Stderr, perr.Steps)
		}
		os.Exit(1)
	}
}
