package main

import (
	"context"
	"fmt"
	"os"

	"github.com/code-payments/prereq-client/pkg/app"
	"github.com/code-payments/prereq-client/pkg/solana"
)

func main() {
	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	if err := newRootCmd(os.Stdout, defaultDeps()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", solana.KindOf(err), err)
		cancel()
		os.Exit(1)
	}
}
