// Command querycache demonstrates and load-tests the query cache.
//
//	querycache demo
//	querycache bench --goroutines 200 --ops 5000
//	querycache --config querycache.yaml --metrics-addr :9102 bench
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/krisalay/query-cache/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.Err(err).Msg("querycache failed")
		os.Exit(1)
	}
}
