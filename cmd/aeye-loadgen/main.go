// Command aeye-loadgen opens many screening sessions against a running server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"aeye-server-go/internal/loadgen"
)

func main() {
	url := pflag.String("url", "ws://localhost:8000/ws/process/", "websocket endpoint")
	connections := pflag.Int("connections", 2000, "total sessions to open")
	concurrency := pflag.Int("concurrency", 4, "sessions in flight at once")
	timeout := pflag.Duration("timeout", 60*time.Second, "per-session timeout")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := loadgen.Run(ctx, loadgen.Options{
		URL:         *url,
		Connections: *connections,
		Concurrency: *concurrency,
		Timeout:     *timeout,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "aeye-loadgen failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("sessions=%d completed=%d rejected=%d errors=%d elapsed=%s\n",
		summary.Total, summary.Completed, summary.Rejected, summary.Errors, time.Since(start).Round(time.Millisecond))
}
