package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"aeye-server-go/internal/bootstrap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml (default $AEYE_CONFIG or ./config.yaml)")
	pflag.Parse()

	fmt.Printf("[%s] [INFO] [Boot] starting aeye-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{ConfigPath: *configPath}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "aeye-server failed: %v\n", err)
		os.Exit(1)
	}
}
