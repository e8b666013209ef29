// Command aeye-oracle serves the diagnosis and image-quality oracles over HTTP
// for servers running with oracle.mode=remote.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"aeye-server-go/internal/domain/oracle"
	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/platform/logging"
	"aeye-server-go/internal/transport/http/oracleapi"
)

func main() {
	addr := pflag.String("addr", ":8001", "listen address")
	probability := pflag.Float64("probability-diabetes", 0.3, "probability of a positive diagnosis")
	passRate := pflag.Float64("quality-pass-rate", 0.9, "probability that an image passes the quality check")
	minLatency := pflag.Duration("min-latency", 200*time.Millisecond, "minimum simulated latency")
	maxLatency := pflag.Duration("max-latency", 2*time.Second, "maximum simulated latency")
	logLevel := pflag.String("log-level", "info", "debug|info|warn|error")
	pflag.Parse()

	if err := run(*addr, oracle.SimulatorOptions{
		ProbabilityDiabetes: *probability,
		QualityPassRate:     *passRate,
		MinLatency:          *minLatency,
		MaxLatency:          *maxLatency,
	}, *logLevel); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "aeye-oracle failed: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, opts oracle.SimulatorOptions, level string) error {
	if opts.ProbabilityDiabetes < 0 || opts.ProbabilityDiabetes > 1 || opts.QualityPassRate < 0 || opts.QualityPassRate > 1 {
		return errors.New("probabilities must be within [0,1]")
	}

	logCfg := config.DefaultConfig().Log
	logCfg.Level = level
	logCfg.File = "aeye-oracle.log"
	provider, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer provider.Close()
	logger := provider.Legacy()

	sim := oracle.NewSimulator(opts)
	svc, err := oracleapi.NewService(sim, sim, logger)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	svc.Register(engine)

	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoTag("Oracle", "listening on %s (p=%.2f, pass=%.2f)", addr, opts.ProbabilityDiabetes, opts.QualityPassRate)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
