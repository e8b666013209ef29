package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"aeye-server-go/internal/app/services"
	"aeye-server-go/internal/domain/diagnosis"
	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/domain/image"
	"aeye-server-go/internal/domain/oracle"
	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/domain/telemetry"
	"aeye-server-go/internal/jobs"
	"aeye-server-go/internal/platform/artifacts"
	platformconfig "aeye-server-go/internal/platform/config"
	platformerrors "aeye-server-go/internal/platform/errors"
	platformlogging "aeye-server-go/internal/platform/logging"
	platformobservability "aeye-server-go/internal/platform/observability"
	platformstorage "aeye-server-go/internal/platform/storage"
	"aeye-server-go/internal/platform/stream"
	httptransport "aeye-server-go/internal/transport/http"
	httpreports "aeye-server-go/internal/transport/http/reports"
	"aeye-server-go/internal/transport/ws"
	"aeye-server-go/internal/utils"
)

const shutdownTimeout = 15 * time.Second

// Options tune Run. A non-nil Config skips loading from disk.
type Options struct {
	ConfigPath string
	Config     *platformconfig.Config
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type closer struct {
	name string
	fn   func() error
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc

	db        *gorm.DB
	reports   *platformstorage.ReportRepository
	artifacts report.ArtifactStore
	bus       *eventbus.AsyncEventBus
	emitter   *telemetry.Emitter
	diagnoser oracle.DiagnosisOracle
	quality   oracle.ImageQualityOracle
	redis     *redis.Client
	gate      *image.Gate
	pipeline  services.Dependencies

	// 逆序关闭
	closers []closer
}

func (s *appState) onClose(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func (s *appState) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(); err != nil && s.logger != nil {
			s.logger.WarnTag("Boot", "%s 未正常关闭: %v", c.name, err)
		}
	}
	s.closers = nil
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}
	defer state.close()

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}

	logger.InfoTag("Boot", "服务已成功启动")
	return waitForShutdown(signalCtx, groupCtx, cancel, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Boot", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("Boot", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("Boot", "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open report database and migrate",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "storage:init-artifacts",
			Title:     "Open artifact store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initArtifactsStep,
		},
		{
			ID:        "eventbus:start",
			Title:     "Start async event bus",
			DependsOn: []string{"logging:init-provider"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "telemetry:init-emitter",
			Title:     "Initialise telemetry emitter",
			DependsOn: []string{"eventbus:start"},
			Kind:      platformerrors.KindTelemetry,
			Execute:   initTelemetryStep,
		},
		{
			ID:        "oracle:init",
			Title:     "Initialise diagnosis and quality oracles",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindOracle,
			Execute:   initOracleStep,
		},
		{
			ID:        "stream:init-redis",
			Title:     "Connect report stream",
			DependsOn: []string{"eventbus:start"},
			Kind:      platformerrors.KindStorage,
			Execute:   initStreamStep,
		},
		{
			ID:    "pipeline:assemble",
			Title: "Assemble screening pipeline",
			DependsOn: []string{
				"storage:init-database",
				"storage:init-artifacts",
				"telemetry:init-emitter",
				"oracle:init",
			},
			Execute: assemblePipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	if state.opts.Config != nil {
		state.config = state.opts.Config
		state.configPath = "provided"
		return nil
	}

	result, err := platformconfig.NewLoader().WithPath(state.opts.ConfigPath).Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logProvider, err := platformlogging.New(state.config.Log)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger
	state.onClose("logger", logProvider.Close)

	state.logger.InfoTag("Boot", "日志模块就绪 [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	state.onClose("observability", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(shutdownCtx)
	})
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database)
	if err != nil {
		return err
	}
	state.onClose("database", func() error { return platformstorage.Close(db) })

	if err := platformstorage.Migrate(db); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:migrate", "failed to migrate report schema", err)
	}
	state.db = db
	state.reports = platformstorage.NewReportRepository(db)
	state.logger.InfoTag("Storage", "报告数据库就绪 driver=%s", state.config.Database.Driver)
	return nil
}

func initArtifactsStep(ctx context.Context, state *appState) error {
	store, err := artifacts.New(ctx, state.config.Artifacts)
	if err != nil {
		return err
	}
	state.artifacts = store
	state.logger.InfoTag("Storage", "图像存储就绪 driver=%s", state.config.Artifacts.Driver)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	cfg := state.config.Telemetry
	bus := eventbus.NewAsyncEventBus(cfg.Workers, cfg.QueueSize, state.logger)
	bus.Start()
	state.bus = bus
	state.onClose("eventbus", func() error {
		bus.Stop()
		return nil
	})
	return nil
}

func initTelemetryStep(_ context.Context, state *appState) error {
	cfg := state.config.Telemetry

	var sink telemetry.Sink = telemetry.LogSink{Logger: state.logger}
	if cfg.Enabled {
		creds, err := platformconfig.LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return err
		}
		sink = telemetry.NewHTTPSink(cfg.Endpoint, creds, cfg.Timeout)
		state.logger.InfoTag("Telemetry", "指标上报已开启 endpoint=%s", cfg.Endpoint)
	} else {
		state.logger.InfoTag("Telemetry", "指标上报未开启，仅写入调试日志")
	}

	emitter, err := telemetry.NewEmitter(state.bus, sink, cfg.Source, cfg.Timeout, state.logger)
	if err != nil {
		return err
	}
	state.emitter = emitter
	// registered after the bus so it runs first: stop accepting, then drain
	state.onClose("telemetry", emitter.Close)
	return nil
}

func initOracleStep(_ context.Context, state *appState) error {
	diagnoser, quality, err := oracle.New(state.config.Oracle, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindOracle, "oracle:init", "failed to create oracles", err)
	}
	state.diagnoser = diagnoser
	state.quality = quality
	return nil
}

func initStreamStep(ctx context.Context, state *appState) error {
	cfg := state.config.Redis
	if !cfg.Enabled {
		return nil
	}

	client, err := stream.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	state.redis = client
	state.onClose("redis", client.Close)

	if err := stream.NewReportPublisher(client, cfg.Stream, state.logger).Attach(state.bus); err != nil {
		return err
	}
	// queued report events still need the client
	bus := state.bus
	state.onClose("eventbus-drain", func() error {
		bus.Stop()
		return nil
	})
	state.logger.InfoTag("Storage", "报告完成事件将写入 Redis stream %s", cfg.Stream)
	return nil
}

func assemblePipelineStep(_ context.Context, state *appState) error {
	gate, err := image.NewGate(image.Options{
		Quality:     state.quality,
		Recorder:    state.emitter,
		MaxFileSize: state.config.Image.MaxFileSize,
		Logger:      state.logger,
	})
	if err != nil {
		return err
	}

	state.gate = gate
	state.pipeline = services.Dependencies{
		Gate:              gate,
		Diagnoser:         diagnosis.NewInvoker(state.diagnoser, state.logger),
		Assembler:         report.NewAssembler(state.reports, state.artifacts, state.bus, state.logger),
		Recorder:          state.emitter,
		SimulatedDelayMax: state.config.Pipeline.SimulatedDelayMax,
		Logger:            state.logger,
	}
	return nil
}

// buildServer wires the websocket transport and the gin engine on one listener.
func buildServer(state *appState) (*ws.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	engine := httpRouter.Engine

	indexPath := filepath.Join(config.Web.StaticDir, "index.html")
	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "api Not found", gin.H{})
			return
		}
		if _, err := os.Stat(indexPath); err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(indexPath)
	})

	hub := ws.NewHub(logger)

	httptransport.NewHealthHandler(httptransport.HealthSources{
		Sessions:  hub,
		Telemetry: state.emitter,
		Images:    state.gate,
		Bus:       state.bus,
	}).RegisterRoutes(httpRouter)

	reportService, err := httpreports.NewService(state.reports, state.artifacts, logger)
	if err != nil {
		return nil, err
	}
	reportService.Register(httpRouter.API)

	router := ws.NewRouter(hub, logger, ws.RouterOptions{
		HandshakeTimeout: config.Server.HandshakeTimeout,
		ReadLimit:        wsReadLimit(config.Image.MaxFileSize),
	})

	server := ws.NewServer(ws.ServerConfig{
		Addr:             net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port)),
		Path:             config.Web.WebsocketPath,
		HandshakeTimeout: config.Server.HandshakeTimeout,
	}, router, hub, engine, logger)
	server.SetHandlerBuilder(services.NewSessionBuilder(state.pipeline, config.Pipeline.QueueSize))
	return server, nil
}

// wsReadLimit leaves room for base64 expansion and the form fields.
func wsReadLimit(maxImage int64) int64 {
	limit := maxImage/3*4 + 1<<20
	if limit < ws.DefaultReadLimit {
		return ws.DefaultReadLimit
	}
	return limit
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	logger := state.logger

	server, err := buildServer(state)
	if err != nil {
		return fmt.Errorf("启动传输服务失败: %w", err)
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "服务地址 http://%s:%d", state.config.Server.IP, state.config.Server.Port)
		logger.InfoTag("WebSocket", "筛查入口 ws://%s:%d%s", state.config.Server.IP, state.config.Server.Port, state.config.Web.WebsocketPath)

		if err := server.Start(groupCtx); err != nil {
			logger.ErrorTag("HTTP", "服务运行失败: %v", err)
			return err
		}
		logger.InfoTag("HTTP", "服务已优雅关闭")
		return nil
	})

	scheduler := jobs.NewScheduler(state.reports, state.config.Jobs.SweepSchedule, state.config.Jobs.PendingTTL, logger)
	if err := scheduler.Start(); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "jobs:start", "failed to schedule pending sweep", err)
	}
	g.Go(func() error {
		<-groupCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
		return nil
	})

	return nil
}

func waitForShutdown(
	signalCtx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
) error {
	select {
	case <-signalCtx.Done():
		logger.InfoTag("Boot", "收到系统信号 %v，正在进行资源清理", context.Cause(signalCtx))
	case <-groupCtx.Done():
		logger.WarnTag("Boot", "服务提前退出，正在进行资源清理")
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Boot", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("Boot", "所有服务已成功关闭")
	case <-time.After(shutdownTimeout):
		logger.ErrorTag("Boot", "服务关闭超时，已强制退出")
		return errors.New("shutdown timed out")
	}
	return nil
}
