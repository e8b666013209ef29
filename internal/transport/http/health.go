package httptransport

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/domain/image"
	"aeye-server-go/internal/domain/telemetry"
	"aeye-server-go/internal/platform/observability"
)

// SessionCounter reports the number of live websocket sessions.
type SessionCounter interface {
	Active() int
}

// TelemetryStats reports emitter counters.
type TelemetryStats interface {
	Stats() telemetry.Stats
}

// ImageStats reports image gate counters.
type ImageStats interface {
	Metrics() image.Metrics
}

// BusStats reports async event bus counters.
type BusStats interface {
	Stats() eventbus.Stats
}

// HealthSources lists what /api/health reads. Any field may be nil.
type HealthSources struct {
	Sessions  SessionCounter
	Telemetry TelemetryStats
	Images    ImageStats
	Bus       BusStats
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	sources HealthSources
	started time.Time
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(sources HealthSources) *HealthHandler {
	return &HealthHandler{
		sources: sources,
		started: time.Now(),
	}
}

// RegisterRoutes 注册健康检查路由
func (h *HealthHandler) RegisterRoutes(router *Router) {
	router.API.GET("/health", h.Health)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status         string             `json:"status"`
	Uptime         string             `json:"uptime"`
	ActiveSessions int                `json:"active_sessions"`
	Telemetry      telemetry.Stats    `json:"telemetry"`
	Image          image.Metrics      `json:"image"`
	EventBus       eventbus.Stats     `json:"event_bus"`
	Host           HostStats          `json:"host"`
	Counters       map[string]float64 `json:"counters,omitempty"`
}

// HostStats 主机资源使用情况
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
}

// Health 返回服务状态
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
		Host:   hostStats(c.Request.Context()),
	}
	if observability.Enabled() {
		resp.Counters = observability.Snapshot("")
	}
	src := h.sources
	if src.Sessions != nil {
		resp.ActiveSessions = src.Sessions.Active()
	}
	if src.Telemetry != nil {
		resp.Telemetry = src.Telemetry.Stats()
	}
	if src.Images != nil {
		resp.Image = src.Images.Metrics()
	}
	if src.Bus != nil {
		resp.EventBus = src.Bus.Stats()
	}
	RespondSuccess(c, http.StatusOK, resp, "")
}

// hostStats is best effort; fields stay zero where gopsutil cannot read them.
func hostStats(ctx context.Context) HostStats {
	stats := HostStats{Goroutines: runtime.NumGoroutine()}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	return stats
}
