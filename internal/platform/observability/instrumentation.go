package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var counters sync.Map // map[string]*counter

type counter struct {
	mu    sync.Mutex
	value float64
}

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, _ := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "obs span end", attrs...)
	}
}

// RecordMetric accumulates an in-process counter keyed by name and the
// "component" label, and logs the datapoint at debug level.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	key := name
	if component := labels["component"]; component != "" {
		key = component + ":" + name
	}
	c, _ := counters.LoadOrStore(key, &counter{})
	c.(*counter).add(value)

	logger, _ := currentLogger()
	if logger == nil {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, labels[k]))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}

// Snapshot returns accumulated counters, optionally filtered by key prefix.
func Snapshot(prefix string) map[string]float64 {
	out := make(map[string]float64)
	counters.Range(func(key, value any) bool {
		name := key.(string)
		if strings.HasPrefix(name, prefix) {
			out[name] = value.(*counter).get()
		}
		return true
	})
	return out
}

func (c *counter) add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *counter) get() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
