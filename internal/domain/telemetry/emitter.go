package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/utils"
)

// Recorder is what stages depend on to emit metrics.
type Recorder interface {
	Emit(ev Event)
}

// Stats counts emitter outcomes. Failed sends never leave the emitter.
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Emitter ships events through the async bus to a Sink. Emit never blocks on the sink.
type Emitter struct {
	bus     *eventbus.AsyncEventBus
	sink    Sink
	source  string
	timeout time.Duration
	logger  *utils.Logger

	closed  atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewEmitter(bus *eventbus.AsyncEventBus, sink Sink, source string, timeout time.Duration, logger *utils.Logger) (*Emitter, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	e := &Emitter{
		bus:     bus,
		sink:    sink,
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
	if err := bus.Subscribe(eventbus.TopicMetric, e.deliver); err != nil {
		return nil, err
	}
	return e, nil
}

// Emit queues ev; a full queue or a closed emitter drops it.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if e.closed.Load() || !e.bus.PublishAsync(eventbus.TopicMetric, ev) {
		e.dropped.Add(1)
	}
}

func (e *Emitter) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	line := FormatLine(ev, e.source)
	if err := e.sink.Send(ctx, line); err != nil {
		e.failed.Add(1)
		e.logger.WarnTag("Telemetry", "metric not delivered", map[string]interface{}{
			"metric": ev.Name,
			"error":  err.Error(),
		})
		return
	}
	e.sent.Add(1)
}

func (e *Emitter) Stats() Stats {
	return Stats{
		Sent:    e.sent.Load(),
		Failed:  e.failed.Load(),
		Dropped: e.dropped.Load(),
	}
}

// Close stops accepting events. Already queued events are flushed when the bus stops.
func (e *Emitter) Close() error {
	e.closed.Store(true)
	return nil
}
