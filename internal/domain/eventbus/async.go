package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"aeye-server-go/internal/utils"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 1000
)

// AsyncEventBus 异步事件总线: a fixed worker pool in front of synchronous
// EventBus instances. A full queue drops the event instead of blocking the publisher.
//
// evbus.Bus holds its lock while a handler runs, so each worker owns a bus
// with identical subscriptions and handlers on different workers run in parallel.
type AsyncEventBus struct {
	buses     []evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	logger    *utils.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	pending sync.WaitGroup

	published atomic.Int64
	handled   atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published int64 `json:"published"`
	Handled   int64 `json:"handled"`
	Dropped   int64 `json:"dropped"`
	Panicked  int64 `json:"panicked"`
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum, queueSize int, logger *utils.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	buses := make([]evbus.Bus, workerNum)
	for i := range buses {
		buses[i] = evbus.New()
	}

	return &AsyncEventBus{
		buses:     buses,
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, queueSize),
		logger:    logger,
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker(aeb.buses[i])
	}
}

// Stop refuses new events, lets the workers drain what is queued and waits for them.
func (aeb *AsyncEventBus) Stop() {
	aeb.mu.Lock()
	if aeb.closed {
		aeb.mu.Unlock()
		return
	}
	aeb.closed = true
	close(aeb.workChan)
	aeb.mu.Unlock()

	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker(bus evbus.Bus) {
	defer aeb.wg.Done()

	for event := range aeb.workChan {
		aeb.dispatch(bus, event)
	}
}

func (aeb *AsyncEventBus) dispatch(bus evbus.Bus, event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		// 处理panic，避免worker崩溃
		if r := recover(); r != nil {
			aeb.panicked.Add(1)
			aeb.logger.ErrorTag("Telemetry", "event handler panic", map[string]interface{}{
				"topic": event.topic,
				"panic": fmt.Sprint(r),
			})
		}
	}()

	bus.Publish(event.topic, event.args...)
	aeb.handled.Add(1)
}

// PublishAsync enqueues the event and reports whether it was accepted.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) bool {
	aeb.mu.RLock()
	defer aeb.mu.RUnlock()
	if aeb.closed {
		aeb.dropped.Add(1)
		return false
	}

	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
		aeb.published.Add(1)
		return true
	default:
		aeb.pending.Done()
		dropped := aeb.dropped.Add(1)
		// 队列满时丢弃事件, log every 100th drop only
		if dropped%100 == 1 {
			aeb.logger.WarnTag("Telemetry", "event queue full, dropping events", map[string]interface{}{
				"topic":   topic,
				"dropped": dropped,
			})
		}
		return false
	}
}

// Subscribe 订阅事件. fn must accept the arguments the topic is published with.
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	for _, bus := range aeb.buses {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}

// WaitAsync blocks until every accepted event has been handled (用于测试和关闭前冲刷).
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pending.Wait()
}

// Stats returns current counters.
func (aeb *AsyncEventBus) Stats() Stats {
	return Stats{
		Published: aeb.published.Load(),
		Handled:   aeb.handled.Load(),
		Dropped:   aeb.dropped.Load(),
		Panicked:  aeb.panicked.Load(),
	}
}
