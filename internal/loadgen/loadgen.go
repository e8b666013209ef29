// Package loadgen drives many concurrent screening sessions against a server.
package loadgen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"aeye-server-go/internal/domain/screening"
)

const fakeImageSize = 1024

// Options configure a load run.
type Options struct {
	URL         string
	Connections int
	Concurrency int
	Timeout     time.Duration
	// Seed makes generated requests reproducible when non-zero.
	Seed   uint64
	Dialer *websocket.Dialer
}

// Summary counts session outcomes.
type Summary struct {
	Total     int64
	Completed int64
	Rejected  int64
	Errors    int64
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRejected
)

// Run opens opts.Connections sessions, at most opts.Concurrency at a time. Each
// session sends one random request and waits for a terminal message. Session
// failures are counted, not returned; only a cancelled ctx fails the run.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.URL == "" {
		return Summary{}, errors.New("url is required")
	}
	if opts.Connections <= 0 {
		opts.Connections = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	gen := NewGenerator(opts.Seed)
	payloads := make([]map[string]any, opts.Connections)
	for i := range payloads {
		payloads[i] = gen.Request()
	}

	var completed, rejected, failed atomic.Int64
	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, payload := range payloads {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			sessionCtx, cancel := context.WithTimeout(gctx, opts.Timeout)
			defer cancel()

			result, err := runSession(sessionCtx, dialer, opts.URL, payload)
			switch {
			case err != nil:
				failed.Add(1)
			case result == outcomeCompleted:
				completed.Add(1)
			default:
				rejected.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Total:     int64(len(payloads)),
		Completed: completed.Load(),
		Rejected:  rejected.Load(),
		Errors:    failed.Load(),
	}
	return summary, ctx.Err()
}

func runSession(ctx context.Context, dialer *websocket.Dialer, url string, payload map[string]any) (outcome, error) {
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	// unblock the read when ctx is cancelled before the deadline
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(payload); err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read: %w", err)
		}
		text := string(raw)
		switch {
		case strings.Contains(text, "Report generated"):
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return outcomeCompleted, nil
		case strings.Contains(text, "Invalid"), strings.Contains(text, "failed"):
			return outcomeRejected, nil
		}
	}
}

// Generator produces random but valid screening requests.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

func (g *Generator) between(lo, hi float64) float64 {
	return math.Round((lo+g.rng.Float64()*(hi-lo))*10) / 10
}

// Form returns a form that passes validation.
func (g *Generator) Form() screening.Form {
	form := screening.Form{
		screening.FieldCameraType:            g.pick(screening.CameraTypes),
		screening.FieldAge:                   g.rng.IntN(101),
		screening.FieldGender:                g.pick(screening.Genders),
		screening.FieldDiabetesHistory:       g.pick(screening.HistoryValues),
		screening.FieldFamilyDiabetesHistory: g.pick(screening.HistoryValues),
		screening.FieldWeight:                g.between(30, 150),
		screening.FieldHeight:                g.between(100, 200),
		screening.FieldCustomCameraType:      "",
	}
	if form[screening.FieldCameraType] == screening.CameraOther {
		form[screening.FieldCustomCameraType] = fmt.Sprintf("CustomCamera%d", g.rng.IntN(3)+1)
	}
	return form
}

// Photo returns random bytes wrapped as a JPEG data URI.
func (g *Generator) Photo() string {
	buf := make([]byte, fakeImageSize)
	for i := range buf {
		buf[i] = byte(g.rng.UintN(256))
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf)
}

// Request returns a full inbound message.
func (g *Generator) Request() map[string]any {
	return map[string]any{
		"formData":      g.Form(),
		"capturedPhoto": g.Photo(),
	}
}
