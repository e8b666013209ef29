package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aeye-server-go/internal/domain/image"
	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/domain/telemetry"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

// State is the position of a session in the request pipeline.
type State string

const (
	StateConnected       State = "connected"
	StateAwaitingRequest State = "awaiting_request"
	StateValidatingForm  State = "validating_form"
	StateValidatingImage State = "validating_image"
	StateDiagnosing      State = "diagnosing"
	StatePersisting      State = "persisting"
	StateCompleted       State = "completed"
	StateRejected        State = "rejected"
)

// Stage tags used by the pipeline_rejected metric.
const (
	stageForm        = "form"
	stageImage       = "image"
	stageDiagnosis   = "diagnosis"
	stagePersistence = "persistence"
)

type ImageGate interface {
	DecodeAndCheck(ctx context.Context, encoded, cameraType string) (*image.DecodedImage, error)
}

type Diagnoser interface {
	Diagnose(ctx context.Context, s *screening.Screening, image []byte) (screening.Outcome, error)
}

type ReportAssembler interface {
	Assemble(ctx context.Context, in report.AssembleInput) (*report.Report, error)
}

// Sender pushes one message to the client.
type Sender interface {
	Send(msg Message) error
}

// Dependencies are shared by every pipeline; each must be safe for concurrent use.
type Dependencies struct {
	Gate              ImageGate
	Diagnoser         Diagnoser
	Assembler         ReportAssembler
	Recorder          telemetry.Recorder
	SimulatedDelayMax time.Duration
	Logger            *utils.Logger
}

// Pipeline runs the requests of one connection, one at a time.
type Pipeline struct {
	deps      Dependencies
	send      Sender
	sessionID string

	mu    sync.RWMutex
	state State
}

func NewPipeline(deps Dependencies, send Sender, sessionID string) *Pipeline {
	return &Pipeline{
		deps:      deps,
		send:      send,
		sessionID: sessionID,
		state:     StateConnected,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	p.deps.Logger.DebugTag("Pipeline", "session %s: %s -> %s", p.sessionID, from, to)
}

// Greet announces the connection and starts waiting for requests.
func (p *Pipeline) Greet() error {
	if err := p.send.Send(Message{Message: MsgConnected}); err != nil {
		return err
	}
	p.transition(StateAwaitingRequest)
	return nil
}

// Handle runs one request through every stage and stops at the first failure.
// Stage failures are reported to the client and return nil. A non-nil error
// means the client can no longer be reached or ctx ended; the run is abandoned.
func (p *Pipeline) Handle(ctx context.Context, raw []byte) error {
	received := time.Now()

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		p.transition(StateValidatingForm)
		return p.reject(stageForm, MsgFormInvalid, "malformed request: "+err.Error())
	}

	// ValidatingForm
	p.transition(StateValidatingForm)
	if err := p.pause(ctx); err != nil {
		return err
	}
	s, err := screening.Validate(req.FormData)
	if err != nil {
		return p.reject(stageForm, MsgFormInvalid, errors.Reason(err))
	}
	if err := p.send.Send(Message{Message: MsgFormVerified}); err != nil {
		return err
	}

	// ValidatingImage
	p.transition(StateValidatingImage)
	if err := p.pause(ctx); err != nil {
		return err
	}
	img, err := p.deps.Gate.DecodeAndCheck(ctx, req.CapturedPhoto, s.ResolvedCameraType())
	if ctx.Err() != nil {
		return p.abandon(ctx)
	}
	if err != nil {
		return p.reject(stageImage, MsgImageInvalid, errors.Reason(err))
	}
	if err := p.send.Send(Message{Message: MsgImageVerified}); err != nil {
		return err
	}

	// Diagnosing
	p.transition(StateDiagnosing)
	outcome, err := p.deps.Diagnoser.Diagnose(ctx, s, img.Bytes)
	if ctx.Err() != nil {
		return p.abandon(ctx)
	}
	if err != nil {
		return p.reject(stageDiagnosis, MsgDiagnosisFailed, errors.Reason(err))
	}
	if err := p.send.Send(Message{Message: MsgDiagnosisDone}); err != nil {
		return err
	}

	// Persisting
	p.transition(StatePersisting)
	rep, err := p.deps.Assembler.Assemble(ctx, report.AssembleInput{
		Screening:   s,
		Outcome:     outcome,
		Image:       img.Bytes,
		ImageFormat: img.Format,
		StepHistory: req.StepHistory,
		RetakeCount: req.RetakeCount,
	})
	if ctx.Err() != nil {
		return p.abandon(ctx)
	}
	if err != nil {
		return p.reject(stagePersistence, MsgReportGenFailure, errors.Reason(err))
	}

	p.transition(StateCompleted)
	if err := p.send.Send(Message{
		Message: MsgReportGenerated,
		Data:    ReportData{Diagnose: rep.Diagnose, Confidence: rep.Confidence, ID: rep.ID},
	}); err != nil {
		return err
	}

	elapsed := time.Since(received)
	p.emit(telemetry.DiagnosisLatency(s, outcome.Result, elapsed))
	p.emit(telemetry.Confidence(s, outcome))
	p.deps.Logger.InfoTag("Pipeline", "session %s: report %d generated in %s", p.sessionID, rep.ID, elapsed.Round(time.Millisecond))

	p.transition(StateAwaitingRequest)
	return nil
}

func (p *Pipeline) reject(stage, message, reason string) error {
	p.transition(StateRejected)
	p.emit(telemetry.PipelineRejected(stage))
	p.deps.Logger.WarnTag("Pipeline", "session %s rejected at %s: %s", p.sessionID, stage, reason)

	if err := p.send.Send(Message{Message: message, ErrorMsg: reason}); err != nil {
		return err
	}
	p.transition(StateAwaitingRequest)
	return nil
}

func (p *Pipeline) abandon(ctx context.Context) error {
	p.deps.Logger.InfoTag("Pipeline", "session %s: run abandoned in %s", p.sessionID, p.State())
	return fmt.Errorf("pipeline abandoned: %w", context.Cause(ctx))
}

// pause models stage latency; it carries no meaning beyond that.
func (p *Pipeline) pause(ctx context.Context) error {
	if p.deps.SimulatedDelayMax <= 0 {
		if ctx.Err() != nil {
			return p.abandon(ctx)
		}
		return nil
	}
	if err := utils.SleepContext(ctx, utils.RandomDuration(0, p.deps.SimulatedDelayMax)); err != nil {
		return p.abandon(ctx)
	}
	return nil
}

func (p *Pipeline) emit(ev telemetry.Event) {
	if p.deps.Recorder != nil {
		p.deps.Recorder.Emit(ev)
	}
}
