package report

import (
	"context"
	"encoding/json"
	"time"

	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

const opAssemble = "report.assemble"

// AssembleInput is everything a successful run hands to the assembler.
type AssembleInput struct {
	Screening   *screening.Screening
	Outcome     screening.Outcome
	Image       []byte
	ImageFormat string
	StepHistory json.RawMessage
	RetakeCount int
}

// Assembler persists a report in the order: pending record, artifact, completion.
type Assembler struct {
	store     Store
	artifacts ArtifactStore
	publisher eventbus.Publisher
	logger    *utils.Logger
}

func NewAssembler(store Store, artifacts ArtifactStore, publisher eventbus.Publisher, logger *utils.Logger) *Assembler {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}
	return &Assembler{store: store, artifacts: artifacts, publisher: publisher, logger: logger}
}

// Assemble never leaves a completed record pointing at a missing artifact.
// Any failure after the record exists discards it, even when ctx is already cancelled.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*Report, error) {
	if in.Screening == nil {
		return nil, errors.New(errors.KindDomain, opAssemble, "screening is required")
	}

	r := &Report{
		Diagnose:              in.Outcome.Result,
		Confidence:            in.Outcome.Confidence,
		CameraType:            in.Screening.ResolvedCameraType(),
		Age:                   in.Screening.Age,
		Gender:                in.Screening.Gender,
		DiabetesHistory:       in.Screening.DiabetesHistory,
		FamilyDiabetesHistory: in.Screening.FamilyDiabetesHistory,
		Weight:                in.Screening.Weight,
		Height:                in.Screening.Height,
		StepHistory:           in.StepHistory,
		RetakeCount:           in.RetakeCount,
		Status:                StatusPending,
		CreatedAt:             time.Now(),
	}

	id, err := a.store.Create(ctx, r)
	if err != nil {
		return nil, storageFailure("failed to create report record", err)
	}
	r.ID = id

	key := ArtifactKey(id, in.ImageFormat)
	if err := a.artifacts.Put(ctx, key, in.Image, ContentType(in.ImageFormat)); err != nil {
		a.rollback(ctx, id, "")
		return nil, storageFailure("failed to store image artifact", err)
	}

	completedAt := time.Now()
	if err := a.store.Complete(ctx, id, key, completedAt); err != nil {
		a.rollback(ctx, id, key)
		return nil, storageFailure("failed to finalize report", err)
	}
	r.ImageKey = key
	r.Status = StatusComplete
	r.CompletedAt = &completedAt

	a.publisher.PublishAsync(eventbus.TopicReportCompleted, eventbus.ReportCompleted{
		ReportID:    r.ID,
		Diagnose:    r.Diagnose,
		Confidence:  r.Confidence,
		CameraType:  r.CameraType,
		CompletedAt: completedAt,
	})
	a.logger.InfoTag("Storage", "report %d stored (%s)", r.ID, key)
	return r, nil
}

func (a *Assembler) rollback(ctx context.Context, id uint, key string) {
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if key != "" {
		if err := a.artifacts.Delete(cleanup, key); err != nil {
			a.logger.WarnTag("Storage", "artifact cleanup failed for report %d: %v", id, err)
		}
	}
	if err := a.store.Discard(cleanup, id); err != nil {
		a.logger.ErrorTag("Storage", "discard of pending report %d failed: %v", id, err)
	}
}

func storageFailure(msg string, err error) error {
	return &errors.Error{Kind: errors.KindStorage, Op: opAssemble, Message: msg, Cause: err}
}
