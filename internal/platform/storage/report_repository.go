package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/platform/errors"
)

const maxListLimit = 100

// ReportRepository 报告仓库实现
type ReportRepository struct {
	db *gorm.DB
}

var _ report.Store = (*ReportRepository)(nil)

// NewReportRepository 创建报告仓库实例
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a pending record; the database assigns the ID.
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) (uint, error) {
	model := toModel(rep)
	model.ID = 0
	model.Status = string(report.StatusPending)
	model.CompletedAt = nil
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, errors.Wrap(errors.KindStorage, "report.create", "failed to create report", err)
	}
	return model.ID, nil
}

// Complete flips a pending record to complete. Completing twice is an error.
func (r *ReportRepository) Complete(ctx context.Context, id uint, imageKey string, completedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&ScreeningReport{}).
		Where("id = ? AND status = ?", id, string(report.StatusPending)).
		Updates(map[string]interface{}{
			"status":       string(report.StatusComplete),
			"image_key":    imageKey,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return errors.Wrap(errors.KindStorage, "report.complete", "failed to complete report", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New(errors.KindStorage, "report.complete", fmt.Sprintf("report %d is not pending", id))
	}
	return nil
}

// Discard 删除报告记录
func (r *ReportRepository) Discard(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&ScreeningReport{}, id).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "report.discard", "failed to discard report", err)
	}
	return nil
}

// FindByID returns a completed report, or nil when none exists.
func (r *ReportRepository) FindByID(ctx context.Context, id uint) (*report.Report, error) {
	var model ScreeningReport
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, string(report.StatusComplete)).
		First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 报告不存在
		}
		return nil, errors.Wrap(errors.KindStorage, "report.find_by_id", "failed to find report", err)
	}
	return fromModel(&model), nil
}

// List pages completed reports newest first. limit is clamped to [1,100].
func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]*report.Report, int64, error) {
	return r.list(ctx, clamp(limit, 1, maxListLimit), max(offset, 0))
}

// ListAll returns up to limit completed reports for export.
func (r *ReportRepository) ListAll(ctx context.Context, limit int) ([]*report.Report, error) {
	reports, _, err := r.list(ctx, max(limit, 1), 0)
	return reports, err
}

func (r *ReportRepository) list(ctx context.Context, limit, offset int) ([]*report.Report, int64, error) {
	completed := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&ScreeningReport{}).Where("status = ?", string(report.StatusComplete))
	}

	var total int64
	if err := completed().Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "report.count", "failed to count reports", err)
	}

	var models []ScreeningReport
	if err := completed().Order("id DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "report.list", "failed to list reports", err)
	}

	reports := make([]*report.Report, len(models))
	for i := range models {
		reports[i] = fromModel(&models[i])
	}
	return reports, total, nil
}

// SweepPending deletes pending records created before cutoff, left behind by a crash mid-assembly.
func (r *ReportRepository) SweepPending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(report.StatusPending), cutoff).
		Delete(&ScreeningReport{})
	if res.Error != nil {
		return 0, errors.Wrap(errors.KindStorage, "report.sweep", "failed to sweep pending reports", res.Error)
	}
	return res.RowsAffected, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
