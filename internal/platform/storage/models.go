package storage

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"aeye-server-go/internal/domain/report"
)

// ScreeningReport 报告存储模型
type ScreeningReport struct {
	ID                    uint           `gorm:"primaryKey"`
	Diagnose              bool           `gorm:"not null"`
	Confidence            float64        `gorm:"not null"`
	CameraType            string         `gorm:"size:255;not null;index"`
	Age                   int            `gorm:"not null"`
	Gender                string         `gorm:"size:32;not null"`
	DiabetesHistory       string         `gorm:"size:16;not null"`
	FamilyDiabetesHistory string         `gorm:"size:16;not null"`
	Weight                float64        `gorm:"not null"`
	Height                float64        `gorm:"not null"`
	ImageKey              string         `gorm:"size:512"`
	StepHistory           datatypes.JSON // 前端步骤记录
	RetakeCount           int            `gorm:"not null;default:0"`
	Status                string         `gorm:"size:16;not null"`
	CreatedAt             time.Time      `gorm:"not null"`
	CompletedAt           *time.Time
}

// TableName 指定表名
func (ScreeningReport) TableName() string {
	return "screening_reports"
}

func toModel(r *report.Report) *ScreeningReport {
	m := &ScreeningReport{
		ID:                    r.ID,
		Diagnose:              r.Diagnose,
		Confidence:            r.Confidence,
		CameraType:            r.CameraType,
		Age:                   r.Age,
		Gender:                r.Gender,
		DiabetesHistory:       r.DiabetesHistory,
		FamilyDiabetesHistory: r.FamilyDiabetesHistory,
		Weight:                r.Weight,
		Height:                r.Height,
		ImageKey:              r.ImageKey,
		RetakeCount:           r.RetakeCount,
		Status:                string(r.Status),
		CreatedAt:             r.CreatedAt,
		CompletedAt:           r.CompletedAt,
	}
	if len(r.StepHistory) > 0 {
		m.StepHistory = datatypes.JSON(r.StepHistory)
	}
	return m
}

func fromModel(m *ScreeningReport) *report.Report {
	r := &report.Report{
		ID:                    m.ID,
		Diagnose:              m.Diagnose,
		Confidence:            m.Confidence,
		CameraType:            m.CameraType,
		Age:                   m.Age,
		Gender:                m.Gender,
		DiabetesHistory:       m.DiabetesHistory,
		FamilyDiabetesHistory: m.FamilyDiabetesHistory,
		Weight:                m.Weight,
		Height:                m.Height,
		ImageKey:              m.ImageKey,
		RetakeCount:           m.RetakeCount,
		Status:                report.Status(m.Status),
		CreatedAt:             m.CreatedAt,
		CompletedAt:           m.CompletedAt,
	}
	if len(m.StepHistory) > 0 {
		r.StepHistory = json.RawMessage(m.StepHistory)
	}
	return r
}
