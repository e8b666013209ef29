package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// screeningReportV1 is the schema snapshot this migration creates.
type screeningReportV1 struct {
	ID                    uint    `gorm:"primaryKey"`
	Diagnose              bool    `gorm:"not null"`
	Confidence            float64 `gorm:"not null"`
	CameraType            string  `gorm:"size:255;not null;index"`
	Age                   int     `gorm:"not null"`
	Gender                string  `gorm:"size:32;not null"`
	DiabetesHistory       string  `gorm:"size:16;not null"`
	FamilyDiabetesHistory string  `gorm:"size:16;not null"`
	Weight                float64 `gorm:"not null"`
	Height                float64 `gorm:"not null"`
	ImageKey              string  `gorm:"size:512"`
	StepHistory           datatypes.JSON
	RetakeCount           int       `gorm:"not null;default:0"`
	Status                string    `gorm:"size:16;not null"`
	CreatedAt             time.Time `gorm:"not null"`
	CompletedAt           *time.Time
}

func (screeningReportV1) TableName() string { return "screening_reports" }

// Migration001ScreeningReports 创建报告表
type Migration001ScreeningReports struct{}

func (m *Migration001ScreeningReports) Version() string {
	return "001_screening_reports"
}

func (m *Migration001ScreeningReports) Description() string {
	return "Create screening_reports table"
}

// Up uses the migrator rather than raw SQL so the same migration runs on sqlite, postgres and mysql.
func (m *Migration001ScreeningReports) Up(db *gorm.DB) error {
	if db.Migrator().HasTable(&screeningReportV1{}) {
		return nil
	}
	return db.Migrator().CreateTable(&screeningReportV1{})
}

func (m *Migration001ScreeningReports) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&screeningReportV1{})
}
