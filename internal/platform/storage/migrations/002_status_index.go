package migrations

import (
	"gorm.io/gorm"
)

const statusCreatedIndex = "idx_screening_reports_status_created"

// Migration002StatusIndex speeds up the pending sweep and the completed-report listing.
type Migration002StatusIndex struct{}

func (m *Migration002StatusIndex) Version() string {
	return "002_status_index"
}

func (m *Migration002StatusIndex) Description() string {
	return "Index screening_reports by status and created_at"
}

func (m *Migration002StatusIndex) Up(db *gorm.DB) error {
	return db.Exec(`CREATE INDEX IF NOT EXISTS ` + statusCreatedIndex + ` ON screening_reports(status, created_at)`).Error
}

func (m *Migration002StatusIndex) Down(db *gorm.DB) error {
	return db.Migrator().DropIndex("screening_reports", statusCreatedIndex)
}
