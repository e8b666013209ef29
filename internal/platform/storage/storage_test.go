package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/platform/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "nested", "reports.db") + "?_busy_timeout=5000",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func sampleReport(camera string) *report.Report {
	return &report.Report{
		Diagnose:              true,
		Confidence:            0.82,
		CameraType:            camera,
		Age:                   45,
		Gender:                "Male",
		DiabetesHistory:       "No",
		FamilyDiabetesHistory: "Unknown",
		Weight:                70,
		Height:                175,
		StepHistory:           []byte(`["form","capture","review"]`),
		RetakeCount:           2,
	}
}

func TestReportRepository_Lifecycle(t *testing.T) {
	repo := NewReportRepository(openTestDB(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, sampleReport("Topcon NW400"))
	require.NoError(t, err)
	require.NotZero(t, id)

	// pending reports are invisible
	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Complete(ctx, id, "fundus_images/report_1.jpg", time.Now()))
	got, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, report.StatusComplete, got.Status)
	assert.Equal(t, "Topcon NW400", got.CameraType)
	assert.Equal(t, "fundus_images/report_1.jpg", got.ImageKey)
	assert.Equal(t, 2, got.RetakeCount)
	assert.JSONEq(t, `["form","capture","review"]`, string(got.StepHistory))
	assert.NotNil(t, got.CompletedAt)

	err = repo.Complete(ctx, id, "again", time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
}

func TestReportRepository_Discard(t *testing.T) {
	db := openTestDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, sampleReport("Canon CX-1"))
	require.NoError(t, err)
	require.NoError(t, repo.Discard(ctx, id))

	var count int64
	require.NoError(t, db.Model(&ScreeningReport{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReportRepository_ConcurrentCreateYieldsDistinctIDs(t *testing.T) {
	repo := NewReportRepository(openTestDB(t))
	const n = 25

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uint]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.Create(context.Background(), sampleReport("Optos Daytona Plus"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, n)
}

func TestReportRepository_ListPaging(t *testing.T) {
	repo := NewReportRepository(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := repo.Create(ctx, sampleReport("Other camera"))
		require.NoError(t, err)
		if i < 4 {
			require.NoError(t, repo.Complete(ctx, id, "k", time.Now()))
		}
	}

	page, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)

	page, _, err = repo.List(ctx, 500, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	all, err := repo.ListAll(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReportRepository_SweepPending(t *testing.T) {
	repo := NewReportRepository(openTestDB(t))
	ctx := context.Background()

	stale := sampleReport("Canon CX-1")
	stale.CreatedAt = time.Now().Add(-time.Hour)
	_, err := repo.Create(ctx, stale)
	require.NoError(t, err)

	_, err = repo.Create(ctx, sampleReport("Canon CX-1"))
	require.NoError(t, err)

	done, err := repo.Create(ctx, stale)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, done, "k", time.Now()))

	swept, err := repo.SweepPending(ctx, time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMigrationManager_HistoryAndRollback(t *testing.T) {
	db := openTestDB(t)

	// running twice is a no-op
	require.NoError(t, Migrate(db))

	manager := NewMigrationManager(db)
	history, err := manager.GetMigrationHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Error(t, manager.RollbackMigration("002_status_index"), "unregistered migrations cannot be rolled back")
}

type orderedMigration struct {
	version string
	applied *[]string
}

func (m orderedMigration) Version() string     { return m.version }
func (m orderedMigration) Description() string { return "test " + m.version }

func (m orderedMigration) Up(*gorm.DB) error {
	*m.applied = append(*m.applied, m.version)
	return nil
}

func (m orderedMigration) Down(*gorm.DB) error { return nil }

func TestMigrationManager_AppliesInVersionOrder(t *testing.T) {
	db := openTestDB(t)

	var applied []string
	manager := NewMigrationManager(db)
	manager.AddMigration(orderedMigration{version: "900_b", applied: &applied})
	manager.AddMigration(orderedMigration{version: "100_a", applied: &applied})
	manager.AddMigration(orderedMigration{version: "001_screening_reports", applied: &applied})

	require.NoError(t, manager.RunMigrations())
	assert.Equal(t, []string{"100_a", "900_b"}, applied, "already applied versions are skipped")
	assert.True(t, db.Migrator().HasTable("schema_migrations"))

	require.NoError(t, manager.RollbackMigration("100_a"))
	history, err := manager.GetMigrationHistory()
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle-db"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}
