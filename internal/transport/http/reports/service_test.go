package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/platform/artifacts"
)

type fakeReader struct {
	reports   []*report.Report
	lastLimit int
}

func (f *fakeReader) FindByID(_ context.Context, id uint) (*report.Report, error) {
	for _, r := range f.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReader) List(_ context.Context, limit, offset int) ([]*report.Report, int64, error) {
	f.lastLimit = limit
	if offset >= len(f.reports) {
		return nil, int64(len(f.reports)), nil
	}
	end := offset + limit
	if end > len(f.reports) {
		end = len(f.reports)
	}
	return f.reports[offset:end], int64(len(f.reports)), nil
}

func (f *fakeReader) ListAll(_ context.Context, _ int) ([]*report.Report, error) {
	return f.reports, nil
}

func setup(t *testing.T) (*gin.Engine, *fakeReader, *artifacts.FileStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reader := &fakeReader{}
	for i := 1; i <= 3; i++ {
		completed := now.Add(time.Duration(i) * time.Minute)
		reader.reports = append(reader.reports, &report.Report{
			ID:          uint(i),
			Diagnose:    i%2 == 0,
			Confidence:  0.75,
			CameraType:  "Canon CX-1",
			Age:         50 + i,
			Gender:      "Female",
			ImageKey:    report.ArtifactKey(uint(i), "png"),
			Status:      report.StatusComplete,
			CreatedAt:   now,
			CompletedAt: &completed,
		})
	}
	reader.reports[2].ImageKey = ""

	store, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), report.ArtifactKey(1, "png"), []byte("png-bytes"), "image/png"))

	svc, err := NewService(reader, store, nil)
	require.NoError(t, err)

	engine := gin.New()
	svc.Register(engine.Group("/api"))
	return engine, reader, store
}

func get(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestList(t *testing.T) {
	engine, reader, _ := setup(t)

	rec := get(engine, "/api/reports?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Items []report.Report `json:"items"`
			Total int64           `json:"total"`
			Limit int             `json:"limit"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 3, body.Data.Total)
	require.Len(t, body.Data.Items, 2)
	assert.EqualValues(t, 2, body.Data.Items[0].ID)

	get(engine, "/api/reports?limit=500")
	assert.Equal(t, maxLimit, reader.lastLimit)

	get(engine, "/api/reports")
	assert.Equal(t, defaultLimit, reader.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/reports?limit=abc").Code)
}

func TestGet(t *testing.T) {
	engine, _, _ := setup(t)

	rec := get(engine, "/api/reports/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"camera_type":"Canon CX-1"`)

	assert.Equal(t, http.StatusNotFound, get(engine, "/api/reports/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(engine, "/api/reports/zero").Code)
}

func TestImage(t *testing.T) {
	engine, _, _ := setup(t)

	rec := get(engine, "/api/reports/1/image")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	// artifact missing on disk
	assert.Equal(t, http.StatusNotFound, get(engine, "/api/reports/2/image").Code)
	// report without image key
	assert.Equal(t, http.StatusNotFound, get(engine, "/api/reports/3/image").Code)
}

func TestExport(t *testing.T) {
	engine, _, _ := setup(t)

	rec := get(engine, "/api/reports/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "screening_reports_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ExportHeader[0], rows[0][0])
	assert.Equal(t, "Canon CX-1", rows[1][3])
	assert.Equal(t, "true", rows[2][1])
}
