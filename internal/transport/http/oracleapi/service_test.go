package oracleapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeye-server-go/internal/domain/oracle"
	"aeye-server-go/internal/domain/screening"
)

func newEngine(t *testing.T, probability, passRate float64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sim := oracle.NewSimulator(oracle.SimulatorOptions{
		ProbabilityDiabetes: probability,
		QualityPassRate:     passRate,
		Seed:                7,
	})
	svc, err := NewService(sim, sim, nil)
	require.NoError(t, err)

	engine := gin.New()
	svc.Register(engine)
	return engine
}

func post(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

var sampleImage = base64.StdEncoding.EncodeToString([]byte("fundus-bytes"))

func TestDiagnose(t *testing.T) {
	engine := newEngine(t, 1, 1)

	rec := post(t, engine, oracle.PathDiagnose, oracle.DiagnoseRequest{
		FormData:  &screening.Screening{CameraType: "Topcon NW400", Age: 45},
		ImageData: sampleImage,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oracle.DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.DiagnoseResult)
	assert.GreaterOrEqual(t, resp.Confidence, 0.5)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
}

func TestImageQuality(t *testing.T) {
	engine := newEngine(t, 0, 0)

	rec := post(t, engine, oracle.PathImageQuality, oracle.QualityRequest{ImageData: sampleImage})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oracle.QualityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.ImageQualityPassed)
}

func TestMissingImageDataIsBadRequest(t *testing.T) {
	engine := newEngine(t, 0.3, 0.9)

	for _, path := range []string{oracle.PathDiagnose, oracle.PathImageQuality} {
		rec := post(t, engine, path, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "No image data provided")
	}

	rec := post(t, engine, oracle.PathImageQuality, oracle.QualityRequest{ImageData: "%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// RemoteClient and the service agree on the wire format.
func TestRemoteClientAgainstService(t *testing.T) {
	srv := httptest.NewServer(newEngine(t, 1, 1))
	defer srv.Close()

	client, err := oracle.NewRemoteClient(srv.URL, 0)
	require.NoError(t, err)

	passed, err := client.CheckQuality(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.True(t, passed)

	outcome, err := client.Diagnose(context.Background(), &screening.Screening{CameraType: "Canon CX-1"}, []byte("img"))
	require.NoError(t, err)
	assert.True(t, outcome.Result)
}
