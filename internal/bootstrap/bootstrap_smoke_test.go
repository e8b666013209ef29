package bootstrap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeye-server-go/internal/app/services"
	platformerrors "aeye-server-go/internal/platform/errors"
	platformtesting "aeye-server-go/internal/platform/testing"
	"aeye-server-go/internal/utils"
)

func testState(t *testing.T) *appState {
	t.Helper()
	cfg := platformtesting.SetupTestConfig(t)
	cfg.Oracle.QualityPassRate = 1
	cfg.Oracle.ProbabilityDiabetes = 1
	cfg.Server.Port = 0

	state := &appState{opts: Options{Config: cfg}}
	t.Cleanup(state.close)
	return state
}

func TestInitGraphDependenciesAreOrdered(t *testing.T) {
	seen := map[string]bool{}
	for _, step := range InitGraph() {
		for _, dep := range step.DependsOn {
			assert.True(t, seen[dep], "%s depends on %s which runs later", step.ID, dep)
		}
		assert.NotNil(t, step.Execute, step.ID)
		seen[step.ID] = true
	}
}

func TestExecuteInitGraph(t *testing.T) {
	state := testState(t)
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))

	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.observabilityShutdown)
	assert.NotNil(t, state.reports)
	assert.NotNil(t, state.artifacts)
	assert.NotNil(t, state.emitter)
	assert.NotNil(t, state.diagnoser)
	assert.Nil(t, state.redis)
	assert.NotNil(t, state.pipeline.Gate)
	assert.Equal(t, "provided", state.configPath)
}

func TestExecuteInitSteps_UnsatisfiedDependency(t *testing.T) {
	steps := []initStep{{
		ID:        "b",
		DependsOn: []string{"a"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
}

func TestExecuteInitSteps_TelemetryWithoutCredentials(t *testing.T) {
	state := testState(t)
	state.opts.Config.Telemetry.Enabled = true
	state.opts.Config.Telemetry.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	err := executeInitSteps(context.Background(), InitGraph(), state)
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logCfg := &utils.LogCfg{
		LogLevel: "info",
		LogDir:   tmp,
		LogFile:  "graph.log",
	}
	logger, err := utils.NewLogger(logCfg)
	require.NoError(t, err)
	logBootstrapGraph(InitGraph(), logger)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(tmp, logCfg.LogFile))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "初始化依赖关系概览")
	for _, step := range InitGraph() {
		assert.Contains(t, content, step.ID)
	}
}

func TestWsReadLimit(t *testing.T) {
	assert.EqualValues(t, 16<<20, wsReadLimit(1024))
	assert.Greater(t, wsReadLimit(64<<20), int64(64<<20))
}

func TestServerHandlesScreeningAndServesReports(t *testing.T) {
	state := testState(t)
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))

	server, err := buildServer(state)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	defer server.Stop()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + state.config.Web.WebsocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	request := map[string]any{
		"formData": map[string]any{
			"cameraType":            "Optos Daytona Plus",
			"age":                   61,
			"gender":                "Female",
			"diabetesHistory":       "Yes",
			"familyDiabetesHistory": "No",
			"weight":                64.5,
			"height":                162,
		},
		"capturedPhoto": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not really a jpeg")),
	}
	require.NoError(t, conn.WriteJSON(request))

	var last services.Message
	for last.Message != services.MsgReportGenerated {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&last))
		require.Empty(t, last.ErrorMsg)
	}

	resp, err := http.Get(ts.URL + "/api/reports")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Total int64 `json:"total"`
			Items []struct {
				CameraType string `json:"camera_type"`
				Diagnose   bool   `json:"diagnose"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body.Data.Total)
	require.Len(t, body.Data.Items, 1)
	assert.Equal(t, "Optos Daytona Plus", body.Data.Items[0].CameraType)
	assert.True(t, body.Data.Items[0].Diagnose)

	health, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer health.Body.Close()
	var healthBody struct {
		Data struct {
			Image struct {
				TotalProcessed int64 `json:"total_processed"`
			} `json:"image"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&healthBody))
	assert.EqualValues(t, 1, healthBody.Data.Image.TotalProcessed)

	missing, err := http.Get(ts.URL + "/api/unknown")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := platformtesting.SetupTestConfig(t)
	cfg.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Config: cfg}) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
