package report

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeye-server-go/internal/domain/eventbus"
	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/platform/errors"
)

type memStore struct {
	mu          sync.Mutex
	next        uint
	records     map[uint]*Report
	completeErr error
	discarded   []uint
}

func newMemStore() *memStore {
	return &memStore{records: map[uint]*Report{}}
}

func (m *memStore) Create(_ context.Context, r *Report) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	cp := *r
	cp.ID = m.next
	m.records[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memStore) Complete(_ context.Context, id uint, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	r := m.records[id]
	r.ImageKey = key
	r.Status = StatusComplete
	r.CompletedAt = &at
	return nil
}

func (m *memStore) Discard(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	m.discarded = append(m.discarded, id)
	return nil
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	ctxErrs []error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: map[string][]byte{}}
}

func (m *memArtifacts) Put(ctx context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key], nil
}

func (m *memArtifacts) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	delete(m.objects, key)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	args   []interface{}
}

func (c *capturePublisher) PublishAsync(topic string, args ...interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.args = append(c.args, args...)
	return true
}

func sampleInput(camera, custom string) AssembleInput {
	return AssembleInput{
		Screening: &screening.Screening{
			CameraType:            camera,
			CustomCameraType:      custom,
			Age:                   45,
			Gender:                "Male",
			DiabetesHistory:       "No",
			FamilyDiabetesHistory: "Unknown",
			Weight:                70,
			Height:                175,
		},
		Outcome:     screening.Outcome{Result: true, Confidence: 0.82},
		Image:       []byte{0xFF, 0xD8, 0x01},
		ImageFormat: "jpg",
		StepHistory: []byte(`["form","capture"]`),
		RetakeCount: 1,
	}
}

func TestAssembler_Success(t *testing.T) {
	store, arts, pub := newMemStore(), newMemArtifacts(), &capturePublisher{}
	a := NewAssembler(store, arts, pub, nil)

	r, err := a.Assemble(context.Background(), sampleInput(screening.CameraTopconNW400, ""))
	require.NoError(t, err)

	assert.Equal(t, uint(1), r.ID)
	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, "fundus_images/report_1.jpg", r.ImageKey)
	assert.Equal(t, "Topcon NW400", r.CameraType)
	assert.NotNil(t, r.CompletedAt)

	require.Len(t, store.records, 1)
	assert.Equal(t, StatusComplete, store.records[1].Status)
	assert.Equal(t, []byte{0xFF, 0xD8, 0x01}, arts.objects["fundus_images/report_1.jpg"])
	assert.Equal(t, 1, store.records[1].RetakeCount)
	assert.JSONEq(t, `["form","capture"]`, string(store.records[1].StepHistory))

	require.Equal(t, []string{eventbus.TopicReportCompleted}, pub.topics)
	ev := pub.args[0].(eventbus.ReportCompleted)
	assert.Equal(t, uint(1), ev.ReportID)
	assert.Equal(t, 0.82, ev.Confidence)
}

func TestAssembler_ResolvesCustomCamera(t *testing.T) {
	store := newMemStore()
	a := NewAssembler(store, newMemArtifacts(), nil, nil)

	r, err := a.Assemble(context.Background(), sampleInput(screening.CameraOther, "Zeiss Visucam"))
	require.NoError(t, err)
	assert.Equal(t, "Zeiss Visucam", r.CameraType)
	assert.Equal(t, "Zeiss Visucam", store.records[r.ID].CameraType)
}

func TestAssembler_ArtifactFailureDiscardsRecord(t *testing.T) {
	store, arts := newMemStore(), newMemArtifacts()
	arts.putErr = stderrors.New("disk full")
	a := NewAssembler(store, arts, nil, nil)

	_, err := a.Assemble(context.Background(), sampleInput(screening.CameraCanonCX1, ""))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
	assert.Equal(t, "failed to store image artifact", errors.Reason(err))
	assert.Empty(t, store.records)
	assert.Equal(t, []uint{1}, store.discarded)
}

func TestAssembler_CompleteFailureRemovesArtifact(t *testing.T) {
	store, arts, pub := newMemStore(), newMemArtifacts(), &capturePublisher{}
	store.completeErr = stderrors.New("db locked")
	a := NewAssembler(store, arts, pub, nil)

	_, err := a.Assemble(context.Background(), sampleInput(screening.CameraOptos, ""))
	require.Error(t, err)
	assert.Empty(t, store.records)
	assert.Empty(t, arts.objects)
	assert.Empty(t, pub.topics)
}

func TestAssembler_CleanupSurvivesCancelledContext(t *testing.T) {
	store, arts := newMemStore(), newMemArtifacts()
	store.completeErr = context.Canceled
	a := NewAssembler(store, arts, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Assemble(ctx, sampleInput(screening.CameraOptos, ""))
	require.Error(t, err)

	require.Len(t, arts.ctxErrs, 1)
	assert.NoError(t, arts.ctxErrs[0])
	assert.Empty(t, store.records)
}

func TestArtifactKeyAndContentType(t *testing.T) {
	assert.Equal(t, "fundus_images/report_7.png", ArtifactKey(7, "png"))
	assert.Equal(t, "fundus_images/report_7.jpg", ArtifactKey(7, ""))
	assert.Equal(t, "image/png", ContentType("png"))
	assert.Equal(t, "image/jpeg", ContentType("jpg"))
}
