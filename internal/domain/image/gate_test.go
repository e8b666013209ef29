package image

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeye-server-go/internal/domain/telemetry"
	"aeye-server-go/internal/platform/errors"
)

type fakeQuality struct {
	passed bool
	err    error
	calls  int
}

func (f *fakeQuality) CheckQuality(context.Context, []byte) (bool, error) {
	f.calls++
	return f.passed, f.err
}

type captureRecorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureRecorder) Emit(ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newGate(t *testing.T, q QualityChecker, rec telemetry.Recorder, max int64) *Gate {
	t.Helper()
	g, err := NewGate(Options{Quality: q, Recorder: rec, MaxFileSize: max})
	require.NoError(t, err)
	return g
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGate_RandomBytesWithDataURIPass(t *testing.T) {
	q := &fakeQuality{passed: true}
	rec := &captureRecorder{}
	g := newGate(t, q, rec, 0)

	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := g.DecodeAndCheck(context.Background(), encoded, "Topcon NW400")
	require.NoError(t, err)
	assert.Equal(t, raw, img.Bytes)
	assert.Equal(t, "jpg", img.Format)
	assert.True(t, img.QualityPassed)
	assert.Equal(t, 1, q.calls)

	require.Len(t, rec.events, 1)
	assert.Equal(t, telemetry.MetricImageVerificationPass, rec.events[0].Name)
	assert.Equal(t, "Topcon NW400", rec.events[0].Tags["camera_type"])
}

func TestGate_DetectsPNG(t *testing.T) {
	g := newGate(t, &fakeQuality{passed: true}, nil, 0)

	img, err := g.DecodeAndCheck(context.Background(), base64.StdEncoding.EncodeToString(pngBytes(t)), "Canon CX-1")
	require.NoError(t, err)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
}

func TestGate_EmptyInput(t *testing.T) {
	q := &fakeQuality{passed: true}
	g := newGate(t, q, nil, 0)

	for _, in := range []string{"", "   ", "data:image/jpeg;base64,"} {
		_, err := g.DecodeAndCheck(context.Background(), in, "Other")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindValidation))
		assert.Equal(t, "no image data provided", errors.Reason(err))
	}
	assert.Zero(t, q.calls)
}

func TestGate_MalformedEncodingSurfacesDecodeError(t *testing.T) {
	q := &fakeQuality{passed: true}
	g := newGate(t, q, nil, 0)

	_, err := g.DecodeAndCheck(context.Background(), "data:image/jpeg;base64,@@not-base64@@", "Other")
	require.Error(t, err)
	assert.Contains(t, errors.Reason(err), "invalid image encoding: illegal base64 data")
	assert.Zero(t, q.calls)
	assert.Equal(t, int64(1), g.Metrics().DecodeFailures)
}

func TestGate_TooLarge(t *testing.T) {
	g := newGate(t, &fakeQuality{passed: true}, nil, 8)

	_, err := g.DecodeAndCheck(context.Background(), base64.StdEncoding.EncodeToString(make([]byte, 64)), "Other")
	require.Error(t, err)
	assert.Contains(t, errors.Reason(err), "exceeds maximum size of 8 bytes")
}

func TestGate_QualityTooLow(t *testing.T) {
	rec := &captureRecorder{}
	g := newGate(t, &fakeQuality{passed: false}, rec, 0)

	_, err := g.DecodeAndCheck(context.Background(), base64.StdEncoding.EncodeToString([]byte("abc")), "Canon CX-1")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Equal(t, "image quality too low", errors.Reason(err))

	require.Len(t, rec.events, 1)
	assert.Equal(t, telemetry.MetricImageVerificationFailed, rec.events[0].Name)
	assert.Equal(t, "Canon CX-1", rec.events[0].Tags["camera_type"])
	assert.Equal(t, int64(1), g.Metrics().QualityRejected)
}

func TestGate_OracleFailureIsDistinct(t *testing.T) {
	rec := &captureRecorder{}
	g := newGate(t, &fakeQuality{err: stderrors.New("connection refused")}, rec, 0)

	_, err := g.DecodeAndCheck(context.Background(), base64.StdEncoding.EncodeToString([]byte("abc")), "Other")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOracle))
	assert.Equal(t, "image quality check failed: connection refused", errors.Reason(err))
	assert.Empty(t, rec.events)
}

func TestSplitDataURI(t *testing.T) {
	mime, payload := splitDataURI("data:image/png;base64,AAAA")
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "AAAA", payload)

	mime, payload = splitDataURI("AAAA")
	assert.Empty(t, mime)
	assert.Equal(t, "AAAA", payload)
}

func TestNewGate_RequiresChecker(t *testing.T) {
	_, err := NewGate(Options{})
	assert.Error(t, err)
}
