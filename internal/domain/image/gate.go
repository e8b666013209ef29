package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"aeye-server-go/internal/domain/telemetry"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

const (
	opDecode  = "image.decode"
	opQuality = "image.quality"

	defaultMaxFileSize = 10 * 1024 * 1024
)

// Gate decodes the transported photo and asks the quality oracle about it.
type Gate struct {
	quality  QualityChecker
	recorder telemetry.Recorder
	maxSize  int64
	logger   *utils.Logger
	stats    counters
}

// Options configures the gate.
type Options struct {
	Quality     QualityChecker
	Recorder    telemetry.Recorder
	MaxFileSize int64
	Logger      *utils.Logger
}

func NewGate(opts Options) (*Gate, error) {
	if opts.Quality == nil {
		return nil, fmt.Errorf("image quality checker is required")
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	return &Gate{
		quality:  opts.Quality,
		recorder: opts.Recorder,
		maxSize:  opts.MaxFileSize,
		logger:   opts.Logger,
	}, nil
}

// DecodeAndCheck returns the decoded image once the quality oracle accepted it.
// Malformed input is a validation error; an oracle that cannot answer is an oracle error.
func (g *Gate) DecodeAndCheck(ctx context.Context, encoded, cameraType string) (*DecodedImage, error) {
	g.stats.total.Add(1)

	if strings.TrimSpace(encoded) == "" {
		g.stats.decodeFailures.Add(1)
		return nil, errors.New(errors.KindValidation, opDecode, "no image data provided")
	}

	mimeType, payload := splitDataURI(strings.TrimSpace(encoded))
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > g.maxSize+2 {
		g.stats.decodeFailures.Add(1)
		return nil, g.tooLarge()
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		g.stats.decodeFailures.Add(1)
		return nil, errors.New(errors.KindValidation, opDecode, "invalid image encoding: "+err.Error())
	}
	if len(raw) == 0 {
		g.stats.decodeFailures.Add(1)
		return nil, errors.New(errors.KindValidation, opDecode, "no image data provided")
	}
	if int64(len(raw)) > g.maxSize {
		g.stats.decodeFailures.Add(1)
		return nil, g.tooLarge()
	}

	format, width, height := detectFormat(raw, mimeType)
	img := &DecodedImage{Bytes: raw, Format: format, Width: width, Height: height}

	passed, err := g.quality.CheckQuality(ctx, raw)
	if err != nil {
		g.stats.oracleFailures.Add(1)
		g.logger.WarnTag("Oracle", "image quality oracle error: %v", err)
		return nil, &errors.Error{
			Kind:    errors.KindOracle,
			Op:      opQuality,
			Message: "image quality check failed: " + errors.Reason(err),
			Cause:   err,
		}
	}
	img.QualityPassed = passed
	g.emit(telemetry.ImageVerification(passed, cameraType))

	if !passed {
		g.stats.qualityRejected.Add(1)
		return nil, errors.New(errors.KindValidation, opQuality, "image quality too low")
	}

	g.logger.Debug("image verified: format=%s size=%d width=%d height=%d", format, len(raw), width, height)
	return img, nil
}

// Metrics returns a snapshot of gate counters.
func (g *Gate) Metrics() Metrics {
	return g.stats.snapshot()
}

func (g *Gate) tooLarge() error {
	return errors.New(errors.KindValidation, opDecode, fmt.Sprintf("image exceeds maximum size of %d bytes", g.maxSize))
}

func (g *Gate) emit(ev telemetry.Event) {
	if g.recorder != nil {
		g.recorder.Emit(ev)
	}
}
