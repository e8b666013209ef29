package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/platform/errors"
	"aeye-server-go/internal/utils"
)

// Sink delivers one formatted line.
type Sink interface {
	Send(ctx context.Context, line string) error
}

// HTTPSink posts lines to an influx-compatible write endpoint with basic auth.
type HTTPSink struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPSink binds creds once; they are never looked up again.
func NewHTTPSink(endpoint string, creds config.Credentials, timeout time.Duration) *HTTPSink {
	client := resty.New().
		SetTimeout(timeout).
		SetBasicAuth(creds.UserID, creds.APIKey).
		SetHeader("Content-Type", "text/plain")
	return &HTTPSink{client: client, endpoint: endpoint}
}

func (s *HTTPSink) Send(ctx context.Context, line string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(line).
		Post(s.endpoint)
	if err != nil {
		return errors.Wrap(errors.KindTelemetry, "telemetry.send", "metric write failed", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return errors.New(errors.KindTelemetry, "telemetry.send",
			fmt.Sprintf("metric write rejected: %d %s", resp.StatusCode(), resp.String()))
	}
	return nil
}

// LogSink writes lines to the debug log. Used when telemetry is disabled.
type LogSink struct {
	Logger *utils.Logger
}

func (s LogSink) Send(_ context.Context, line string) error {
	s.Logger.DebugTag("Telemetry", "metric %s", line)
	return nil
}
