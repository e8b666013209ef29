package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"aeye-server-go/internal/domain/screening"
	"aeye-server-go/internal/platform/errors"
)

// RemoteClient calls an oracle service over HTTP. It does not retry.
type RemoteClient struct {
	client *resty.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) (*RemoteClient, error) {
	if baseURL == "" {
		return nil, errors.New(errors.KindConfig, "oracle.remote", "oracle base url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &RemoteClient{client: client}, nil
}

func (c *RemoteClient) Diagnose(ctx context.Context, s *screening.Screening, image []byte) (screening.Outcome, error) {
	var out DiagnoseResponse
	body := DiagnoseRequest{FormData: s, ImageData: base64.StdEncoding.EncodeToString(image)}
	if err := c.post(ctx, "oracle.diagnose", PathDiagnose, body, &out); err != nil {
		return screening.Outcome{}, err
	}
	return screening.Outcome{Result: out.DiagnoseResult, Confidence: out.Confidence}, nil
}

func (c *RemoteClient) CheckQuality(ctx context.Context, image []byte) (bool, error) {
	var out QualityResponse
	body := QualityRequest{ImageData: base64.StdEncoding.EncodeToString(image)}
	if err := c.post(ctx, "oracle.quality", PathImageQuality, body, &out); err != nil {
		return false, err
	}
	return out.ImageQualityPassed, nil
}

// post decodes the body itself so a 200 with an unreadable body is reported
// as a bad response rather than a transport failure.
func (c *RemoteClient) post(ctx context.Context, op, path string, body, result any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return errors.Wrap(errors.KindOracle, op, "oracle unreachable", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.New(errors.KindOracle, op, fmt.Sprintf("oracle returned status %d", resp.StatusCode()))
	}
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return errors.Wrap(errors.KindOracle, op, "invalid oracle response", err)
	}
	return nil
}
