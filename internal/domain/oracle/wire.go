package oracle

import "aeye-server-go/internal/domain/screening"

// HTTP bodies shared by RemoteClient and the oracle service handlers.

type DiagnoseRequest struct {
	FormData  *screening.Screening `json:"formData"`
	ImageData string               `json:"imageData"`
}

type DiagnoseResponse struct {
	DiagnoseResult bool    `json:"diagnose_result"`
	Confidence     float64 `json:"confidence"`
}

type QualityRequest struct {
	ImageData string `json:"imageData"`
}

type QualityResponse struct {
	ImageQualityPassed bool `json:"image_quality_passed"`
}

const (
	PathDiagnose     = "/diagnose"
	PathImageQuality = "/image-quality"
)
