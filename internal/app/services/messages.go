package services

import (
	"encoding/json"

	"aeye-server-go/internal/domain/screening"
)

// Client-visible status messages.
const (
	MsgConnected        = "WebSocket connection established"
	MsgFormVerified     = "Basic information verified"
	MsgFormInvalid      = "Invalid basic information"
	MsgImageVerified    = "Image data verified"
	MsgImageInvalid     = "Invalid image data"
	MsgDiagnosisDone    = "Diagnosis complete"
	MsgDiagnosisFailed  = "Diagnosis failed"
	MsgReportGenerated  = "Report generated"
	MsgReportGenFailure = "Report generation failed"
)

// Request is one inbound screening request.
type Request struct {
	FormData      screening.Form  `json:"formData"`
	CapturedPhoto string          `json:"capturedPhoto"`
	StepHistory   json.RawMessage `json:"stepHistory,omitempty"`
	RetakeCount   int             `json:"retakeCount,omitempty"`
}

// Message is every outbound frame.
type Message struct {
	Message  string `json:"message"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// ReportData is the payload of MsgReportGenerated.
type ReportData struct {
	Diagnose   bool    `json:"diagnose"`
	Confidence float64 `json:"confidence"`
	ID         uint    `json:"id"`
}
