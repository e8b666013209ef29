package eventbus

import "time"

// 事件类型定义
const (
	// TopicMetric carries a telemetry.Event to the sink.
	TopicMetric = "telemetry:metric"

	// TopicReportCompleted carries a ReportCompleted after a report is marked complete.
	TopicReportCompleted = "screening:report-completed"
)

// ReportCompleted 报告完成事件
type ReportCompleted struct {
	ReportID    uint      `json:"id"`
	Diagnose    bool      `json:"diagnose"`
	Confidence  float64   `json:"confidence"`
	CameraType  string    `json:"camera_type"`
	CompletedAt time.Time `json:"completed_at"`
}
