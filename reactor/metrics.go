// File: reactor/metrics.go
// Author: momentics <momentics@gmail.com>

package reactor

import "github.com/hashicorp/go-metrics"

var (
	MetricConnAcceptedCount   = []string{"toc", "connection", "accepted", "count"}
	MetricConnAcceptErrCount  = []string{"toc", "connection", "accept", "error", "count"}
	MetricConnClosedCount     = []string{"toc", "connection", "closed", "count"}
	MetricConnActive          = []string{"toc", "connection", "active"}
	MetricPacketInCount       = []string{"toc", "packet", "in", "count"}
	MetricPacketInBytes       = []string{"toc", "packet", "in", "bytes"}
	MetricPacketOutCount      = []string{"toc", "packet", "out", "count"}
	MetricPacketOutBytes      = []string{"toc", "packet", "out", "bytes"}
	MetricProcessLatencyMs    = []string{"toc", "process", "latency", "ms"}
	MetricProcessErrorCount   = []string{"toc", "process", "error", "count"}
	MetricSubmitRejectedCount = []string{"toc", "submit", "rejected", "count"}
)

// TelemetryLabel names a metric label.
type TelemetryLabel string

var (
	LabelReason TelemetryLabel = "reason"
	LabelStage  TelemetryLabel = "stage"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}
