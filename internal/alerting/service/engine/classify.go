package engine

import (
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// Classify scans the table from most to least severe and returns the first
// level with a strictly exceeded limit. Severities missing from the table are
// skipped.
func Classify(table model.ThresholdTable, latency time.Duration, failureRate float64) model.Severity {
	for _, s := range model.Levels {
		th, ok := table[s]
		if !ok {
			continue
		}
		if th.Exceeded(latency, failureRate) {
			return s
		}
	}
	return model.SeverityNone
}
