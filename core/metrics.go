package core

import (
	"context"
	"maps"
	"strings"
)

// Operation metrics are named "gateways.<operation>.<suffix>" with the
// operation in snake case.
const (
	metricsPrefix  = "gateways."
	counterSuffix  = ".total"
	durationSuffix = ".duration_ms"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// OperationCounterName is the counter recorded once per service operation.
func OperationCounterName(operation string) string {
	return metricName(operation, counterSuffix)
}

func OperationDurationName(operation string) string {
	return metricName(operation, durationSuffix)
}

func metricName(operation, suffix string) string {
	if operation = normalizeOperation(operation); operation == "" {
		operation = "unknown"
	}
	return metricsPrefix + operation + suffix
}

// normalizeOperation turns "Store Card" or "store-card" into "store_card".
func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}

func cloneTags(tags map[string]string) map[string]string {
	if copied := maps.Clone(tags); copied != nil {
		return copied
	}
	return map[string]string{}
}

var _ MetricsRecorder = NopMetricsRecorder{}
