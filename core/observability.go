package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"
)

// Operation outcomes as they appear in the "status" tag and log field. A
// declined payment completed its round trip, so it is not a failure.
const (
	statusSuccess  = "success"
	statusDeclined = "declined"
	statusFailure  = "failure"
)

// operationEvent is one finished gateway operation, ready to be logged and
// counted.
type operationEvent struct {
	name    string
	status  string
	elapsed time.Duration
	fields  map[string]any
}

func newOperationEvent(operation string, startedAt time.Time, result OperationResult, err error, base map[string]any) operationEvent {
	event := operationEvent{
		name:    normalizeOperation(operation),
		status:  statusSuccess,
		elapsed: time.Since(startedAt),
		fields:  cloneFields(base),
	}
	if event.name == "" {
		event.name = "unknown"
	}

	switch {
	case err != nil:
		event.status = statusFailure
		event.fields["error"] = err.Error()
	default:
		if !result.Outcome.Success {
			event.status = statusDeclined
		}
		event.fields["message"] = result.Outcome.Message
		event.fields["steps"] = len(result.Chain.Steps)
		if result.Outcome.ErrorCode != "" {
			event.fields["error_code"] = result.Outcome.ErrorCode
		}
	}
	if result.TransactionID != "" {
		event.fields["transaction_id"] = result.TransactionID
	}
	event.fields["event_type"] = event.name
	event.fields["status"] = event.status
	event.fields["duration_ms"] = event.elapsed.Milliseconds()
	return event
}

// tags keeps metric cardinality low: the operation, the status and the
// gateway, nothing per request.
func (e operationEvent) tags() map[string]string {
	tags := map[string]string{"operation": e.name, "status": e.status}
	if provider, ok := e.fields["provider_id"].(string); ok && strings.TrimSpace(provider) != "" {
		tags["provider_id"] = strings.TrimSpace(provider)
	}
	return tags
}

func (e operationEvent) message() string {
	switch e.status {
	case statusFailure:
		return e.name + " failed"
	case statusDeclined:
		return e.name + " declined"
	default:
		return e.name + " succeeded"
	}
}

func (s *Service) observeOperation(ctx context.Context, startedAt time.Time, operation string, result OperationResult, err error, fields map[string]any) {
	if s == nil {
		return
	}
	event := newOperationEvent(operation, startedAt, result, err, fields)
	tags := event.tags()

	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, OperationCounterName(event.name), 1, cloneTags(tags))
		s.metricsRecorder.ObserveHistogram(ctx, OperationDurationName(event.name), float64(event.elapsed.Milliseconds()), cloneTags(tags))
	}
	s.log(ctx, event.status, event.message(), event.fields)
}

// log writes at error for failures, warn for declines and info otherwise.
// Loggers that take structured fields get them attached as well as flattened.
func (s *Service) log(ctx context.Context, status, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if structured, ok := logger.(FieldsLogger); ok {
		logger = structured.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch status {
	case statusFailure:
		logger.Error(message, args...)
	case statusDeclined:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if cloned := maps.Clone(fields); cloned != nil {
		return cloned
	}
	return map[string]any{}
}

// flattenFields returns key/value pairs sorted by key.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}
