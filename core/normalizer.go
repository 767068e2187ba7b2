package core

import "strings"

type (
	SuccessFunc func(response any, action string) bool
	MessageFunc func(response any, action string) string
	ValueFunc   func(response any, action string) string
)

// Strategy bundles the response interpretation rules for one provider.
type Strategy struct {
	ProviderID      string
	Success         SuccessFunc
	Message         MessageFunc
	Authorization   ValueFunc
	ErrorCode       ValueFunc
	StatusOverrides map[int]Outcome
}

// Normalize builds the outcome for a parsed response. ErrorCode is only kept when
// the response is a failure.
func (s Strategy) Normalize(response any, action string, test bool) Outcome {
	if response == nil {
		response = map[string]any{}
	}
	outcome := Outcome{Raw: response, Test: test}
	if s.Success != nil {
		outcome.Success = s.Success(response, action)
	}
	if s.Message != nil {
		outcome.Message = s.Message(response, action)
	}
	if s.Authorization != nil {
		outcome.Authorization = strings.TrimSpace(s.Authorization(response, action))
	}
	if !outcome.Success && s.ErrorCode != nil {
		outcome.ErrorCode = s.ErrorCode(response, action)
	}
	return outcome
}

// Override returns the fixed outcome mapped to an HTTP status, if any.
func (s Strategy) Override(statusCode int, test bool) (Outcome, bool) {
	if len(s.StatusOverrides) == 0 {
		return Outcome{}, false
	}
	fixed, ok := s.StatusOverrides[statusCode]
	if !ok {
		return Outcome{}, false
	}
	fixed.Success = false
	fixed.Test = test
	if fixed.Raw == nil {
		fixed.Raw = map[string]any{}
	}
	return fixed, true
}

// NormalizeResponse applies status overrides and then parses and normalizes the
// body.
func (s Strategy) NormalizeResponse(response TransportResponse, action string, test bool) Outcome {
	if fixed, ok := s.Override(response.StatusCode, test); ok {
		return fixed
	}
	return s.Normalize(ParseBody(response.Body), action, test)
}

// FieldErrorPair names the keys of one entry in a provider's field error array.
type FieldErrorPair struct {
	Field   string
	Message string
}

// JoinFieldErrors renders "<field>: <message>" for each entry in input order.
func JoinFieldErrors(items []any, pair FieldErrorPair, separator string) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		field := String(item, pair.Field)
		message := String(item, pair.Message)
		if field == "" && message == "" {
			continue
		}
		parts = append(parts, field+": "+message)
	}
	return strings.Join(parts, separator)
}

func InvalidCredentialsOverride() map[int]Outcome {
	return map[int]Outcome{
		401: {Success: false, Message: "Invalid credentials", Raw: map[string]any{}},
	}
}
