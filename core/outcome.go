package core

import "strings"

type Action string

const (
	ActionPurchase  Action = "purchase"
	ActionAuthorize Action = "authorize"
	ActionCapture   Action = "capture"
	ActionVoid      Action = "void"
	ActionRefund    Action = "refund"
	ActionVerify    Action = "verify"
	ActionStore     Action = "store"
)

func (a Action) String() string {
	return string(a)
}

func (a Action) Valid() bool {
	switch a {
	case ActionPurchase, ActionAuthorize, ActionCapture, ActionVoid, ActionRefund, ActionVerify, ActionStore:
		return true
	default:
		return false
	}
}

// AllActions lists every operation in a stable order.
func AllActions() []Action {
	return []Action{ActionPurchase, ActionAuthorize, ActionCapture, ActionVoid, ActionRefund, ActionVerify, ActionStore}
}

func ParseAction(value string) (Action, bool) {
	action := Action(strings.TrimSpace(strings.ToLower(value)))
	return action, action.Valid()
}

// Outcome is the normalized result of a single remote call. Raw holds the parsed
// response tree and is meant for diagnostics only.
type Outcome struct {
	Success       bool
	Message       string
	Raw           any
	Authorization string
	ErrorCode     string
	Test          bool
}

// Params returns Raw as a mapping, or an empty mapping when the response was not
// an object.
func (o Outcome) Params() map[string]any {
	if values, ok := o.Raw.(map[string]any); ok {
		return values
	}
	return map[string]any{}
}

func FailureOutcome(message string, test bool) Outcome {
	return Outcome{
		Success: false,
		Message: message,
		Raw:     map[string]any{},
		Test:    test,
	}
}
