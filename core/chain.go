package core

import (
	"context"
	"fmt"
)

type Policy string

const (
	PolicyDefault          Policy = "default"
	PolicyUseFirstResponse Policy = "use_first_response"
)

// StepFunc performs one remote call. previousAuthorization is the authorization of
// the last successful counted step, empty for the first step.
type StepFunc func(ctx context.Context, previousAuthorization string) (Outcome, error)

type Step struct {
	Name         string
	IgnoreResult bool
	Run          StepFunc
}

func NewStep(name string, run StepFunc) Step {
	return Step{Name: name, Run: run}
}

// Ignored marks the step as best effort: its outcome is kept in history but it
// never becomes primary, never short-circuits and never feeds the next step.
func (s Step) Ignored() Step {
	s.IgnoreResult = true
	return s
}

type StepRecord struct {
	Name    string
	Ignored bool
	Outcome Outcome
	Err     error
}

type ChainResult struct {
	Policy        Policy
	Steps         []StepRecord
	Primary       Outcome
	Authorization string
	hasPrimary    bool
}

func (r ChainResult) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Steps))
	for _, step := range r.Steps {
		if step.Err != nil {
			continue
		}
		out = append(out, step.Outcome)
	}
	return out
}

func (r ChainResult) Success() bool {
	return r.hasPrimary && r.Primary.Success
}

func (r ChainResult) HasPrimary() bool {
	return r.hasPrimary
}

// IgnoredErrors returns the errors swallowed from ignore-result steps.
func (r ChainResult) IgnoredErrors() []error {
	var out []error
	for _, step := range r.Steps {
		if step.Ignored && step.Err != nil {
			out = append(out, step.Err)
		}
	}
	return out
}

func SingleStep(outcome Outcome) ChainResult {
	return ChainResult{
		Policy:        PolicyDefault,
		Steps:         []StepRecord{{Name: "call", Outcome: outcome}},
		Primary:       outcome,
		Authorization: outcome.Authorization,
		hasPrimary:    true,
	}
}

// RunChain executes steps in declared order, each at most once. A returned error
// from a counted step stops the chain and is handed back with the partial result.
func RunChain(ctx context.Context, policy Policy, steps ...Step) (ChainResult, error) {
	if policy == "" {
		policy = PolicyDefault
	}
	result := ChainResult{Policy: policy}
	if policy != PolicyDefault && policy != PolicyUseFirstResponse {
		return result, fmt.Errorf("core: invalid chain policy %q", policy)
	}
	if len(steps) == 0 {
		return result, fmt.Errorf("core: chain requires at least one step")
	}
	for idx, step := range steps {
		if step.Run == nil {
			return result, fmt.Errorf("core: chain step %d run func is required", idx)
		}
	}

	counted := 0
	for idx, step := range steps {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step_%d", idx+1)
		}

		outcome, err := step.Run(ctx, result.Authorization)
		record := StepRecord{Name: name, Ignored: step.IgnoreResult, Outcome: outcome, Err: err}
		result.Steps = append(result.Steps, record)

		if step.IgnoreResult {
			continue
		}
		if err != nil {
			return result, err
		}

		counted++
		switch {
		case policy == PolicyUseFirstResponse && counted == 1:
			result.Primary = outcome
			result.hasPrimary = true
		case policy == PolicyDefault:
			result.Primary = outcome
			result.hasPrimary = true
		}
		if !outcome.Success {
			return result, nil
		}
		result.Authorization = outcome.Authorization
	}
	return result, nil
}
