// Package redact removes secrets from captured wire transcripts. Rules keep the
// field name and its punctuation and replace only the value with Marker.
package redact

import (
	"fmt"
	"regexp"
)

// Marker replaces every redacted value. It matches none of the value patterns
// built by this package, so scrubbing twice is the same as scrubbing once.
const Marker = "[FILTERED]"

type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

func (r Rule) apply(transcript string) string {
	if r.Pattern == nil {
		return transcript
	}
	return r.Pattern.ReplaceAllString(transcript, r.Replacement)
}

// Scrubber applies its rules in order. It holds no state beyond the rules and is
// safe for concurrent use.
type Scrubber struct {
	rules []Rule
}

func New(rules ...Rule) *Scrubber {
	kept := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Pattern == nil {
			continue
		}
		kept = append(kept, rule)
	}
	return &Scrubber{rules: kept}
}

func (s *Scrubber) Scrub(transcript string) string {
	if s == nil {
		return transcript
	}
	for _, rule := range s.rules {
		transcript = rule.apply(transcript)
	}
	return transcript
}

func (s *Scrubber) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// With returns a scrubber running s's rules followed by extra.
func (s *Scrubber) With(extra ...Rule) *Scrubber {
	return New(append(s.Rules(), extra...)...)
}

// MustRule compiles pattern and panics on error. Use it for package level rules.
func MustRule(pattern string, replacement string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Replacement: replacement}
}

func NewRule(pattern string, replacement string) (Rule, error) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("redact: compile %q: %w", pattern, err)
	}
	return Rule{Pattern: compiled, Replacement: replacement}, nil
}
