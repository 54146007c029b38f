// Package validate judges stage artifacts against the workcell design
// contract: structural schema rules plus physical and logical consistency
// checks. Validators are pure functions that always return a Result; they
// never panic, so callers can keep iterating after a bad artifact.
package validate

import (
	"fmt"
	"strings"
)

// Kind classifies a validation outcome.
type Kind int

const (
	// KindOK means every check passed.
	KindOK Kind = iota
	// KindMissing means no artifact was produced for the stage.
	KindMissing
	// KindSchemaInvalid means the artifact failed a structural check.
	KindSchemaInvalid
	// KindSemanticInvalid means the structure was sound but one or more
	// consistency rules were violated.
	KindSemanticInvalid
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindMissing:
		return "missing"
	case KindSchemaInvalid:
		return "schema_invalid"
	case KindSemanticInvalid:
		return "semantic_invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Check is one named rule outcome within a validation run.
type Check struct {
	Name   string `json:"check"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Result is the outcome of validating one stage artifact. Checks preserves
// evaluation order and records every rule, passed or failed, so a bad
// artifact reports all of its violations rather than the first one.
type Result struct {
	Kind    Kind
	OK      bool
	Message string
	Checks  []Check
}

// Check returns the named check outcome, or nil if it was not evaluated.
func (r *Result) Check(name string) *Check {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			return &r.Checks[i]
		}
	}
	return nil
}

// reasons collects the reasons of all failed checks, in order.
func (r *Result) reasons() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed && c.Reason != "" {
			out = append(out, c.Reason)
		}
	}
	return out
}

// maxMessageReasons caps how many failure reasons appear in the headline
// message. The full set is always retained in Checks.
const maxMessageReasons = 3

// capReasons joins the first few reasons and appends a remainder count.
func capReasons(reasons []string) string {
	if len(reasons) <= maxMessageReasons {
		return strings.Join(reasons, "; ")
	}
	return fmt.Sprintf("%s (+%d more)",
		strings.Join(reasons[:maxMessageReasons], "; "), len(reasons)-maxMessageReasons)
}

// missing builds the Result for an absent artifact.
func missing(msg string) Result {
	return Result{Kind: KindMissing, Message: msg}
}

// undecodable builds the Result for a payload that is not valid JSON.
func undecodable(stage string, err error) Result {
	return Result{
		Kind:    KindSchemaInvalid,
		Message: fmt.Sprintf("stage %s output is not a JSON object: %v", stage, err),
		Checks:  []Check{{Name: "schema_valid", Reason: err.Error()}},
	}
}

// finish assembles the final Result from the recorded checks. schemaCheck
// names the structural check; when it is among the failures the result is
// classified SchemaInvalid, otherwise SemanticInvalid.
func finish(checks []Check, schemaCheck, okMsg, failPrefix string) Result {
	r := Result{Checks: checks}
	fails := r.reasons()
	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
			break
		}
	}
	if allPassed {
		r.Kind = KindOK
		r.OK = true
		r.Message = okMsg
		return r
	}
	r.Kind = KindSemanticInvalid
	if schemaCheck != "" {
		if c := r.Check(schemaCheck); c != nil && !c.Passed {
			r.Kind = KindSchemaInvalid
		}
	}
	r.Message = failPrefix + ": " + capReasons(fails)
	return r
}
