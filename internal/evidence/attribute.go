package evidence

import (
	"fmt"
	"sort"
	"strings"
)

// ObservedCall is a tool invocation as reported by a pipeline, before it has
// been attributed to a stage.
type ObservedCall struct {
	ID          string
	ToolName    string
	ArgsSummary string
	Success     bool
	Duration    float64
	Error       string
}

// Attributor assigns observed tool calls to stages exactly once. A call id
// expected by two stages lands on the earlier stage only; a stage whose
// expected tools were never called gets a single synthetic miss so silence
// is visible in aggregate counts.
type Attributor struct {
	expected   map[string][]string
	attributed map[string]bool
}

// DefaultExpectedTools maps each stage to the tool names that legitimately
// serve it.
func DefaultExpectedTools() map[string][]string {
	return map[string][]string{
		"1": {"design_workcell"},
		"2": {"optimize_layout"},
		"3": {"build_scene"},
	}
}

// NewAttributor creates an attributor over the given stage-to-tools map.
// The attributor spans one iteration; create a fresh one per iteration.
func NewAttributor(expected map[string][]string) *Attributor {
	if expected == nil {
		expected = DefaultExpectedTools()
	}
	return &Attributor{
		expected:   expected,
		attributed: make(map[string]bool),
	}
}

func (a *Attributor) expects(stage, tool string) bool {
	for _, t := range a.expected[stage] {
		if t == tool {
			return true
		}
	}
	return false
}

// AttributeStage logs the observed calls that belong to the open stage.
// Calls with an id already attributed to an earlier stage are skipped; calls
// without an id are attributed positionally and never deduplicated. When no
// expected tool was called at all, one synthetic miss is logged.
func (a *Attributor) AttributeStage(l *Logger, stage string, calls []ObservedCall) error {
	logged := 0
	for _, c := range calls {
		if !a.expects(stage, c.ToolName) {
			continue
		}
		if c.ID != "" {
			if a.attributed[c.ID] {
				continue
			}
			a.attributed[c.ID] = true
		}
		err := l.LogToolCall(ToolCall{
			ToolName:      c.ToolName,
			ArgsSummary:   c.ArgsSummary,
			Success:       c.Success,
			Duration:      c.Duration,
			Error:         c.Error,
			IsAppropriate: true,
		})
		if err != nil {
			return fmt.Errorf("attribute %s to stage %s: %w", c.ToolName, stage, err)
		}
		logged++
	}
	if logged == 0 {
		names := append([]string(nil), a.expected[stage]...)
		sort.Strings(names)
		return l.LogToolCall(ToolCall{
			ToolName:      fmt.Sprintf("<missing: %s>", strings.Join(names, "|")),
			ArgsSummary:   "expected tool was never invoked",
			IsAppropriate: false,
		})
	}
	return nil
}
