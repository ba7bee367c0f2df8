package memory

import "github.com/recallkit/recallkit-go/core"

// Sanitize compacts a raw execution trace into the minimal working
// action sequence worth replaying. The rules:
//
//   - Failed attempts are dropped: an error-tagged step that the agent
//     retried contributes only its successful retry, and dead ends
//     that led nowhere are removed the same way. The final run was
//     certified successful, so error-tagged steps are by definition
//     not part of the working path.
//   - Survivors keep their relative order.
//   - A trace with no outcome tags at all passes through unchanged:
//     best-effort degradation, not a failure.
//
// Pure function, no side effects; the input slice is never mutated.
func Sanitize(steps []core.Step) []core.Action {
	tagged := false
	for _, s := range steps {
		if s.Outcome != core.OutcomeUnknown {
			tagged = true
			break
		}
	}

	actions := make([]core.Action, 0, len(steps))
	for _, s := range steps {
		if tagged && s.Outcome == core.OutcomeError {
			continue
		}
		actions = append(actions, s.Action)
	}
	return actions
}
