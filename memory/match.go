package memory

import (
	"fmt"
	"strings"

	"github.com/recallkit/recallkit-go/core"
)

// Match is a qualifying recall hit: the matched unit's original task
// text (for prompt framing), its sanitized trajectory, and the
// similarity score that cleared the threshold.
type Match struct {
	Task       string
	Trajectory []core.Action
	Score      float64
}

// Inject renders the match as a delimited text block ready to splice
// into the host's prompt: the matched task, a 1-indexed list of the
// actions that worked, and an instruction to adapt rather than replay.
// Where the block lands in the prompt is the host's business.
func (m *Match) Inject() string {
	var b strings.Builder
	b.WriteString("=== RELEVANT PAST SUCCESS ===\n")
	fmt.Fprintf(&b, "Previously completed task: %s\n", m.Task)
	b.WriteString("Actions that worked:\n")
	for i, action := range m.Trajectory {
		fmt.Fprintf(&b, "%d. %s\n", i+1, string(action))
	}
	b.WriteString("Adapt these steps to the current task instead of replaying them verbatim.\n")
	b.WriteString("=== END PAST SUCCESS ===")
	return b.String()
}
