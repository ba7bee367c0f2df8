package memory_test

import (
	"encoding/json"
	"testing"

	"github.com/recallkit/recallkit-go/core"
	"github.com/recallkit/recallkit-go/memory"
)

func step(name string, outcome core.Outcome) core.Step {
	data, _ := json.Marshal(map[string]string{"action": name})
	return core.Step{Action: core.Action(data), Outcome: outcome}
}

func names(actions []core.Action) []string {
	var out []string
	for _, a := range actions {
		var payload struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(a, &payload); err != nil {
			out = append(out, "<bad>")
			continue
		}
		out = append(out, payload.Action)
	}
	return out
}

func TestSanitize_DropsRetriedError(t *testing.T) {
	steps := []core.Step{
		step("A", core.OutcomeOK),
		step("B", core.OutcomeError),
		step("B", core.OutcomeOK),
		step("C", core.OutcomeOK),
	}

	got := names(memory.Sanitize(steps))
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Sanitized to %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Action %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitize_DropsDeadEnds(t *testing.T) {
	steps := []core.Step{
		step("open", core.OutcomeOK),
		step("wrong_turn", core.OutcomeError),
		step("finish", core.OutcomeOK),
	}

	got := names(memory.Sanitize(steps))
	if len(got) != 2 || got[0] != "open" || got[1] != "finish" {
		t.Errorf("Sanitized to %v, want [open finish]", got)
	}
}

func TestSanitize_UntaggedPassthrough(t *testing.T) {
	steps := []core.Step{
		step("A", core.OutcomeUnknown),
		step("B", core.OutcomeUnknown),
		step("C", core.OutcomeUnknown),
	}

	got := memory.Sanitize(steps)
	if len(got) != 3 {
		t.Fatalf("Expected untagged trace to pass through, got %d actions", len(got))
	}
}

func TestSanitize_Empty(t *testing.T) {
	if got := memory.Sanitize(nil); len(got) != 0 {
		t.Errorf("Sanitize(nil) = %v, want empty", got)
	}
}

func TestSanitize_PreservesOrder(t *testing.T) {
	steps := []core.Step{
		step("one", core.OutcomeOK),
		step("two", core.OutcomeError),
		step("three", core.OutcomeOK),
		step("four", core.OutcomeOK),
	}

	got := names(memory.Sanitize(steps))
	want := []string{"one", "three", "four"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Survivor order %v, want %v", got, want)
		}
	}
}
