// Package core holds the value types shared across the SDK: raw
// execution steps, sanitized trajectories, and persisted memory units.
package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action is one opaque action record inside a trajectory. The schema
// belongs to the host's execution layer; the memory engine stores and
// returns actions without ever inspecting them.
type Action = json.RawMessage

// Outcome tags how a single attempted action ended.
type Outcome string

const (
	// OutcomeUnknown means the host supplied no per-action verdict.
	OutcomeUnknown Outcome = ""
	// OutcomeOK marks an action that did what it set out to do.
	OutcomeOK Outcome = "ok"
	// OutcomeError marks a failed attempt (typically retried later).
	OutcomeError Outcome = "error"
)

// Step is one attempted action in a raw execution trace, as reported
// by the host after a run. Dead ends and retries are all present; the
// sanitizer compacts them before storage.
type Step struct {
	Action  Action  `json:"action"`
	Outcome Outcome `json:"outcome,omitempty"`
}

// Unit is one remembered success: the task text that produced it, the
// sanitized trajectory that achieved it, and when it was recorded.
// Units are created only from runs the caller has certified
// successful; the engine never invents or mutates steps.
type Unit struct {
	ID         string
	Task       string
	Trajectory []Action
	CreatedAt  time.Time
}

// NewUnit builds a Unit for a certified-successful run.
func NewUnit(task string, trajectory []Action) Unit {
	return Unit{
		ID:         uuid.New().String(),
		Task:       task,
		Trajectory: trajectory,
		CreatedAt:  time.Now(),
	}
}

// unitJSON is the durable wire form. created_at is fractional unix
// seconds so stores written by other runtimes stay readable.
type unitJSON struct {
	ID         string   `json:"id,omitempty"`
	Task       string   `json:"task"`
	Trajectory []Action `json:"trajectory"`
	CreatedAt  float64  `json:"created_at"`
}

func (u Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(unitJSON{
		ID:         u.ID,
		Task:       u.Task,
		Trajectory: u.Trajectory,
		CreatedAt:  float64(u.CreatedAt.UnixNano()) / float64(time.Second),
	})
}

func (u *Unit) UnmarshalJSON(data []byte) error {
	var w unitJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	u.ID = w.ID
	u.Task = w.Task
	u.Trajectory = w.Trajectory
	u.CreatedAt = time.Unix(0, int64(w.CreatedAt*float64(time.Second)))
	return nil
}
