package models

import "time"

// SyncStep names one step of a sync run.
type SyncStep string

const (
	StepDrain SyncStep = "drain"
	StepPush  SyncStep = "push"
	StepPull  SyncStep = "pull"
	StepMerge SyncStep = "merge"
)

// StepOutcome aggregates the result of one sync step. Err is nil when the
// step completed without a terminal failure.
type StepOutcome struct {
	Step      SyncStep `json:"step"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Err       error    `json:"-"`
	Error     string   `json:"error,omitempty"`
}

// Fail records err as the step's terminal failure.
func (o *StepOutcome) Fail(err error) {
	if err == nil {
		return
	}
	o.Err = err
	o.Error = err.Error()
}

// SyncReport is the single result of a sync run. Steps are attempted
// independently; each one reports its own counts and error.
type SyncReport struct {
	ProjectID  string        `json:"projectId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Offline    bool          `json:"offline,omitempty"`
	Hint       string        `json:"hint,omitempty"`
	Steps      []StepOutcome `json:"steps"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// Fail records a precondition failure that prevented the steps from running.
func (r *SyncReport) Fail(err error) {
	if err == nil {
		return
	}
	r.Err = err
	r.Error = err.Error()
}

// Step returns the outcome of step s, or nil when the step was not run.
func (r *SyncReport) Step(s SyncStep) *StepOutcome {
	for i := range r.Steps {
		if r.Steps[i].Step == s {
			return &r.Steps[i]
		}
	}
	return nil
}

// FirstErr returns the run error, or else the error of the first failed
// step.
func (r *SyncReport) FirstErr() error {
	if r.Err != nil {
		return r.Err
	}
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// OK reports whether the run and all of its steps completed without error.
func (r *SyncReport) OK() bool {
	return r.FirstErr() == nil
}

// DrainOutcome is the result of replaying one project's queue.
type DrainOutcome struct {
	ProjectID string `json:"projectId"`
	Applied   int    `json:"applied"`
	Remaining int    `json:"remaining"`
	// Held is set when replay stopped at an intent whose submission awaits
	// manual conflict resolution.
	Held         bool            `json:"held,omitempty"`
	FailedIntent *MutationIntent `json:"failedIntent,omitempty"`
	Err          error           `json:"-"`
	Error        string          `json:"error,omitempty"`
}

// Fail records err as the reason the drain stopped.
func (o *DrainOutcome) Fail(err error) {
	if err == nil {
		return
	}
	o.Err = err
	o.Error = err.Error()
}

// ImportReport summarizes how a verified transfer payload was merged.
type ImportReport struct {
	ProjectID       string `json:"projectId"`
	SourceProjectID string `json:"sourceProjectId"`
	Received        int    `json:"received"`
	Inserted        int    `json:"inserted"`
	Updated         int    `json:"updated"`
	Unchanged       int    `json:"unchanged"`
	Conflicts       int    `json:"conflicts"`
	Skipped         int    `json:"skipped"`
}
