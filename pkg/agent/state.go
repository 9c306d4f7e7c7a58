package agent

import "time"

// State is a position in the job lifecycle state machine.
type State string

const (
	StateCreated    State = "CREATED"
	StateResolving  State = "RESOLVING"
	StateReserving  State = "RESERVING"
	StateLaunching  State = "LAUNCHING"
	StateMonitoring State = "MONITORING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
)

// Outcome is the terminal classification of a job attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeKilled    Outcome = "KILLED"
)

// execution is one job's lifecycle record. It is owned exclusively by the
// agent call driving the job and is never shared across jobs.
type execution struct {
	JobID      string     `json:"job_id"`
	Name       string     `json:"name,omitempty"`
	State      State      `json:"state"`
	ClusterID  string     `json:"cluster_id,omitempty"`
	CommandID  string     `json:"command_id,omitempty"`
	Argv       []string   `json:"argv,omitempty"`
	WorkDir    string     `json:"work_dir,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty"`

	execErr error
}

func (e *execution) fail(err error) {
	e.Outcome = OutcomeFailed
	e.execErr = err
	if err != nil {
		e.Error = err.Error()
	}
}
