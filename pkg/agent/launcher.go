package agent

import "context"

// LaunchSpec is the materialized launch configuration for one job: the merged
// placement argv and environment plus the job's working directory.
type LaunchSpec struct {
	JobID   string
	Argv    []string
	Env     map[string]string
	WorkDir string
}

// Process is a handle to a launched job.
type Process interface {
	// Wait blocks until the process reaches a terminal condition and
	// returns its exit code. The context only bounds the wait itself;
	// cancelling it does not kill the process.
	Wait(ctx context.Context) (int, error)

	// Kill terminates the process. Safe to call while Wait is blocked.
	Kill(ctx context.Context) error
}

// Launcher starts job processes. Implementations run the job as a local
// subprocess, a Docker container, or a Kubernetes Job.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}
