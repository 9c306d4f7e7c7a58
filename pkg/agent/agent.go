// Package agent drives a job through its lifecycle: resolve a placement,
// reserve an identifier, launch the process, monitor it, and finalize.
// Finalizing is the single funnel every exit path passes through, so output
// archival and identifier release happen exactly once no matter how the job
// ended. One agent call owns one job; concurrent jobs share nothing beyond
// the registry and the identifier allocator.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awesomeDataTool/genie/pkg/archive"
	"github.com/awesomeDataTool/genie/pkg/gerr"
	"github.com/awesomeDataTool/genie/pkg/glog"
	"github.com/awesomeDataTool/genie/pkg/jobid"
	"github.com/awesomeDataTool/genie/pkg/resolve"
)

// Agent executes jobs. Construct with NewAgent; the zero value is not usable.
type Agent struct {
	resolver       *resolve.Resolver
	allocator      jobid.Allocator
	launcher       Launcher
	archiver       archive.Archiver
	log            *glog.Logger
	baseDir        string
	archiveTimeout time.Duration
	killTimeout    time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithLauncher sets the launcher. Defaults to the local subprocess launcher.
func WithLauncher(l Launcher) Option {
	return func(a *Agent) { a.launcher = l }
}

// WithArchiver enables output archival through the given archiver.
func WithArchiver(ar archive.Archiver) Option {
	return func(a *Agent) { a.archiver = ar }
}

// WithBaseDir sets the directory job working directories are created under.
func WithBaseDir(dir string) Option {
	return func(a *Agent) { a.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(log *glog.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithArchiveTimeout bounds the archival call during finalize. A timeout is
// an archival failure, not an agent failure.
func WithArchiveTimeout(d time.Duration) Option {
	return func(a *Agent) { a.archiveTimeout = d }
}

// NewAgent creates an agent over the given resolver and allocator.
func NewAgent(resolver *resolve.Resolver, allocator jobid.Allocator, opts ...Option) *Agent {
	cwd, _ := os.Getwd()
	a := &Agent{
		resolver:       resolver,
		allocator:      allocator,
		launcher:       NewProcessLauncher(),
		log:            glog.NewDefault(),
		baseDir:        cwd,
		archiveTimeout: 5 * time.Minute,
		killTimeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SubmitRequest describes one job to execute.
type SubmitRequest struct {
	Name        string
	RequestedID string // empty means generate one
	Criteria    resolve.Criteria
	Args        []string          // appended to the resolved command's executable
	Env         map[string]string // overlays the placement environment

	// ArchiveTarget is the URI the working directory is archived to after
	// execution. Empty disables archival.
	ArchiveTarget string
}

// Report is the final account of one job attempt.
type Report struct {
	JobID      string
	Outcome    Outcome
	ExitCode   *int
	StartedAt  *time.Time
	FinishedAt *time.Time
	WorkDir    string

	// Err is the terminal error for a FAILED outcome.
	Err error
	// ArchivalWarning carries an archival failure. It never changes the
	// outcome classification.
	ArchivalWarning error
}

// Execute runs one job to completion and returns its report. Cancelling ctx
// after launch terminates the job process and classifies the attempt as
// KILLED; before launch it aborts the attempt. The returned error mirrors
// Report.Err: non-nil exactly when the outcome is FAILED.
func (a *Agent) Execute(ctx context.Context, req SubmitRequest) (report *Report, err error) {
	exec := &execution{Name: req.Name, State: StateCreated}
	log := a.log.With("job", req.Name)

	exec.State = StateResolving
	placement, rerr := a.resolver.Resolve(ctx, req.Criteria)
	if rerr != nil {
		exec.fail(rerr)
		log.Error("placement resolution failed", "error", rerr)
		return reportOf(exec, nil), rerr
	}
	exec.ClusterID = placement.Cluster.ID
	exec.CommandID = placement.Command.ID
	log.Info("placement resolved", "cluster", placement.Cluster.ID, "command", placement.Command.ID)

	exec.State = StateReserving
	id, rerr := a.allocator.Reserve(ctx, req.RequestedID)
	if rerr != nil {
		exec.fail(rerr)
		log.Error("job id reservation failed", "error", rerr)
		return reportOf(exec, nil), rerr
	}
	exec.JobID = id
	log = log.With("id", id)

	// The reservation is held: from here every exit path, including a
	// panic, funnels through finalize so archival and the used-release of
	// the identifier run exactly once.
	defer func() {
		warning := a.finalize(exec, req.ArchiveTarget, log)
		report = reportOf(exec, warning)
		err = exec.execErr
	}()

	a.runJob(ctx, exec, placement, req, log)
	return nil, nil
}

func (a *Agent) runJob(ctx context.Context, exec *execution, placement *resolve.Placement, req SubmitRequest, log *glog.Logger) {
	exec.State = StateLaunching

	workDir := filepath.Join(a.baseDir, ".genie", "jobs", exec.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		exec.fail(gerr.New(gerr.CodeLaunchFailed, fmt.Errorf("creating work dir: %w", err)))
		return
	}
	exec.WorkDir = workDir

	env := make(map[string]string, len(placement.Env)+len(req.Env)+2)
	for k, v := range placement.Env {
		env[k] = v
	}
	for k, v := range req.Env {
		env[k] = v
	}
	env["GENIE_JOB_ID"] = exec.JobID
	env["GENIE_JOB_DIR"] = workDir

	spec := LaunchSpec{
		JobID:   exec.JobID,
		Argv:    placement.Argv(req.Args),
		Env:     env,
		WorkDir: workDir,
	}
	exec.Argv = spec.Argv

	now := time.Now()
	exec.StartedAt = &now

	proc, err := a.launcher.Launch(ctx, spec)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation raced the launch; nothing is running.
			exec.Outcome = OutcomeKilled
			return
		}
		exec.fail(gerr.New(gerr.CodeLaunchFailed, err))
		return
	}
	log.Info("job launched", "argv", strings.Join(spec.Argv, " "))

	exec.State = StateMonitoring
	a.monitor(ctx, exec, proc, log)
}

type waitResult struct {
	code int
	err  error
}

// monitor blocks until the process terminates or ctx is cancelled. On
// cancellation the process is killed before monitoring returns, so finalize
// never runs concurrently with a live job process.
func (a *Agent) monitor(ctx context.Context, exec *execution, proc Process, log *glog.Logger) {
	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := proc.Wait(context.Background())
		waitCh <- waitResult{code: code, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Warn("cancellation requested, terminating job process")
		killCtx, cancel := context.WithTimeout(context.Background(), a.killTimeout)
		defer cancel()
		if err := proc.Kill(killCtx); err != nil {
			log.Error("failed to terminate job process", "error", err)
		}
		res := <-waitCh
		if res.err == nil {
			exec.ExitCode = &res.code
		}
		exec.Outcome = OutcomeKilled

	case res := <-waitCh:
		if res.err != nil {
			exec.fail(gerr.New(gerr.CodeLaunchFailed, res.err))
			return
		}
		exec.ExitCode = &res.code
		if res.code == 0 {
			exec.Outcome = OutcomeSucceeded
		} else {
			exec.fail(fmt.Errorf("job exited with code %d", res.code))
		}
	}
}

// finalize archives the working directory, releases the identifier as used
// and records the terminal state. It runs on a fresh context: finalize is not
// cancellable, it completes or reports an error, never abandons mid-way.
func (a *Agent) finalize(exec *execution, target string, log *glog.Logger) error {
	exec.State = StateFinalizing
	now := time.Now()
	exec.FinishedAt = &now

	if exec.Outcome == "" {
		// Reached via panic: nothing classified the attempt.
		exec.fail(fmt.Errorf("job aborted before an outcome was recorded"))
	}

	ctx := context.Background()

	var warning error
	if exec.WorkDir != "" {
		a.writeSnapshot(exec, log)

		if a.archiver != nil && target != "" {
			archiveCtx, cancel := context.WithTimeout(ctx, a.archiveTimeout)
			warning = a.archiver.Archive(archiveCtx, exec.WorkDir, target)
			cancel()
			if warning != nil {
				log.Warn("archival failed", "target", target, "error", warning)
			} else {
				log.Info("output archived", "target", target)
			}
		}
	}

	// The identifier is used the moment execution was attempted, even if it
	// failed. Release errors are logged, not propagated: the outcome is
	// already decided.
	if err := a.allocator.Release(ctx, exec.JobID, jobid.OutcomeUsed); err != nil {
		log.Error("failed to release job identifier", "error", err)
	}

	exec.State = StateDone
	log.Info("job finished", "outcome", exec.Outcome)
	return warning
}

// writeSnapshot persists the execution record into the working directory so
// the archived copy carries the final lifecycle account.
func (a *Agent) writeSnapshot(exec *execution, log *glog.Logger) {
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		log.Error("failed to marshal execution record", "error", err)
		return
	}
	path := filepath.Join(exec.WorkDir, "execution.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error("failed to write execution record", "error", err)
	}
}

func reportOf(exec *execution, warning error) *Report {
	return &Report{
		JobID:           exec.JobID,
		Outcome:         exec.Outcome,
		ExitCode:        exec.ExitCode,
		StartedAt:       exec.StartedAt,
		FinishedAt:      exec.FinishedAt,
		WorkDir:         exec.WorkDir,
		Err:             exec.execErr,
		ArchivalWarning: warning,
	}
}
