package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ProcessLauncher runs jobs as local subprocesses. The job's stdout and
// stderr are captured to stdout.log and stderr.log inside its working
// directory, which is also the process working directory.
type ProcessLauncher struct{}

// NewProcessLauncher creates a local subprocess launcher.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

// Launch starts the job process. The spec's working directory must already
// exist.
func (l *ProcessLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	stdout, err := os.Create(filepath.Join(spec.WorkDir, "stdout.log"))
	if err != nil {
		return nil, fmt.Errorf("creating stdout log: %w", err)
	}
	stderr, err := os.Create(filepath.Join(spec.WorkDir, "stderr.log"))
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("creating stderr log: %w", err)
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("starting %s: %w", spec.Argv[0], err)
	}

	return &localProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type localProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

// Wait blocks until the process exits and returns its exit code.
func (p *localProcess) Wait(ctx context.Context) (int, error) {
	err := p.cmd.Wait()
	p.stdout.Close()
	p.stderr.Close()

	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Kill sends SIGKILL to the process.
func (p *localProcess) Kill(ctx context.Context) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Ensure ProcessLauncher implements Launcher.
var _ Launcher = (*ProcessLauncher)(nil)
