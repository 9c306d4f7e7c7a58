package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// containerWorkDir is where the job's working directory is mounted inside
// the container.
const containerWorkDir = "/genie/job"

// DockerLauncher runs jobs in containers on the host Docker daemon. The
// job's working directory is bind-mounted into the container; logs are
// demultiplexed into stdout.log and stderr.log after the container stops.
type DockerLauncher struct {
	client *client.Client
	image  string
}

// NewDockerLauncher creates a launcher that runs every job in the given
// image. Client configuration comes from the environment (DOCKER_HOST etc.).
func NewDockerLauncher(image string) (*DockerLauncher, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerLauncher{client: dockerClient, image: image}, nil
}

// Launch creates and starts the job container.
func (l *DockerLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	resp, err := l.client.ContainerCreate(ctx,
		&container.Config{
			Image:      l.image,
			Cmd:        spec.Argv,
			Env:        env,
			WorkingDir: containerWorkDir,
			Labels:     map[string]string{"genie.job-id": spec.JobID},
		},
		&container.HostConfig{
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: spec.WorkDir,
				Target: containerWorkDir,
			}},
		},
		nil, nil, "genie-"+spec.JobID)
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}

	if err := l.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		removeCtx := context.WithoutCancel(ctx)
		_ = l.client.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("starting container: %w", err)
	}

	return &dockerProcess{client: l.client, containerID: resp.ID, workDir: spec.WorkDir}, nil
}

type dockerProcess struct {
	client      *client.Client
	containerID string
	workDir     string
}

// Wait blocks until the container stops, captures its logs into the working
// directory and removes the container.
func (p *dockerProcess) Wait(ctx context.Context) (int, error) {
	statusCh, errCh := p.client.ContainerWait(ctx, p.containerID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case err := <-errCh:
		return -1, fmt.Errorf("waiting for container: %w", err)
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	// Log capture and removal run even when the wait context was cancelled
	// by an agent shutdown.
	cleanupCtx := context.WithoutCancel(ctx)
	if err := p.captureLogs(cleanupCtx); err != nil {
		return exitCode, err
	}
	_ = p.client.ContainerRemove(cleanupCtx, p.containerID, container.RemoveOptions{Force: true})

	return exitCode, nil
}

// Kill terminates the container.
func (p *dockerProcess) Kill(ctx context.Context) error {
	return p.client.ContainerKill(ctx, p.containerID, "SIGKILL")
}

func (p *dockerProcess) captureLogs(ctx context.Context) error {
	logs, err := p.client.ContainerLogs(ctx, p.containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fmt.Errorf("reading container logs: %w", err)
	}
	defer logs.Close()

	stdout, err := os.Create(filepath.Join(p.workDir, "stdout.log"))
	if err != nil {
		return err
	}
	defer stdout.Close()

	stderr, err := os.Create(filepath.Join(p.workDir, "stderr.log"))
	if err != nil {
		return err
	}
	defer stderr.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return fmt.Errorf("demultiplexing container logs: %w", err)
	}
	return nil
}

// Ensure DockerLauncher implements Launcher.
var _ Launcher = (*DockerLauncher)(nil)
