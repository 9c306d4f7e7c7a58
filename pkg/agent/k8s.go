package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/ptr"
)

// jobIDLabel marks the Kubernetes Jobs this launcher owns.
const jobIDLabel = "genie.job-id"

// K8sLauncher runs jobs as Kubernetes batch Jobs. Unlike the local and
// Docker launchers it cannot populate the working directory with log files;
// the job's output stays with the pod and the working directory only carries
// the execution record.
type K8sLauncher struct {
	client    *kubernetes.Clientset
	namespace string
	image     string
}

// NewK8sLauncher creates a launcher that runs every job in the given image.
// Client configuration prefers in-cluster credentials and falls back to
// KUBECONFIG or ~/.kube/config.
func NewK8sLauncher(namespace, image string) (*K8sLauncher, error) {
	config, err := restConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return &K8sLauncher{client: clientset, namespace: namespace, image: image}, nil
}

func restConfig() (*rest.Config, error) {
	if config, err := rest.InClusterConfig(); err == nil {
		return config, nil
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

// Launch creates the batch Job for this execution.
func (l *K8sLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	jobName := "genie-" + spec.JobID
	if len(jobName) > 63 {
		jobName = jobName[:63]
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:   jobName,
			Labels: map[string]string{jobIDLabel: spec.JobID},
		},
		Spec: batchv1.JobSpec{
			Parallelism:  ptr.To(int32(1)),
			Completions:  ptr.To(int32(1)),
			BackoffLimit: ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{jobIDLabel: spec.JobID},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    "main",
							Image:   l.image,
							Command: spec.Argv,
							Env:     envMapToEnvVars(spec.Env),
						},
					},
				},
			},
		},
	}

	created, err := l.client.BatchV1().Jobs(l.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes job: %w", err)
	}

	return &k8sProcess{client: l.client, namespace: l.namespace, jobName: created.Name}, nil
}

type k8sProcess struct {
	client    *kubernetes.Clientset
	namespace string
	jobName   string
}

// Wait polls the Job until it completes or fails. The exit code comes from
// the terminated container status when available.
func (p *k8sProcess) Wait(ctx context.Context) (int, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-ticker.C:
			job, err := p.client.BatchV1().Jobs(p.namespace).Get(ctx, p.jobName, metav1.GetOptions{})
			if err != nil {
				return -1, fmt.Errorf("getting kubernetes job: %w", err)
			}

			for _, condition := range job.Status.Conditions {
				if condition.Status != corev1.ConditionTrue {
					continue
				}
				switch condition.Type {
				case batchv1.JobComplete:
					return 0, nil
				case batchv1.JobFailed:
					return p.exitCode(ctx), nil
				}
			}
		}
	}
}

// Kill deletes the Job, which tears down its pods.
func (p *k8sProcess) Kill(ctx context.Context) error {
	deletePolicy := metav1.DeletePropagationForeground
	return p.client.BatchV1().Jobs(p.namespace).Delete(ctx, p.jobName, metav1.DeleteOptions{
		PropagationPolicy: &deletePolicy,
	})
}

func (p *k8sProcess) exitCode(ctx context.Context) int {
	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", p.jobName),
	})
	if err != nil || len(pods.Items) == 0 {
		return 1
	}

	for _, status := range pods.Items[0].Status.ContainerStatuses {
		if status.State.Terminated != nil {
			return int(status.State.Terminated.ExitCode)
		}
	}
	return 1
}

func envMapToEnvVars(envMap map[string]string) []corev1.EnvVar {
	if envMap == nil {
		return nil
	}

	envVars := make([]corev1.EnvVar, 0, len(envMap))
	for k, v := range envMap {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	return envVars
}

// Ensure K8sLauncher implements Launcher.
var _ Launcher = (*K8sLauncher)(nil)
