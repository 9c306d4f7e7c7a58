package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/awesomeDataTool/genie/pkg/agent"
	"github.com/awesomeDataTool/genie/pkg/archive"
	"github.com/awesomeDataTool/genie/pkg/config"
	"github.com/awesomeDataTool/genie/pkg/db"
	"github.com/awesomeDataTool/genie/pkg/glog"
	"github.com/awesomeDataTool/genie/pkg/jobfile"
	"github.com/awesomeDataTool/genie/pkg/jobid"
	"github.com/awesomeDataTool/genie/pkg/kv"
	"github.com/awesomeDataTool/genie/pkg/registry"
	"github.com/awesomeDataTool/genie/pkg/resolve"
)

var (
	jobFilePath   string
	requestedID   string
	archiveTarget string
)

// runCmd executes one job end to end
var runCmd = &cobra.Command{
	Use:   "run [-- extra args]",
	Short: "Run a job defined in a genie.yaml job file",
	Long: `Run loads a job definition, resolves its placement, reserves a job
identifier and supervises execution. Extra arguments after -- are appended
to the job's argument list.`,
	RunE: run,
}

func init() {
	runCmd.Flags().StringVarP(&jobFilePath, "file", "f", "", "job file (default: genie.yaml in the current directory)")
	runCmd.Flags().StringVar(&requestedID, "id", "", "requested job identifier (overrides the job file)")
	runCmd.Flags().StringVar(&archiveTarget, "archive-target", "", "archive target URI (overrides the job file)")
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	logger := glog.NewDefault()
	if verbose {
		logger = glog.NewVerbose()
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Print(log.Printf)
	}

	job, err := jobfile.Load(jobFilePath)
	if err != nil {
		return err
	}
	if requestedID != "" {
		job.ID = requestedID
	}
	if archiveTarget != "" {
		job.ArchiveTarget = archiveTarget
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, cleanup, err := buildRegistry(ctx, cfg, job)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithArchiveTimeout(time.Duration(cfg.ArchiveTimeout) * time.Second),
	}
	if cfg.BaseDir != "" {
		opts = append(opts, agent.WithBaseDir(cfg.BaseDir))
	}

	launcher, err := buildLauncher(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, agent.WithLauncher(launcher))

	archiver, err := buildArchiver(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, agent.WithArchiver(archiver))

	ag := agent.NewAgent(resolve.NewResolver(reg), jobid.NewKVAllocator(store), opts...)

	report, _ := ag.Execute(ctx, agent.SubmitRequest{
		Name:          job.Name,
		RequestedID:   job.ID,
		Criteria:      job.ResolveCriteria(),
		Args:          append(job.Args, args...),
		Env:           job.Env,
		ArchiveTarget: job.ArchiveTarget,
	})
	printReport(report)

	if report.Outcome != agent.OutcomeSucceeded {
		// The report already carries the failure detail.
		cmd.SilenceUsage = true
		return fmt.Errorf("job finished with outcome %s", report.Outcome)
	}
	return nil
}

func buildRegistry(ctx context.Context, cfg *config.EnvConfig, job *jobfile.Job) (registry.Registry, func(), error) {
	if cfg.Registry == config.RegistryPostgres {
		database, err := db.New(ctx, db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to registry database: %w", err)
		}
		return registry.NewBunRegistry(database), func() { database.Close() }, nil
	}

	if job.Registry == nil {
		return nil, nil, fmt.Errorf("GENIE_REGISTRY=inline requires a registry section in the job file")
	}
	return job.Registry.Build(), func() {}, nil
}

func buildStore(cfg *config.EnvConfig) (kv.Store, error) {
	if cfg.ValkeyAddr == "" {
		return kv.NewMemoryStore(), nil
	}
	store, err := kv.NewValkeyStore(kv.ValkeyConfig{
		Addr:     cfg.ValkeyAddr,
		Password: cfg.ValkeyPassword,
		DB:       cfg.ValkeyDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey: %w", err)
	}
	return store, nil
}

func buildLauncher(cfg *config.EnvConfig) (agent.Launcher, error) {
	switch cfg.Launcher {
	case config.LauncherDocker:
		return agent.NewDockerLauncher(cfg.DockerImage)
	case config.LauncherK8s:
		return agent.NewK8sLauncher(cfg.K8sNamespace, cfg.K8sImage)
	default:
		return agent.NewProcessLauncher(), nil
	}
}

func buildArchiver(cfg *config.EnvConfig) (archive.Archiver, error) {
	if cfg.S3Endpoint == "" {
		return archive.NewFileArchiver(), nil
	}
	return archive.NewS3Archiver(archive.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
}

func printReport(report *agent.Report) {
	fmt.Printf("job id:   %s\n", report.JobID)
	fmt.Printf("outcome:  %s\n", report.Outcome)
	if report.ExitCode != nil {
		fmt.Printf("exit:     %d\n", *report.ExitCode)
	}
	if report.WorkDir != "" {
		fmt.Printf("work dir: %s\n", report.WorkDir)
	}
	if report.Err != nil {
		fmt.Printf("error:    %v\n", report.Err)
	}
	if report.ArchivalWarning != nil {
		fmt.Printf("warning:  archival failed: %v\n", report.ArchivalWarning)
	}
}
