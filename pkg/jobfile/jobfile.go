// Package jobfile loads job definitions from genie.yaml files. A job file
// carries the submission request (criteria, arguments, archive target) and,
// for local runs, an optional inline registry seed.
package jobfile

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/awesomeDataTool/genie/pkg/registry"
	"github.com/awesomeDataTool/genie/pkg/resolve"
)

// Job is one parsed job definition.
type Job struct {
	Name          string            `mapstructure:"name"`
	ID            string            `mapstructure:"id"`
	Args          []string          `mapstructure:"args"`
	Env           map[string]string `mapstructure:"env"`
	ArchiveTarget string            `mapstructure:"archiveTarget"`
	Criteria      CriteriaSpec      `mapstructure:"criteria"`
	Registry      *RegistrySeed     `mapstructure:"registry"`
}

// CriteriaSpec is the job's ordered tag-set preferences.
type CriteriaSpec struct {
	Clusters [][]string `mapstructure:"clusters"`
	Commands [][]string `mapstructure:"commands"`
}

// RegistrySeed declares clusters and commands inline, for runs without a
// shared registry database.
type RegistrySeed struct {
	Clusters []ClusterSeed `mapstructure:"clusters"`
	Commands []CommandSeed `mapstructure:"commands"`
}

// ClusterSeed is an inline cluster record. Commands lists associated command
// IDs in association order.
type ClusterSeed struct {
	ID       string   `mapstructure:"id"`
	Name     string   `mapstructure:"name"`
	Status   string   `mapstructure:"status"`
	Tags     []string `mapstructure:"tags"`
	Commands []string `mapstructure:"commands"`
}

// CommandSeed is an inline command record.
type CommandSeed struct {
	ID         string            `mapstructure:"id"`
	Name       string            `mapstructure:"name"`
	Status     string            `mapstructure:"status"`
	Tags       []string          `mapstructure:"tags"`
	Executable []string          `mapstructure:"executable"`
	Env        map[string]string `mapstructure:"env"`
}

// Load parses a job file with an instance-scoped viper (no global state).
// When path is empty the conventional names are searched in the current
// directory.
func Load(path string) (*Job, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		found := false
		for _, name := range []string{"genie.yaml", "genie.yml", ".genie.yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no job file given and no genie.yaml in the current directory")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading job file %s: %w", v.ConfigFileUsed(), err)
	}

	var job Job
	if err := v.Unmarshal(&job); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", v.ConfigFileUsed(), err)
	}

	if len(job.Criteria.Commands) == 0 {
		return nil, fmt.Errorf("job file %s: criteria.commands must list at least one tag-set", v.ConfigFileUsed())
	}

	return &job, nil
}

// ResolveCriteria converts the file's tag lists into resolution criteria.
// A missing cluster criteria list becomes a single empty tag-set, matching
// any eligible cluster.
func (j *Job) ResolveCriteria() resolve.Criteria {
	clusters := make([]registry.TagSet, 0, len(j.Criteria.Clusters))
	for _, tags := range j.Criteria.Clusters {
		clusters = append(clusters, registry.NewTagSet(tags...))
	}
	if len(clusters) == 0 {
		clusters = append(clusters, registry.NewTagSet())
	}

	commands := make([]registry.TagSet, 0, len(j.Criteria.Commands))
	for _, tags := range j.Criteria.Commands {
		commands = append(commands, registry.NewTagSet(tags...))
	}

	return resolve.Criteria{
		ClusterCriteria: clusters,
		CommandCriteria: commands,
	}
}

// Build materializes the inline seed into an in-memory registry.
func (s *RegistrySeed) Build() *registry.MemoryRegistry {
	reg := registry.NewMemoryRegistry()
	for _, c := range s.Commands {
		reg.AddCommand(&registry.Command{
			ID:         c.ID,
			Name:       c.Name,
			Status:     registry.CommandStatus(c.Status),
			Tags:       registry.NewTagSet(c.Tags...),
			Executable: c.Executable,
			Env:        c.Env,
		})
	}
	for _, c := range s.Clusters {
		reg.AddCluster(&registry.Cluster{
			ID:         c.ID,
			Name:       c.Name,
			Status:     registry.ClusterStatus(c.Status),
			Tags:       registry.NewTagSet(c.Tags...),
			CommandIDs: c.Commands,
		})
	}
	return reg
}
