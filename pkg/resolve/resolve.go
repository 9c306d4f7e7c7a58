// Package resolve implements placement resolution: matching a job's resource
// criteria against the registry to pick the cluster and command it will run
// on. Resolution is read-only and first-match-wins in criteria order, never
// best-score.
package resolve

import (
	"context"
	"fmt"

	"github.com/awesomeDataTool/genie/pkg/gerr"
	"github.com/awesomeDataTool/genie/pkg/registry"
)

// Criteria is a job's resource selection request. Both criteria lists are
// ordered by caller preference: each tag-set is tried in turn and the first
// one that matches anything eligible wins. Criteria is immutable once the job
// is submitted.
type Criteria struct {
	ClusterCriteria []registry.TagSet
	CommandCriteria []registry.TagSet

	// Optional status overrides. Empty means the usable defaults
	// (UP for clusters, ACTIVE for commands).
	ClusterStatuses []registry.ClusterStatus
	CommandStatuses []registry.CommandStatus
}

// Placement is the resolved (cluster, command) pairing plus the launch
// configuration merged from both. Created once per job and immutable after.
type Placement struct {
	Cluster *registry.Cluster
	Command *registry.Command

	// Executable is the argv prefix job arguments are appended to.
	Executable []string
	// Env is the environment contributed by the placement.
	Env map[string]string
}

// Argv builds the full command line for the job.
func (p *Placement) Argv(jobArgs []string) []string {
	argv := make([]string, 0, len(p.Executable)+len(jobArgs))
	argv = append(argv, p.Executable...)
	argv = append(argv, jobArgs...)
	return argv
}

// Resolver computes placements against a registry. It holds no mutable state
// and is safe for use by many concurrent agents.
type Resolver struct {
	registry registry.Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(reg registry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Resolve picks the placement for the given criteria.
//
// Cluster dimension: the caller's cluster tag-sets are tried in order; the
// first one matching at least one eligible cluster fixes the candidate set.
// Command dimension: the caller's command tag-sets are tried in order against
// every candidate cluster (registration order), walking each cluster's
// commands in association order. The first hit wins.
func (r *Resolver) Resolve(ctx context.Context, criteria Criteria) (*Placement, error) {
	clusterStatuses := criteria.ClusterStatuses
	if len(clusterStatuses) == 0 {
		clusterStatuses = registry.UsableClusterStatuses
	}
	commandStatuses := criteria.CommandStatuses
	if len(commandStatuses) == 0 {
		commandStatuses = registry.UsableCommandStatuses
	}

	candidates, err := r.findCandidateClusters(ctx, criteria.ClusterCriteria, clusterStatuses)
	if err != nil {
		return nil, err
	}

	for _, commandTags := range criteria.CommandCriteria {
		for _, cluster := range candidates {
			commands, err := r.registry.ClusterCommands(ctx, cluster.ID, commandStatuses)
			if err != nil {
				return nil, fmt.Errorf("listing commands of cluster %s: %w", cluster.ID, err)
			}
			for _, command := range commands {
				if command.Tags.Superset(commandTags) {
					return newPlacement(cluster, command), nil
				}
			}
		}
	}

	return nil, gerr.New(gerr.CodeNoCommandMatch, fmt.Errorf(
		"%w: %d cluster(s) matched but no associated command satisfies any of %d command criteria",
		ErrNoCommandMatch, len(candidates), len(criteria.CommandCriteria)))
}

func (r *Resolver) findCandidateClusters(ctx context.Context, clusterCriteria []registry.TagSet, statuses []registry.ClusterStatus) ([]*registry.Cluster, error) {
	for _, clusterTags := range clusterCriteria {
		clusters, err := r.registry.FindClusters(ctx, statuses, clusterTags)
		if err != nil {
			return nil, fmt.Errorf("querying clusters for tags %v: %w", clusterTags.Strings(), err)
		}
		if len(clusters) > 0 {
			return clusters, nil
		}
	}

	return nil, gerr.New(gerr.CodeNoClusterMatch, fmt.Errorf(
		"%w: none of %d cluster criteria matched an eligible cluster",
		ErrNoClusterMatch, len(clusterCriteria)))
}

func newPlacement(cluster *registry.Cluster, command *registry.Command) *Placement {
	executable := make([]string, len(command.Executable))
	copy(executable, command.Executable)

	env := make(map[string]string, len(command.Env)+2)
	for k, v := range command.Env {
		env[k] = v
	}
	env["GENIE_CLUSTER_ID"] = cluster.ID
	env["GENIE_COMMAND_ID"] = command.ID

	return &Placement{
		Cluster:    cluster,
		Command:    command,
		Executable: executable,
		Env:        env,
	}
}
