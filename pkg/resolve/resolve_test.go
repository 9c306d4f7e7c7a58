package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/awesomeDataTool/genie/pkg/gerr"
	"github.com/awesomeDataTool/genie/pkg/registry"
)

// testRegistry mirrors a small production layout: one usable yarn cluster,
// one terminated twin, and a presto cluster, with a mix of command statuses.
func testRegistry() *registry.MemoryRegistry {
	reg := registry.NewMemoryRegistry()

	reg.AddCommand(&registry.Command{
		ID:         "cmd-hive",
		Status:     registry.CommandActive,
		Tags:       registry.NewTagSet("kind:hive"),
		Executable: []string{"hive", "-e"},
	})
	reg.AddCommand(&registry.Command{
		ID:         "cmd-spark",
		Status:     registry.CommandActive,
		Tags:       registry.NewTagSet("kind:spark"),
		Executable: []string{"spark-submit"},
		Env:        map[string]string{"SPARK_MAJOR_VERSION": "3"},
	})
	reg.AddCommand(&registry.Command{
		ID:     "cmd-spark-old",
		Status: registry.CommandInactive,
		Tags:   registry.NewTagSet("kind:spark"),
	})
	reg.AddCommand(&registry.Command{
		ID:         "cmd-presto",
		Status:     registry.CommandActive,
		Tags:       registry.NewTagSet("kind:presto"),
		Executable: []string{"presto-cli"},
	})

	reg.AddCluster(&registry.Cluster{
		ID:         "yarn-prod",
		Status:     registry.ClusterUp,
		Tags:       registry.NewTagSet("type:yarn", "env:prod"),
		CommandIDs: []string{"cmd-hive", "cmd-spark", "cmd-spark-old"},
	})
	reg.AddCluster(&registry.Cluster{
		ID:         "yarn-dr",
		Status:     registry.ClusterTerminated,
		Tags:       registry.NewTagSet("type:yarn"),
		CommandIDs: []string{"cmd-spark"},
	})
	reg.AddCluster(&registry.Cluster{
		ID:         "presto-prod",
		Status:     registry.ClusterUp,
		Tags:       registry.NewTagSet("type:presto"),
		CommandIDs: []string{"cmd-presto"},
	})

	return reg
}

func tagSets(sets ...[]string) []registry.TagSet {
	out := make([]registry.TagSet, 0, len(sets))
	for _, s := range sets {
		out = append(out, registry.NewTagSet(s...))
	}
	return out
}

func TestResolve_SkipsTerminatedCluster(t *testing.T) {
	resolver := NewResolver(testRegistry())

	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if placement.Cluster.ID != "yarn-prod" {
		t.Errorf("Expected yarn-prod (UP), got %s", placement.Cluster.ID)
	}
	if placement.Command.ID != "cmd-spark" {
		t.Errorf("Expected cmd-spark, got %s", placement.Command.ID)
	}
}

func TestResolve_FirstClusterCriterionWins(t *testing.T) {
	resolver := NewResolver(testRegistry())

	// The first tag-set matches nothing eligible, so the second fixes the
	// candidate set.
	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:flink"}, []string{"type:presto"}),
		CommandCriteria: tagSets([]string{"kind:presto"}),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if placement.Cluster.ID != "presto-prod" {
		t.Errorf("Expected presto-prod, got %s", placement.Cluster.ID)
	}
}

func TestResolve_AssociationOrderBreaksTies(t *testing.T) {
	resolver := NewResolver(testRegistry())

	// An empty command tag-set matches every active command; the first
	// association on the cluster must win.
	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets(nil),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if placement.Command.ID != "cmd-hive" {
		t.Errorf("Expected first-associated cmd-hive, got %s", placement.Command.ID)
	}
}

func TestResolve_EarlierRegisteredClusterWins(t *testing.T) {
	reg := testRegistry()
	reg.AddCluster(&registry.Cluster{
		ID:         "yarn-prod-2",
		Status:     registry.ClusterUp,
		Tags:       registry.NewTagSet("type:yarn"),
		CommandIDs: []string{"cmd-spark"},
	})
	resolver := NewResolver(reg)

	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if placement.Cluster.ID != "yarn-prod" {
		t.Errorf("Expected earlier-registered yarn-prod, got %s", placement.Cluster.ID)
	}
}

func TestResolve_CommandCriteriaOrderBeatsClusterOrder(t *testing.T) {
	resolver := NewResolver(testRegistry())

	// First command tag-set finds nothing on the candidate cluster; the
	// second matches. First-match-wins walks tag-sets in the caller's order.
	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:presto"}, []string{"kind:hive"}),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if placement.Command.ID != "cmd-hive" {
		t.Errorf("Expected cmd-hive, got %s", placement.Command.ID)
	}
}

func TestResolve_InactiveCommandIsIneligible(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.AddCommand(&registry.Command{
		ID:     "cmd-only",
		Status: registry.CommandInactive,
		Tags:   registry.NewTagSet("kind:spark"),
	})
	reg.AddCluster(&registry.Cluster{
		ID:         "c1",
		Status:     registry.ClusterUp,
		Tags:       registry.NewTagSet("type:yarn"),
		CommandIDs: []string{"cmd-only"},
	})
	resolver := NewResolver(reg)

	_, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if !errors.Is(err, ErrNoCommandMatch) {
		t.Errorf("Expected ErrNoCommandMatch, got %v", err)
	}
}

func TestResolve_NoClusterMatch(t *testing.T) {
	resolver := NewResolver(testRegistry())

	_, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:flink"}),
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if !errors.Is(err, ErrNoClusterMatch) {
		t.Fatalf("Expected ErrNoClusterMatch, got %v", err)
	}
	if !gerr.IsCode(err, gerr.CodeNoClusterMatch) {
		t.Errorf("Expected gerr code no_cluster_match, got %v", gerr.CodeOf(err))
	}
}

func TestResolve_NoCommandMatch(t *testing.T) {
	resolver := NewResolver(testRegistry())

	_, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:flink"}),
	})
	if !errors.Is(err, ErrNoCommandMatch) {
		t.Fatalf("Expected ErrNoCommandMatch, got %v", err)
	}
	if !gerr.IsCode(err, gerr.CodeNoCommandMatch) {
		t.Errorf("Expected gerr code no_command_match, got %v", gerr.CodeOf(err))
	}
}

func TestResolve_PlacementMergesLaunchConfig(t *testing.T) {
	resolver := NewResolver(testRegistry())

	placement, err := resolver.Resolve(context.Background(), Criteria{
		ClusterCriteria: tagSets([]string{"type:yarn"}),
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	argv := placement.Argv([]string{"--class", "Main"})
	want := []string{"spark-submit", "--class", "Main"}
	if len(argv) != len(want) {
		t.Fatalf("Expected argv %v, got %v", want, argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("Expected argv %v, got %v", want, argv)
		}
	}

	if placement.Env["SPARK_MAJOR_VERSION"] != "3" {
		t.Error("Command env should carry over into the placement")
	}
	if placement.Env["GENIE_CLUSTER_ID"] != "yarn-prod" {
		t.Error("Placement env should identify the cluster")
	}
}

func TestResolve_EmptyClusterCriteria(t *testing.T) {
	resolver := NewResolver(testRegistry())

	_, err := resolver.Resolve(context.Background(), Criteria{
		CommandCriteria: tagSets([]string{"kind:spark"}),
	})
	if !errors.Is(err, ErrNoClusterMatch) {
		t.Errorf("Expected ErrNoClusterMatch for empty cluster criteria, got %v", err)
	}
}
