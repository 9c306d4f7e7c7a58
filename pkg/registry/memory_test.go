package registry

import (
	"context"
	"testing"
)

func seededRegistry() *MemoryRegistry {
	reg := NewMemoryRegistry()

	reg.AddCommand(&Command{
		ID:         "cmd-hive",
		Name:       "hive",
		Status:     CommandActive,
		Tags:       NewTagSet("kind:hive"),
		Executable: []string{"hive", "-e"},
	})
	reg.AddCommand(&Command{
		ID:         "cmd-spark",
		Name:       "spark-submit",
		Status:     CommandActive,
		Tags:       NewTagSet("kind:spark"),
		Executable: []string{"spark-submit"},
	})
	reg.AddCommand(&Command{
		ID:     "cmd-legacy",
		Name:   "legacy-spark",
		Status: CommandInactive,
		Tags:   NewTagSet("kind:spark"),
	})

	reg.AddCluster(&Cluster{
		ID:         "prod",
		Name:       "prod-yarn",
		Status:     ClusterUp,
		Tags:       NewTagSet("type:yarn", "env:prod"),
		CommandIDs: []string{"cmd-hive", "cmd-spark", "cmd-legacy"},
	})
	reg.AddCluster(&Cluster{
		ID:     "dr",
		Name:   "dr-yarn",
		Status: ClusterTerminated,
		Tags:   NewTagSet("type:yarn"),
	})

	return reg
}

func TestMemoryRegistry_FindClustersFiltersStatusAndTags(t *testing.T) {
	reg := seededRegistry()
	ctx := context.Background()

	clusters, err := reg.FindClusters(ctx, UsableClusterStatuses, NewTagSet("type:yarn"))
	if err != nil {
		t.Fatalf("FindClusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].ID != "prod" {
		t.Errorf("Expected prod, got %s", clusters[0].ID)
	}

	clusters, err = reg.FindClusters(ctx, UsableClusterStatuses, NewTagSet("type:yarn", "env:staging"))
	if err != nil {
		t.Fatalf("FindClusters failed: %v", err)
	}
	if len(clusters) != 0 {
		t.Errorf("Expected no clusters for unmatched tags, got %d", len(clusters))
	}
}

func TestMemoryRegistry_FindClustersPreservesRegistrationOrder(t *testing.T) {
	reg := seededRegistry()
	reg.AddCluster(&Cluster{
		ID:     "prod-2",
		Status: ClusterUp,
		Tags:   NewTagSet("type:yarn"),
	})

	clusters, err := reg.FindClusters(context.Background(),
		[]ClusterStatus{ClusterUp, ClusterTerminated}, NewTagSet("type:yarn"))
	if err != nil {
		t.Fatalf("FindClusters failed: %v", err)
	}
	want := []string{"prod", "dr", "prod-2"}
	if len(clusters) != len(want) {
		t.Fatalf("Expected %d clusters, got %d", len(want), len(clusters))
	}
	for i, id := range want {
		if clusters[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, clusters[i].ID)
		}
	}
}

func TestMemoryRegistry_ClusterCommandsKeepsAssociationOrder(t *testing.T) {
	reg := seededRegistry()

	commands, err := reg.ClusterCommands(context.Background(), "prod", UsableCommandStatuses)
	if err != nil {
		t.Fatalf("ClusterCommands failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 active commands, got %d", len(commands))
	}
	if commands[0].ID != "cmd-hive" || commands[1].ID != "cmd-spark" {
		t.Errorf("Association order broken: got %s, %s", commands[0].ID, commands[1].ID)
	}
}

func TestMemoryRegistry_ClusterCommandsUnknownCluster(t *testing.T) {
	reg := seededRegistry()

	if _, err := reg.ClusterCommands(context.Background(), "nope", UsableCommandStatuses); err != ErrClusterNotFound {
		t.Errorf("Expected ErrClusterNotFound, got %v", err)
	}
}

func TestTagSet_Superset(t *testing.T) {
	set := NewTagSet("a", "b", "c")

	if !set.Superset(NewTagSet("a", "c")) {
		t.Error("Expected superset of subset")
	}
	if !set.Superset(NewTagSet()) {
		t.Error("Empty set is a subset of everything")
	}
	if set.Superset(NewTagSet("a", "d")) {
		t.Error("Should not be superset when a tag is missing")
	}
}
