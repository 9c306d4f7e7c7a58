package registry

import (
	"context"
	"sync"
)

// MemoryRegistry is an in-memory Registry used by tests and by local CLI runs
// seeded from a job file. Registration order is preserved: FindClusters
// returns clusters in the order they were added.
type MemoryRegistry struct {
	mu           sync.RWMutex
	clusterOrder []string
	clusters     map[string]*Cluster
	commands     map[string]*Command
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		clusters: make(map[string]*Cluster),
		commands: make(map[string]*Command),
	}
}

// AddCluster registers a cluster. Re-adding an ID overwrites the record but
// keeps its original position.
func (r *MemoryRegistry) AddCluster(c *Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clusters[c.ID]; !ok {
		r.clusterOrder = append(r.clusterOrder, c.ID)
	}
	r.clusters[c.ID] = c
}

// AddCommand registers a command.
func (r *MemoryRegistry) AddCommand(c *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[c.ID] = c
}

// FindClusters returns status-eligible clusters whose tags cover the given
// tag set, in registration order.
func (r *MemoryRegistry) FindClusters(ctx context.Context, statuses []ClusterStatus, tags TagSet) ([]*Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Cluster
	for _, id := range r.clusterOrder {
		c := r.clusters[id]
		if !clusterStatusIn(c.Status, statuses) {
			continue
		}
		if !c.Tags.Superset(tags) {
			continue
		}
		matches = append(matches, c)
	}
	return matches, nil
}

// ClusterCommands returns the cluster's status-eligible commands in
// association order. Dangling command IDs are skipped.
func (r *MemoryRegistry) ClusterCommands(ctx context.Context, clusterID string, statuses []CommandStatus) ([]*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clusters[clusterID]
	if !ok {
		return nil, ErrClusterNotFound
	}

	var commands []*Command
	for _, id := range c.CommandIDs {
		cmd, ok := r.commands[id]
		if !ok {
			continue
		}
		if !commandStatusIn(cmd.Status, statuses) {
			continue
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func clusterStatusIn(status ClusterStatus, statuses []ClusterStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func commandStatusIn(status CommandStatus, statuses []CommandStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Ensure MemoryRegistry implements Registry.
var _ Registry = (*MemoryRegistry)(nil)
