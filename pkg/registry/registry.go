package registry

import (
	"context"
	"errors"
)

// ErrClusterNotFound is returned when a cluster ID does not exist.
var ErrClusterNotFound = errors.New("registry: cluster not found")

// Registry is the read capability the resolution engine queries. Both methods
// must be safe for concurrent use; the core never writes through it.
type Registry interface {
	// FindClusters returns clusters whose status is in statuses and whose
	// tag set is a superset of tags, in registration order.
	FindClusters(ctx context.Context, statuses []ClusterStatus, tags TagSet) ([]*Cluster, error)

	// ClusterCommands returns the commands associated with a cluster whose
	// status is in statuses, in association order.
	ClusterCommands(ctx context.Context, clusterID string, statuses []CommandStatus) ([]*Command, error)
}
