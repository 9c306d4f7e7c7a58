// Package registry defines the cluster/command entity model and the read-only
// query capability the execution core consumes. Record ownership (CRUD, the
// REST surface, persistence schema management) lives outside this module; the
// core only ever asks "which eligible entities carry at least these tags".
package registry

import (
	"encoding/json"
	"sort"
)

// ClusterStatus is the lifecycle status of a cluster.
type ClusterStatus string

const (
	ClusterUp           ClusterStatus = "UP"
	ClusterOutOfService ClusterStatus = "OUT_OF_SERVICE"
	ClusterTerminated   ClusterStatus = "TERMINATED"
)

// CommandStatus is the lifecycle status of a command.
type CommandStatus string

const (
	CommandActive     CommandStatus = "ACTIVE"
	CommandDeprecated CommandStatus = "DEPRECATED"
	CommandInactive   CommandStatus = "INACTIVE"
)

// UsableClusterStatuses is the default status filter for cluster selection.
var UsableClusterStatuses = []ClusterStatus{ClusterUp}

// UsableCommandStatuses is the default status filter for command selection.
var UsableCommandStatuses = []CommandStatus{CommandActive}

// TagSet is a set of unique, unordered string tags.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from the given tags, dropping duplicates.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// Contains reports whether tag is a member of the set.
func (t TagSet) Contains(tag string) bool {
	_, ok := t[tag]
	return ok
}

// Superset reports whether every tag in other is also in t.
// An empty or nil other is a subset of everything.
func (t TagSet) Superset(other TagSet) bool {
	for tag := range other {
		if !t.Contains(tag) {
			return false
		}
	}
	return true
}

// Strings returns the tags as a sorted slice.
func (t TagSet) Strings() []string {
	tags := make([]string, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MarshalJSON encodes the set as a sorted array.
func (t TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Strings())
}

// UnmarshalJSON decodes the set from an array.
func (t *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*t = NewTagSet(tags...)
	return nil
}

// Cluster is an execution environment a job can be placed on.
// CommandIDs is ordered: association order is the tie-break when several
// commands on a cluster satisfy the same criteria tag-set.
type Cluster struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     ClusterStatus `json:"status"`
	Tags       TagSet        `json:"tags"`
	CommandIDs []string      `json:"command_ids"`
}

// Command is a launchable program definition. Executable is the argv prefix
// the job's own arguments are appended to.
type Command struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     CommandStatus     `json:"status"`
	Tags       TagSet            `json:"tags"`
	Executable []string          `json:"executable"`
	Env        map[string]string `json:"env,omitempty"`
}
