package registry

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ClusterRow is the persisted form of a Cluster. Registration order is the
// created_at timestamp; tags are a Postgres text array so superset filtering
// happens in the database with the @> operator.
type ClusterRow struct {
	bun.BaseModel `bun:"table:clusters,alias:cl"`

	ID        string    `bun:",pk"`
	Name      string    `bun:",notnull"`
	Status    string    `bun:",notnull"`
	Tags      []string  `bun:",array"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// CommandRow is the persisted form of a Command.
type CommandRow struct {
	bun.BaseModel `bun:"table:commands,alias:co"`

	ID         string            `bun:",pk"`
	Name       string            `bun:",notnull"`
	Status     string            `bun:",notnull"`
	Tags       []string          `bun:",array"`
	Executable []string          `bun:",array"`
	Env        map[string]string `bun:",type:jsonb,nullzero"`
	CreatedAt  time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
}

// ClusterCommandRow is the ordered cluster-command association.
type ClusterCommandRow struct {
	bun.BaseModel `bun:"table:cluster_commands,alias:cc"`

	ClusterID string `bun:",pk"`
	CommandID string `bun:",pk"`
	Position  int    `bun:",notnull"`
}

// BunRegistry implements Registry against the Postgres tables owned by the
// record-management service. It only reads.
type BunRegistry struct {
	db *bun.DB
}

// NewBunRegistry creates a registry backed by the given database handle.
func NewBunRegistry(db *bun.DB) *BunRegistry {
	return &BunRegistry{db: db}
}

// FindClusters returns status-eligible clusters whose tags cover the given
// tag set, ordered by registration time.
func (r *BunRegistry) FindClusters(ctx context.Context, statuses []ClusterStatus, tags TagSet) ([]*Cluster, error) {
	var rows []ClusterRow

	q := r.db.NewSelect().
		Model(&rows).
		Where("cl.status IN (?)", bun.In(clusterStatusStrings(statuses))).
		Order("cl.created_at ASC", "cl.id ASC")

	if len(tags) > 0 {
		q = q.Where("cl.tags @> ?", pgdialect.Array(tags.Strings()))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	clusters := make([]*Cluster, 0, len(rows))
	for _, row := range rows {
		commandIDs, err := r.commandIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, &Cluster{
			ID:         row.ID,
			Name:       row.Name,
			Status:     ClusterStatus(row.Status),
			Tags:       NewTagSet(row.Tags...),
			CommandIDs: commandIDs,
		})
	}
	return clusters, nil
}

// ClusterCommands returns the cluster's status-eligible commands in
// association (position) order.
func (r *BunRegistry) ClusterCommands(ctx context.Context, clusterID string, statuses []CommandStatus) ([]*Command, error) {
	exists, err := r.db.NewSelect().
		Model((*ClusterRow)(nil)).
		Where("cl.id = ?", clusterID).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrClusterNotFound
	}

	var rows []CommandRow
	err = r.db.NewSelect().
		Model(&rows).
		Join("JOIN cluster_commands AS cc ON cc.command_id = co.id").
		Where("cc.cluster_id = ?", clusterID).
		Where("co.status IN (?)", bun.In(commandStatusStrings(statuses))).
		OrderExpr("cc.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	commands := make([]*Command, 0, len(rows))
	for _, row := range rows {
		commands = append(commands, &Command{
			ID:         row.ID,
			Name:       row.Name,
			Status:     CommandStatus(row.Status),
			Tags:       NewTagSet(row.Tags...),
			Executable: row.Executable,
			Env:        row.Env,
		})
	}
	return commands, nil
}

func (r *BunRegistry) commandIDs(ctx context.Context, clusterID string) ([]string, error) {
	var rows []ClusterCommandRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("cc.cluster_id = ?", clusterID).
		OrderExpr("cc.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CommandID)
	}
	return ids, nil
}

func clusterStatusStrings(statuses []ClusterStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func commandStatusStrings(statuses []CommandStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Ensure BunRegistry implements Registry.
var _ Registry = (*BunRegistry)(nil)
