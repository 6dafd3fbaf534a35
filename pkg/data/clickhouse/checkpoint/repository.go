// Package checkpoint persists sliding window checkpoints to ClickHouse.
package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/graphops/chain-indexer/pkg/checkpointer"
	"github.com/graphops/chain-indexer/pkg/clickhouse"
)

// Repository reads and writes sliding window checkpoints in ClickHouse. It
// implements checkpointer.Checkpointer and adds ClickHouse-specific
// operations.
type Repository interface {
	checkpointer.Checkpointer
	DeleteCheckpoints(ctx context.Context, chainID uint64) error
}

var _ Repository = (*repository)(nil)

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/write-checkpoint.sql
var writeCheckpointQuery string

//go:embed queries/read-checkpoint.sql
var readCheckpointQuery string

//go:embed queries/delete-checkpoints.sql
var deleteCheckpointsQuery string

type repository struct {
	client    clickhouse.Client
	cluster   string
	database  string
	tableName string
}

// NewRepository creates the repository and ensures the checkpoints table
// exists. cluster may be empty for single-node deployments.
func NewRepository(
	client clickhouse.Client,
	cluster, database, tableName string,
) (Repository, error) {
	repo := &repository{client: client, cluster: cluster, database: database, tableName: tableName}
	if err := repo.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return repo, nil
}

// onClusterClause returns the ON CLUSTER fragment, or empty for single-node.
func (r *repository) onClusterClause() string {
	if r.cluster == "" {
		return ""
	}
	return fmt.Sprintf("ON CLUSTER %s", r.cluster)
}

// Initialize ensures the checkpoints table exists.
func (r *repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createTableQuery, r.database, r.tableName, r.onClusterClause())
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Write persists a checkpoint stamped with the current Unix timestamp.
func (r *repository) Write(ctx context.Context, chainID uint64, lowestUnprocessed uint64) error {
	query := fmt.Sprintf(writeCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		Exec(ctx, query, chainID, lowestUnprocessed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Read retrieves the latest checkpoint for the chain.
func (r *repository) Read(ctx context.Context, chainID uint64) (uint64, bool, error) {
	var cp Checkpoint
	query := fmt.Sprintf(readCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		QueryRow(ctx, query, chainID).
		Scan(&cp.ChainID, &cp.Lowest, &cp.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cp.Lowest, true, nil
}

// DeleteCheckpoints removes all checkpoints for the chain.
func (r *repository) DeleteCheckpoints(ctx context.Context, chainID uint64) error {
	query := fmt.Sprintf(deleteCheckpointsQuery, r.database, r.tableName, r.onClusterClause())
	if err := r.client.Conn().Exec(ctx, query, chainID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}
