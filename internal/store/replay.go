package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// ErrHashMismatch is returned by CheckNamespaceHash when the log holds
// transitions compiled from different registrations.
var ErrHashMismatch = errors.New("namespace hash mismatch")

// Snapshot is what an engine needs to resume from the log: the latest
// instance states and the clock position.
type Snapshot struct {
	Namespace string
	Instances []ir.InstanceRecord
	LastSeq   int64
}

// LastSeq returns the highest seq recorded in any table, or 0 for an empty
// log. An engine resuming from the log starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM events), 0),
			COALESCE((SELECT MAX(seq) FROM transitions), 0),
			COALESCE((SELECT MAX(seq) FROM instances), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// Restore reads the snapshot of one namespace.
func (s *Store) Restore(ctx context.Context, namespace string) (Snapshot, error) {
	instances, err := s.ReadInstances(ctx, namespace)
	if err != nil {
		return Snapshot{}, fmt.Errorf("restore %s: %w", namespace, err)
	}
	last, err := s.LastSeq(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("restore %s: %w", namespace, err)
	}
	return Snapshot{Namespace: namespace, Instances: instances, LastSeq: last}, nil
}

// CheckNamespaceHash verifies that every transition logged for namespace
// was compiled from the registrations identified by hash. An empty log
// passes.
func (s *Store) CheckNamespaceHash(ctx context.Context, namespace, hash string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT namespace_hash
		FROM transitions
		WHERE namespace = ? AND namespace_hash != ?
		ORDER BY namespace_hash COLLATE BINARY ASC
	`, namespace, hash)
	if err != nil {
		return fmt.Errorf("check namespace hash: %w", err)
	}
	defer rows.Close()

	var others []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return fmt.Errorf("check namespace hash: %w", err)
		}
		others = append(others, h)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("check namespace hash: %w", err)
	}

	if len(others) > 0 {
		return fmt.Errorf("%w: %s logged under %s, current %s",
			ErrHashMismatch, namespace, strings.Join(others, ", "), hash)
	}
	return nil
}
