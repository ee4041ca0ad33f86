package store

import (
	"context"
	"fmt"

	"github.com/roach88/fsmnet/internal/ir"
)

// WriteEvent inserts an event record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., a reused seq) still return errors.
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	attrsJSON, err := marshalObject(ev.Attrs)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, namespace, class, attrs, priority, seq, root)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.Namespace,
		ev.Class,
		attrsJSON,
		ev.Priority,
		ev.Seq,
		ev.Root,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteTransition appends a fired transition. It reports whether a new
// record was inserted: a second transition of the same instance for the
// same event is ignored.
//
// Note: The event referenced by EventID must exist (foreign key constraint).
func (s *Store) WriteTransition(ctx context.Context, rec ir.TransitionRecord) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(seq, event_id, namespace, namespace_hash, instance_id, machine, from_state, to_state, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id, instance_id) DO NOTHING
	`,
		rec.Seq,
		rec.EventID,
		rec.Namespace,
		rec.NamespaceHash,
		rec.InstanceID,
		rec.Machine,
		rec.From,
		rec.To,
		rec.Action,
	)
	if err != nil {
		return false, fmt.Errorf("write transition: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write transition: rows affected: %w", err)
	}
	return n > 0, nil
}

// UpsertInstance stores the latest snapshot of an instance, replacing any
// earlier one.
func (s *Store) UpsertInstance(ctx context.Context, rec ir.InstanceRecord) error {
	varsJSON, err := marshalObject(rec.Vars)
	if err != nil {
		return fmt.Errorf("upsert instance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances
		(id, namespace, machine, state, vars, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			vars = excluded.vars,
			seq = excluded.seq
	`,
		rec.ID,
		rec.Namespace,
		rec.Machine,
		rec.State,
		varsJSON,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("upsert instance: %w", err)
	}
	return nil
}
