package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

const (
	eventColumns      = `id, namespace, class, attrs, priority, seq, root`
	transitionColumns = `seq, event_id, namespace, namespace_hash, instance_id, machine, from_state, to_state, action`
	instanceColumns   = `id, namespace, machine, state, vars, seq`
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ReadEvent retrieves a single event by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (ir.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ReadEvents returns the events of a namespace, or of every namespace when
// namespace is "", ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEvents(ctx context.Context, namespace string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE ? = '' OR namespace = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collect(rows, "events", scanEvent)
}

// ReadTransitions returns the fired transitions of a namespace, or of every
// namespace when namespace is "", ordered by seq.
func (s *Store) ReadTransitions(ctx context.Context, namespace string) ([]ir.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE ? = '' OR namespace = ?
		ORDER BY seq ASC
	`, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return collect(rows, "transitions", scanTransition)
}

// ReadTransitionsForEvent returns the transitions one event fired, ordered
// by seq.
func (s *Store) ReadTransitionsForEvent(ctx context.Context, eventID string) ([]ir.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE event_id = ?
		ORDER BY seq ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query transitions for event: %w", err)
	}
	return collect(rows, "transitions", scanTransition)
}

// ReadInstanceHistory returns every transition an instance took, ordered by
// seq.
func (s *Store) ReadInstanceHistory(ctx context.Context, instanceID string) ([]ir.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE instance_id = ?
		ORDER BY seq ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query instance history: %w", err)
	}
	return collect(rows, "transitions", scanTransition)
}

// Trace is everything that followed from one externally posted event.
type Trace struct {
	Root        ir.Event
	Events      []ir.Event // root first, then emitted events by seq
	Transitions []ir.TransitionRecord
}

// ReadTrace returns the cascade of a root event: the root itself, every
// event emitted on its behalf, and the transitions they fired.
// Returns sql.ErrNoRows if the root does not exist.
func (s *Store) ReadTrace(ctx context.Context, rootID string) (Trace, error) {
	root, err := s.ReadEvent(ctx, rootID)
	if err != nil {
		return Trace{}, fmt.Errorf("read trace %s: %w", rootID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = ? OR root = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, rootID, rootID)
	if err != nil {
		return Trace{}, fmt.Errorf("query trace events: %w", err)
	}
	events, err := collect(rows, "events", scanEvent)
	if err != nil {
		return Trace{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT t.`+strings.ReplaceAll(transitionColumns, ", ", ", t.")+`
		FROM transitions t
		JOIN events e ON t.event_id = e.id
		WHERE e.id = ? OR e.root = ?
		ORDER BY t.seq ASC
	`, rootID, rootID)
	if err != nil {
		return Trace{}, fmt.Errorf("query trace transitions: %w", err)
	}
	transitions, err := collect(rows, "transitions", scanTransition)
	if err != nil {
		return Trace{}, err
	}

	return Trace{Root: root, Events: events, Transitions: transitions}, nil
}

// ReadRoots returns the externally posted events of a namespace (every
// namespace when ""), ordered by seq.
func (s *Store) ReadRoots(ctx context.Context, namespace string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE root = '' AND (? = '' OR namespace = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query root events: %w", err)
	}
	return collect(rows, "events", scanEvent)
}

// ReadInstance retrieves the latest snapshot of one instance.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInstance(ctx context.Context, id string) (ir.InstanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	return scanInstance(row)
}

// ReadInstances returns the instance snapshots of a namespace (every
// namespace when ""), ordered by the seq of their last change, then id.
func (s *Store) ReadInstances(ctx context.Context, namespace string) ([]ir.InstanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE ? = '' OR namespace = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, namespace, namespace)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	return collect(rows, "instances", scanInstance)
}

// collect drains rows through scan. It closes rows and returns an empty
// slice (not nil) when there are none.
func collect[T any](rows *sql.Rows, what string, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

func scanEvent(row scanner) (ir.Event, error) {
	var ev ir.Event
	var attrsJSON string
	if err := row.Scan(&ev.ID, &ev.Namespace, &ev.Class, &attrsJSON, &ev.Priority, &ev.Seq, &ev.Root); err != nil {
		if err == sql.ErrNoRows {
			return ir.Event{}, err
		}
		return ir.Event{}, fmt.Errorf("scan event: %w", err)
	}
	attrs, err := unmarshalObject(attrsJSON)
	if err != nil {
		return ir.Event{}, err
	}
	ev.Attrs = attrs
	return ev, nil
}

func scanTransition(row scanner) (ir.TransitionRecord, error) {
	var rec ir.TransitionRecord
	if err := row.Scan(
		&rec.Seq, &rec.EventID, &rec.Namespace, &rec.NamespaceHash,
		&rec.InstanceID, &rec.Machine, &rec.From, &rec.To, &rec.Action,
	); err != nil {
		return ir.TransitionRecord{}, fmt.Errorf("scan transition: %w", err)
	}
	return rec, nil
}

func scanInstance(row scanner) (ir.InstanceRecord, error) {
	var rec ir.InstanceRecord
	var varsJSON string
	if err := row.Scan(&rec.ID, &rec.Namespace, &rec.Machine, &rec.State, &varsJSON, &rec.Seq); err != nil {
		if err == sql.ErrNoRows {
			return ir.InstanceRecord{}, err
		}
		return ir.InstanceRecord{}, fmt.Errorf("scan instance: %w", err)
	}
	vars, err := unmarshalObject(varsJSON)
	if err != nil {
		return ir.InstanceRecord{}, err
	}
	rec.Vars = vars
	return rec, nil
}
