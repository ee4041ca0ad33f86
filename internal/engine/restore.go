package engine

import (
	"context"
	"fmt"
)

// Restore resumes the engine from its store: every instance snapshot is
// loaded into its namespace registry and the clock is advanced past the
// highest logged seq, so new events never reuse a seq.
//
// Restore must run after Compile and before any event is posted. It fails
// with store.ErrHashMismatch if the log was written by a different
// definition of a namespace. Instances already registered (for example by
// Spawn) are left untouched.
//
// Only instance state is restored. Events that were queued but never
// processed when the previous engine stopped are not replayed; the log
// records them without transitions.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("restore: engine has no store")
	}
	if !e.compiled.Load() {
		return 0, &RuntimeError{Code: ErrCodeNotCompiled, Message: "restore before Compile"}
	}

	restored := 0
	var last int64
	for _, spec := range e.specs {
		rt := e.runtimes[spec.Name]

		if err := e.store.CheckNamespaceHash(ctx, spec.Name, rt.ns.Hash()); err != nil {
			return restored, fmt.Errorf("restore %s: %w", spec.Name, err)
		}

		snap, err := e.store.Restore(ctx, spec.Name)
		if err != nil {
			return restored, err
		}
		last = max(last, snap.LastSeq)

		for _, rec := range snap.Instances {
			if _, ok := rt.spec.Machine(rec.Machine); !ok {
				return restored, &RuntimeError{
					Code:      ErrCodeUnknownMachine,
					Message:   fmt.Sprintf("logged instance of undeclared machine %q", rec.Machine),
					Namespace: spec.Name,
					Instance:  rec.ID,
				}
			}
			inst := newInstance(rec.ID, rec.Namespace, rec.Machine, rec.State, rec.Vars, rec.Seq)
			if rt.registry.add(inst) {
				restored++
			}
		}
	}

	e.clock.AdvanceTo(last)

	e.logger.Info("engine restored",
		"instances", restored,
		"seq", last,
	)
	return restored, nil
}
