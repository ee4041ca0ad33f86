package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/store"
)

// trafficSpec has lights that turn green on a large enough tick and back
// to red on any tick.
func trafficSpec() ir.NamespaceSpec {
	return ir.NamespaceSpec{
		Name: "traffic",
		Events: []ir.EventSpec{
			{Name: "Tick", Attrs: map[string]string{"count": "int"}},
			{Name: "Reset"},
		},
		Machines: []ir.MachineSpec{
			{
				Name:    "Light",
				States:  []string{"red", "green"},
				Initial: "red",
				Vars:    ir.Object{"cycles": ir.Int(0)},
				Transitions: []ir.TransitionSpec{
					{On: "Tick", From: "red", To: "green", If: "count > 3", Action: "log"},
					{On: "Tick", From: "green", To: "red", Set: ir.Object{"cycles": ir.Int(1)}},
					{On: "Reset", From: "green", To: "red"},
				},
			},
		},
	}
}

// rallySpec has two players that bounce a ball until Pong gets tired.
func rallySpec() ir.NamespaceSpec {
	return ir.NamespaceSpec{
		Name: "rally",
		Events: []ir.EventSpec{
			{Name: "Serve"},
			{Name: "Ball"},
			{Name: "Return"},
		},
		Machines: []ir.MachineSpec{
			{
				Name:    "Ping",
				States:  []string{"idle", "waiting"},
				Initial: "idle",
				Transitions: []ir.TransitionSpec{
					{On: "Serve", From: "idle", To: "waiting", Emit: []string{"Ball"}},
					{On: "Return", From: "waiting", To: "idle"},
				},
			},
			{
				Name:    "Pong",
				States:  []string{"ready", "done"},
				Initial: "ready",
				Transitions: []ir.TransitionSpec{
					{On: "Ball", From: "ready", To: "done", Emit: []string{"Return"}},
				},
			},
		},
	}
}

// loopSpec bounces one machine between two states forever.
func loopSpec() ir.NamespaceSpec {
	return ir.NamespaceSpec{
		Name:   "loop",
		Events: []ir.EventSpec{{Name: "Ball"}},
		Machines: []ir.MachineSpec{
			{
				Name:    "Juggler",
				States:  []string{"a", "b"},
				Initial: "a",
				Transitions: []ir.TransitionSpec{
					{On: "Ball", From: "a", To: "b", Emit: []string{"Ball"}},
					{On: "Ball", From: "b", To: "a", Emit: []string{"Ball"}},
				},
			},
		},
	}
}

// counterSpec counts forever: its action increments a variable and emits
// another Bump, so no firing ever repeats exactly.
func counterSpec() ir.NamespaceSpec {
	return ir.NamespaceSpec{
		Name:   "counter",
		Events: []ir.EventSpec{{Name: "Bump", Attrs: map[string]string{"by": "int"}}},
		Machines: []ir.MachineSpec{
			{
				Name:    "Counter",
				States:  []string{"on"},
				Initial: "on",
				Vars:    ir.Object{"n": ir.Int(0)},
				Transitions: []ir.TransitionSpec{
					{On: "Bump", From: "on", To: "on", Action: "inc"},
				},
			},
		},
	}
}

// incAction adds one to n and bumps again.
func incAction(_ context.Context, call *ActionCall) error {
	n, _ := call.Vars["n"].(ir.Int)
	call.Set("n", n+1)
	call.Emit("Bump", nil)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// recorder collects fired transitions through WithFiringHook.
type recorder struct {
	mu      sync.Mutex
	records []ir.TransitionRecord
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1024)}
}

func (r *recorder) hook(rec ir.TransitionRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) all() []ir.TransitionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.TransitionRecord(nil), r.records...)
}

func newTestEngine(t *testing.T, specs []ir.NamespaceSpec, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{WithLogger(discardLogger())}
	e := New(specs, append(base, opts...)...)
	require.NoError(t, e.Compile(t.Context()))
	return e
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
