package app

import (
	"context"
	"testing"

	"github.com/akyaiy/cortexlink/internal/core/corestate"
)

func TestApp_HookOrder(t *testing.T) {
	a := New().(*App)
	var order []string

	a.InitialHooks(
		func(cs *corestate.CoreState, x *AppX) {
			order = append(order, "init1")
			cs.Stage = corestate.StagePreInit
		},
		func(cs *corestate.CoreState, x *AppX) { order = append(order, "init2") },
	)
	a.Fallback(func(ctx context.Context, cs *corestate.CoreState, x *AppX) {
		order = append(order, "fallback")
	})
	a.Run(func(ctx context.Context, cs *corestate.CoreState, x *AppX) error {
		if cs.Stage != corestate.StagePreInit {
			t.Errorf("Stage = %q in run hook", cs.Stage)
		}
		order = append(order, "run")
		a.CallFallback(ctx)
		return nil
	})

	want := []string{"init1", "init2", "run", "fallback"}
	if len(order) != len(want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v; want %v", order, want)
			break
		}
	}
}
