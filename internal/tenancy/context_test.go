package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/model"
)

func TestWorkspaceContext_ReadBeforeBindFails(t *testing.T) {
	cell := NewWorkspaceContext()

	id, role, err := cell.Current()
	if !errors.Is(err, ErrWorkspaceNotResolved) {
		t.Fatalf("Current() error = %v, want ErrWorkspaceNotResolved", err)
	}
	if id != uuid.Nil {
		t.Errorf("Current() id = %s, want Nil", id)
	}
	if role != model.RoleNone {
		t.Errorf("Current() role = %s, want none", role)
	}
}

func TestWorkspaceContext_BindThenRead(t *testing.T) {
	cell := NewWorkspaceContext()
	w1 := uuid.New()

	if err := cell.Bind(w1, model.RoleEditor); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	id, role, err := cell.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if id != w1 {
		t.Errorf("Current() id = %s, want %s", id, w1)
	}
	if role != model.RoleEditor {
		t.Errorf("Current() role = %s, want editor", role)
	}
}

func TestWorkspaceContext_RebindFails(t *testing.T) {
	cell := NewWorkspaceContext()
	w1 := uuid.New()

	if err := cell.Bind(w1, model.RoleOwner); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	// Rebinding fails even with identical values.
	if err := cell.Bind(w1, model.RoleOwner); !errors.Is(err, ErrWorkspaceRebind) {
		t.Errorf("second Bind(same) error = %v, want ErrWorkspaceRebind", err)
	}
	if err := cell.Bind(uuid.New(), model.RoleViewer); !errors.Is(err, ErrWorkspaceRebind) {
		t.Errorf("second Bind(different) error = %v, want ErrWorkspaceRebind", err)
	}

	// First binding is left unchanged.
	id, role, err := cell.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if id != w1 || role != model.RoleOwner {
		t.Errorf("Current() = (%s, %s), want original binding", id, role)
	}
}

func TestWorkspaceContext_MustCurrentPanicsUnbound(t *testing.T) {
	cell := NewWorkspaceContext()
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("MustCurrent on unbound cell should panic")
		}
		err, ok := rec.(error)
		if !ok || !errors.Is(err, ErrWorkspaceNotResolved) {
			t.Errorf("panic value = %v, want ErrWorkspaceNotResolved", rec)
		}
	}()
	cell.MustCurrent()
}

func TestSeedContext_FreshCellPerContext(t *testing.T) {
	ctx1 := SeedContext(context.Background())
	ctx2 := SeedContext(context.Background())

	c1 := WorkspaceFromContext(ctx1)
	c2 := WorkspaceFromContext(ctx2)
	if c1 == nil || c2 == nil {
		t.Fatal("seeded contexts should carry a cell")
	}
	if c1 == c2 {
		t.Error("each seeded context must carry its own cell")
	}
}

func TestWorkspaceFromContext_Unseeded(t *testing.T) {
	if cell := WorkspaceFromContext(context.Background()); cell != nil {
		t.Errorf("WorkspaceFromContext(unseeded) = %v, want nil", cell)
	}
}

func TestMustWorkspace_PanicsUnseeded(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustWorkspace on unseeded context should panic")
		}
	}()
	MustWorkspace(context.Background())
}

// Concurrent requests with distinct workspaces must each observe their
// own resolution, never a neighbor's.
func TestWorkspaceContext_RequestIsolation(t *testing.T) {
	const n = 64

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each synthetic request seeds its own context and resolves
			// its own workspace, like the real middleware chain does.
			ctx := SeedContext(context.Background())
			want := uuid.New()

			cell := WorkspaceFromContext(ctx)
			if err := cell.Bind(want, model.RoleViewer); err != nil {
				errs <- err
				return
			}

			got, _, err := WorkspaceFromContext(ctx).Current()
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- fmt.Errorf("observed workspace %s, want %s", got, want)
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestGrant_ContextRoundTrip(t *testing.T) {
	w1 := uuid.New()
	g := Grant{WorkspaceID: w1, Role: model.RoleEditor}

	ctx := WithGrant(context.Background(), g)
	got, ok := GrantFrom(ctx)
	if !ok {
		t.Fatal("GrantFrom should find the stored grant")
	}
	if got != g {
		t.Errorf("GrantFrom = %+v, want %+v", got, g)
	}

	if _, ok := GrantFrom(context.Background()); ok {
		t.Error("GrantFrom on empty context should report absence")
	}
}
