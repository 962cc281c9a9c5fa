package authz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// gatedGraph stalls the first traversal inside GrantsForRoles until
// released, opening the window between a resolution starting and an
// invalidation landing.
type gatedGraph struct {
	*fakeGraph
	first   sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedGraph(inner *fakeGraph) *gatedGraph {
	return &gatedGraph{
		fakeGraph: inner,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedGraph) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]store.Grant, error) {
	gate := false
	g.first.Do(func() { gate = true })
	if gate {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.fakeGraph.GrantsForRoles(ctx, roleIDs)
}

func newTestService(g Graph) *Service {
	return NewService(g, nil, nil, time.Second)
}

func TestEffectiveCachesResolution(t *testing.T) {
	g := demoGraph()
	s := newTestService(g)
	ctx := context.Background()

	if _, err := s.Effective(ctx, 1); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := s.Effective(ctx, 1); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if g.resolveCalls != 1 {
		t.Fatalf("expected a single traversal, got %d", g.resolveCalls)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	g := demoGraph()
	s := newTestService(g)
	ctx := context.Background()

	if !s.Can(ctx, 1, "Billing", store.ActionCreate) {
		t.Fatal("expected grant before revocation")
	}

	// Revoke role 101 from group 11 and invalidate its members.
	g.roles[11] = []int64{100}
	s.Invalidate(1, 2)

	if s.Can(ctx, 1, "Billing", store.ActionCreate) {
		t.Fatal("revoked grant still honored after invalidation")
	}
	if g.resolveCalls != 2 {
		t.Fatalf("expected recompute after invalidation, got %d traversals", g.resolveCalls)
	}
}

func TestInvalidateNotJoinedByLaterChecks(t *testing.T) {
	inner := demoGraph()
	g := newGatedGraph(inner)
	s := NewService(g, nil, nil, 5*time.Second)
	ctx := context.Background()

	before := make(chan bool)
	go func() {
		before <- s.Can(ctx, 1, "Billing", store.ActionCreate)
	}()
	<-g.entered // traversal is mid-flight over pre-revocation state

	// Revoke role 101 from group 11 and invalidate while the first
	// traversal is still in flight.
	inner.roles[11] = []int64{100}
	s.Invalidate(1)

	// A check issued after the invalidation must resolve fresh state,
	// not collapse into the stale flight.
	if s.Can(ctx, 1, "Billing", store.ActionCreate) {
		t.Fatal("post-invalidation check honored a revoked grant")
	}

	close(g.release)
	<-before

	// The stale result must also be gone from the cache.
	if s.Can(ctx, 1, "Billing", store.ActionCreate) {
		t.Fatal("stale flight repopulated the cache")
	}
}

func TestInvalidateAllDropsEveryUser(t *testing.T) {
	g := demoGraph()
	s := newTestService(g)
	ctx := context.Background()

	if _, err := s.Effective(ctx, 1); err != nil {
		t.Fatalf("resolve user 1: %v", err)
	}
	if _, err := s.Effective(ctx, 2); err != nil {
		t.Fatalf("resolve user 2: %v", err)
	}

	s.InvalidateAll()

	if _, err := s.Effective(ctx, 1); err != nil {
		t.Fatalf("resolve user 1 again: %v", err)
	}
	if g.resolveCalls != 3 {
		t.Fatalf("expected traversal after global invalidation, got %d", g.resolveCalls)
	}
}

func TestCanFailsClosed(t *testing.T) {
	g := demoGraph()
	g.err = errors.New("connection refused")
	s := newTestService(g)

	if s.Can(context.Background(), 1, "Reports", store.ActionRead) {
		t.Fatal("store failure must deny")
	}
}

func TestCanDeniesUnknownUser(t *testing.T) {
	s := newTestService(demoGraph())

	if s.Can(context.Background(), 999, "Reports", store.ActionRead) {
		t.Fatal("unknown user must deny")
	}
}

func TestCanMatchesExactActionOnly(t *testing.T) {
	s := newTestService(demoGraph())
	ctx := context.Background()

	if !s.Can(ctx, 1, "Reports", store.ActionUpdate) {
		t.Fatal("expected update grant")
	}
	if s.Can(ctx, 1, "Reports", store.ActionDelete) {
		t.Fatal("delete was never granted")
	}
	if s.Can(ctx, 1, "Billing", store.ActionRead) {
		t.Fatal("billing read was never granted")
	}
}

func TestMineSortedStrings(t *testing.T) {
	s := newTestService(demoGraph())

	grants, err := s.Mine(context.Background(), 1)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	want := []string{"Billing:create", "Reports:read", "Reports:update"}
	if len(grants) != len(want) {
		t.Fatalf("expected %v, got %v", want, grants)
	}
	for i := range want {
		if grants[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, grants)
		}
	}
}

func TestMineUnknownUser(t *testing.T) {
	s := newTestService(demoGraph())

	_, err := s.Mine(context.Background(), 999)
	if !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSimulateReportsGrantChain(t *testing.T) {
	g := demoGraph()
	g.paths = map[int64][]store.GrantPath{
		1: {
			{GroupName: "Finance", RoleName: "Accountant", Module: "Reports", Action: store.ActionRead},
			{GroupName: "Auditors", RoleName: "Reviewer", Module: "Reports", Action: store.ActionRead},
		},
	}
	s := newTestService(g)

	d := s.Simulate(context.Background(), 1, "Reports", store.ActionRead)
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
	if !strings.Contains(d.Reason, `role "Accountant" through group "Finance"`) {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
	if !strings.Contains(d.Reason, "; ") {
		t.Fatalf("expected both chains in reason: %s", d.Reason)
	}
}

func TestSimulateDenyNamesMissingGrant(t *testing.T) {
	s := newTestService(demoGraph())

	d := s.Simulate(context.Background(), 1, "Reports", store.ActionDelete)
	if d.Allowed {
		t.Fatalf("expected deny, got %+v", d)
	}
	if d.Reason != "no role grants Reports:delete" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}

func TestSimulateDeniesOnError(t *testing.T) {
	g := demoGraph()
	g.err = errors.New("connection refused")
	s := newTestService(g)

	d := s.Simulate(context.Background(), 1, "Reports", store.ActionRead)
	if d.Allowed {
		t.Fatal("expected deny on error")
	}
	if d.Reason != "resolution unavailable" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}
