package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/asset-market/internal/exchange"
)

// leakyLedger always reports a conservation problem.
type leakyLedger struct{}

func (leakyLedger) CheckSupply() []string { return []string{"balances and holds total 11, deposits net of withdrawals 10"} }

// brokenIndex always reports the same problem.
type brokenIndex struct{}

func (brokenIndex) Name() string         { return "broken" }
func (brokenIndex) CheckIndex() []string { return []string{"asset 0 missing from index of alice"} }

type fakeReporter struct {
	mu       sync.Mutex
	active   int
	stale    int
	problems map[string]int
	supply   int
	runs     int
}

func (r *fakeReporter) SetListings(active, stale int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active, r.stale = active, stale
}

func (r *fakeReporter) SetIndexProblems(collection string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.problems == nil {
		r.problems = make(map[string]int)
	}
	r.problems[collection] = n
}

func (r *fakeReporter) SetSupplyProblems(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supply = n
}

func (r *fakeReporter) AuditCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

func newExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	ex, err := exchange.New(exchange.Config{
		MarketplaceIdentity: "marketplace",
		Collections:         []string{"nft", "art"},
	}, nil)
	if err != nil {
		t.Fatalf("exchange.New() failed: %v", err)
	}
	return ex
}

func checkers(ex *exchange.Exchange) []IndexChecker {
	var out []IndexChecker
	for _, name := range ex.Collections() {
		reg, _ := ex.Collection(name)
		out = append(out, reg)
	}
	return out
}

func TestAuditor_CountsStaleListings(t *testing.T) {
	ex := newExchange(t)

	// Two listings of the same asset; selling the first leaves the second stale.
	ex.Mint("alice", "nft", "alice", "u")
	ex.Approve("alice", "nft", "marketplace", 0)
	first, _ := ex.List("alice", "nft", 0, 10)
	second, _ := ex.List("alice", "nft", 0, 20)
	ex.Deposit("bob", "bob", 10)
	if _, err := ex.Buy("bob", first, 10); err != nil {
		t.Fatalf("Buy() failed: %v", err)
	}

	rep := &fakeReporter{}
	a := New(Config{Concurrency: 2}, checkers(ex), ex.Marketplace(), ex.Ledger(), rep, nil)

	report := a.Check(context.Background())
	if !report.Healthy() {
		t.Errorf("Healthy() = false, problems = %v", report.IndexProblems)
	}
	if report.Active != 1 {
		t.Errorf("Active = %d, want 1", report.Active)
	}
	if len(report.Stale) != 1 || report.Stale[0] != second {
		t.Errorf("Stale = %v, want [%d]", report.Stale, second)
	}
	if rep.active != 1 || rep.stale != 1 || rep.runs != 1 {
		t.Errorf("reporter active/stale/runs = %d/%d/%d, want 1/1/1", rep.active, rep.stale, rep.runs)
	}
	if rep.problems["nft"] != 0 || rep.problems["art"] != 0 {
		t.Errorf("reporter problems = %v, want zeros", rep.problems)
	}

	// Auditing never changes listing state.
	l, _ := ex.Marketplace().GetListing(second)
	if !l.IsActive {
		t.Error("audit deactivated a stale listing")
	}
}

func TestAuditor_ReportsIndexProblems(t *testing.T) {
	rep := &fakeReporter{}
	a := New(Config{}, []IndexChecker{brokenIndex{}}, nil, nil, rep, nil)

	report := a.Check(context.Background())
	if report.Healthy() {
		t.Error("Healthy() = true, want false")
	}
	if got := len(report.IndexProblems["broken"]); got != 1 {
		t.Errorf("len(IndexProblems[broken]) = %d, want 1", got)
	}
	if rep.problems["broken"] != 1 {
		t.Errorf("reporter problems[broken] = %d, want 1", rep.problems["broken"])
	}
	if a.Last().Healthy() {
		t.Error("Last() not updated")
	}
}

func TestAuditor_CancelledContext(t *testing.T) {
	rep := &fakeReporter{}
	a := New(Config{Concurrency: 1}, []IndexChecker{brokenIndex{}, brokenIndex{}}, nil, nil, rep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.Check(ctx)
	if rep.runs != 0 {
		t.Errorf("AuditCompleted called %d times for an interrupted pass", rep.runs)
	}
}

func TestAuditor_StartStop(t *testing.T) {
	ex := newExchange(t)
	rep := &fakeReporter{}
	a := New(Config{Interval: 10 * time.Millisecond, Concurrency: 2}, checkers(ex), ex.Marketplace(), ex.Ledger(), rep, nil)

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rep.mu.Lock()
		runs := rep.runs
		rep.mu.Unlock()
		if runs >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d audit passes ran", runs)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestAuditor_ReportsSupplyProblems(t *testing.T) {
	ex := newExchange(t)
	ex.Deposit("bob", "bob", 10)

	rep := &fakeReporter{}
	report := New(Config{}, checkers(ex), nil, ex.Ledger(), rep, nil).Check(context.Background())
	if !report.Healthy() || rep.supply != 0 {
		t.Errorf("Check() on a consistent ledger = %+v, supply problems %d", report, rep.supply)
	}

	report = New(Config{}, nil, nil, leakyLedger{}, rep, nil).Check(context.Background())
	if report.Healthy() {
		t.Error("Healthy() = true with a supply problem")
	}
	if len(report.SupplyProblems) != 1 || rep.supply != 1 {
		t.Errorf("SupplyProblems = %v, reported %d, want 1", report.SupplyProblems, rep.supply)
	}
}
