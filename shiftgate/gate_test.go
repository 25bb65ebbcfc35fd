package shiftgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tillworks/tillfront/model"
)

// fakeShiftService scripts the backend's shift answers.
type fakeShiftService struct {
	current    *model.Shift
	currentErr error
	block      chan struct{} // CurrentShift waits on it when non-nil

	startErr error
	endErr   error
}

func (f *fakeShiftService) CurrentShift(ctx context.Context) (*model.Shift, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.current, f.currentErr
}

func (f *fakeShiftService) StartShift(_ context.Context, bal float64) (model.Shift, error) {
	if f.startErr != nil {
		return model.Shift{}, f.startErr
	}
	return model.Shift{ID: "sh1", StartBalance: bal, StartedAt: time.Now()}, nil
}

func (f *fakeShiftService) EndShift(_ context.Context, bal float64) (model.Shift, error) {
	if f.endErr != nil {
		return model.Shift{}, f.endErr
	}
	now := time.Now()
	return model.Shift{ID: "sh1", EndBalance: &bal, StartedAt: now.Add(-time.Hour), EndedAt: &now}, nil
}

func newTestGate(t *testing.T, svc ShiftService, timeout time.Duration) *Gate {
	t.Helper()
	g, err := New(Options{Service: svc, CheckTimeout: timeout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}

func TestCheckFindsOpenShift(t *testing.T) {
	svc := &fakeShiftService{current: &model.Shift{ID: "sh1", StartedAt: time.Now()}}
	g := newTestGate(t, svc, time.Second)
	g.SetIdentity("u1", model.RoleCashier)

	g.Check(context.Background())
	if g.State() != ActiveShift {
		t.Fatalf("state = %v", g.State())
	}
	if !g.Allowed() {
		t.Fatalf("open shift must unlock gated features")
	}
	if g.Shift() == nil || g.Shift().ID != "sh1" {
		t.Fatalf("shift = %+v", g.Shift())
	}
}

func TestCheckNoShiftPrompts(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{}, time.Second)
	g.SetIdentity("u1", model.RoleCashier)

	g.Check(context.Background())
	if g.State() != NoShiftPendingStart {
		t.Fatalf("state = %v", g.State())
	}
	if g.Allowed() {
		t.Fatalf("cashier without a shift must be gated")
	}
	if g.Dismissible() {
		t.Fatalf("the start prompt must not be dismissible")
	}
}

func TestCheckTimeoutFallsBackToPrompt(t *testing.T) {
	svc := &fakeShiftService{
		current: &model.Shift{ID: "sh1", StartedAt: time.Now()},
		block:   make(chan struct{}), // never released
	}
	g := newTestGate(t, svc, 20*time.Millisecond)
	g.SetIdentity("u1", model.RoleCashier)

	start := time.Now()
	g.Check(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("check ran past its deadline: %v", elapsed)
	}
	if g.State() != NoShiftPendingStart {
		t.Fatalf("timed-out check must fall back to the prompt, got %v", g.State())
	}
}

func TestCheckErrorFallsBackToPrompt(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{currentErr: errors.New("boom")}, time.Second)
	g.SetIdentity("u1", model.RoleCashier)

	g.Check(context.Background())
	if g.State() != NoShiftPendingStart {
		t.Fatalf("state = %v", g.State())
	}
}

func TestStartTransitionsToActive(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{}, time.Second)
	g.SetIdentity("u1", model.RoleCashier)
	g.Check(context.Background())

	sh, err := g.Start(context.Background(), 100)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sh.StartBalance != 100 {
		t.Fatalf("shift: %+v", sh)
	}
	if g.State() != ActiveShift || !g.Allowed() {
		t.Fatalf("state = %v allowed = %v", g.State(), g.Allowed())
	}
}

func TestFailedStartKeepsPrompt(t *testing.T) {
	svc := &fakeShiftService{startErr: errors.New("starting balance is required")}
	g := newTestGate(t, svc, time.Second)
	g.SetIdentity("u1", model.RoleCashier)
	g.Check(context.Background())

	if _, err := g.Start(context.Background(), 0); err == nil {
		t.Fatalf("expected start error")
	}
	if g.State() != NoShiftPendingStart {
		t.Fatalf("failed start must keep the prompt, got %v", g.State())
	}
}

func TestStartOutsidePromptRejected(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{}, time.Second)
	if _, err := g.Start(context.Background(), 100); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("err = %v", err)
	}
}

func TestEndAwaitsAcknowledgment(t *testing.T) {
	svc := &fakeShiftService{current: &model.Shift{ID: "sh1", StartedAt: time.Now()}}
	g := newTestGate(t, svc, time.Second)
	g.SetIdentity("u1", model.RoleCashier)
	g.Check(context.Background())

	sh, err := g.End(context.Background(), 250)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if sh.Open() {
		t.Fatalf("ended shift should be closed: %+v", sh)
	}
	if g.State() != AwaitingEndAcknowledgment {
		t.Fatalf("state = %v", g.State())
	}
	if g.Allowed() {
		t.Fatalf("gated features must lock once the shift ended")
	}

	g.Acknowledge()
	if g.State() != NoShiftPendingStart || g.Shift() != nil {
		t.Fatalf("after ack: state=%v shift=%+v", g.State(), g.Shift())
	}
}

func TestFailedEndKeepsShiftActive(t *testing.T) {
	svc := &fakeShiftService{
		current: &model.Shift{ID: "sh1", StartedAt: time.Now()},
		endErr:  errors.New("balance mismatch"),
	}
	g := newTestGate(t, svc, time.Second)
	g.SetIdentity("u1", model.RoleCashier)
	g.Check(context.Background())

	if _, err := g.End(context.Background(), 250); err == nil {
		t.Fatalf("expected end error")
	}
	if g.State() != ActiveShift || !g.Allowed() {
		t.Fatalf("failed end must keep the shift active, got %v", g.State())
	}
}

func TestManagerBypassesGate(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{}, time.Second)
	g.SetIdentity("u2", model.RoleManager)

	if !g.Allowed() {
		t.Fatalf("managers are allowed regardless of shift state")
	}
	g.Check(context.Background())
	if g.State() != ActiveShift {
		t.Fatalf("manager check must skip straight past the machine, got %v", g.State())
	}
	if !g.Allowed() || !g.Dismissible() {
		t.Fatalf("manager must stay allowed and never see the prompt")
	}
}

func TestIdentityChangeResets(t *testing.T) {
	svc := &fakeShiftService{current: &model.Shift{ID: "sh1", StartedAt: time.Now()}}
	g := newTestGate(t, svc, time.Second)
	g.SetIdentity("u1", model.RoleCashier)
	g.Check(context.Background())
	if g.State() != ActiveShift {
		t.Fatalf("precondition: %v", g.State())
	}

	g.SetIdentity("u2", model.RoleCashier)
	if g.State() != Unchecked || g.Shift() != nil {
		t.Fatalf("identity change must reset: state=%v shift=%+v", g.State(), g.Shift())
	}
}

func TestSubscribersSeeTransitions(t *testing.T) {
	g := newTestGate(t, &fakeShiftService{}, time.Second)
	g.SetIdentity("u1", model.RoleCashier)

	var seen []State
	cancel := g.Subscribe(func(s State) { seen = append(seen, s) })
	g.Check(context.Background())

	if len(seen) != 2 || seen[0] != Checking || seen[1] != NoShiftPendingStart {
		t.Fatalf("seen = %v", seen)
	}

	cancel()
	g.Reset()
	if len(seen) != 2 {
		t.Fatalf("unsubscribed listener still notified: %v", seen)
	}
}

func TestCloseDropsTransitions(t *testing.T) {
	g, err := New(Options{Service: &fakeShiftService{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var n int
	g.Subscribe(func(State) { n++ })

	g.Close()
	g.Check(context.Background())
	g.Reset()
	if n != 0 {
		t.Fatalf("closed gate notified subscribers %d times", n)
	}
	if g.State() != Unchecked {
		t.Fatalf("closed gate must not move, got %v", g.State())
	}
}
