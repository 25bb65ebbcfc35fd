// Package shiftgate decides whether the operator may use order-taking
// features. Cashiers need an open shift; the gate tracks shift status as a
// small state machine and drives the start/end flows against the backend.
package shiftgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/model"
)

const defaultCheckTimeout = 3 * time.Second

// State is the gate's position in the shift lifecycle.
type State int

const (
	// Unchecked: shift status unknown; nothing rendered yet.
	Unchecked State = iota
	// Checking: status request in flight.
	Checking
	// NoShiftPendingStart: no open shift; the start prompt is shown and
	// cannot be dismissed.
	NoShiftPendingStart
	// ActiveShift: an open shift exists; gated features are available.
	ActiveShift
	// AwaitingEndAcknowledgment: the shift was closed; the summary is shown
	// until the operator acknowledges it.
	AwaitingEndAcknowledgment
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case NoShiftPendingStart:
		return "no_shift_pending_start"
	case ActiveShift:
		return "active_shift"
	case AwaitingEndAcknowledgment:
		return "awaiting_end_acknowledgment"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoPrompt: Start called while the start prompt is not active.
	ErrNoPrompt = errors.New("shiftgate: no shift start is pending")
	// ErrNoActiveShift: End called without an open shift.
	ErrNoActiveShift = errors.New("shiftgate: no active shift to end")
)

// ShiftService is the slice of the backend the gate needs. *backend.Client
// satisfies it.
type ShiftService interface {
	CurrentShift(ctx context.Context) (*model.Shift, error)
	StartShift(ctx context.Context, startBalance float64) (model.Shift, error)
	EndShift(ctx context.Context, endBalance float64) (model.Shift, error)
}

// Gate is the shift state machine. Construct with New; methods are safe for
// concurrent use.
type Gate struct {
	svc          ShiftService
	log          tillfront.Logger
	checkTimeout time.Duration

	mu     sync.Mutex
	state  State
	userID string
	role   model.Role
	shift  *model.Shift
	closed bool
	subs   map[int]func(State)
	nextID int
}

type Options struct {
	// Required
	Service ShiftService

	Logger       tillfront.Logger
	CheckTimeout time.Duration // status check deadline; 3s by default
}

func New(opts Options) (*Gate, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("shiftgate: service is required")
	}
	log := opts.Logger
	if log == nil {
		log = tillfront.NopLogger{}
	}
	ct := opts.CheckTimeout
	if ct <= 0 {
		ct = defaultCheckTimeout
	}
	return &Gate{
		svc:          opts.Service,
		log:          log,
		checkTimeout: ct,
		subs:         make(map[int]func(State)),
	}, nil
}

// SetIdentity installs the operator the gate is deciding for. A change of
// operator resets the machine to Unchecked.
func (g *Gate) SetIdentity(userID string, role model.Role) {
	g.mu.Lock()
	changed := g.userID != userID
	g.userID = userID
	g.role = role
	if changed {
		g.shift = nil
		g.transitionLocked(Unchecked)
		return
	}
	g.mu.Unlock()
}

// Reset returns the gate to Unchecked, e.g. on sign-out.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.shift = nil
	g.transitionLocked(Unchecked)
}

// State returns the current machine state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Shift returns the shift the gate last observed, open or just closed.
func (g *Gate) Shift() *model.Shift {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shift
}

// Allowed reports whether gated features may be used right now. Roles that do
// not require a shift are always allowed.
func (g *Gate) Allowed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.role.RequiresShift() {
		return true
	}
	return g.state == ActiveShift
}

// Dismissible reports whether the currently shown prompt may be closed
// without resolving it. The start prompt is deliberately not dismissible for
// roles that need a shift.
func (g *Gate) Dismissible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == NoShiftPendingStart && g.role.RequiresShift() {
		return false
	}
	return true
}

// Check resolves the operator's shift status. The request is bounded by the
// check timeout; on timeout or failure the gate falls back to
// NoShiftPendingStart so the operator is never stuck on a spinner.
func (g *Gate) Check(ctx context.Context) {
	g.mu.Lock()
	if g.state == Checking {
		g.mu.Unlock()
		return
	}
	if !g.role.RequiresShift() {
		// Roles without shift duty skip the machine entirely.
		g.transitionLocked(ActiveShift)
		return
	}
	g.transitionLocked(Checking)

	cctx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()
	sh, err := g.svc.CurrentShift(cctx)

	g.mu.Lock()
	if g.state != Checking {
		// reset or identity change while the request was in flight
		g.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		g.log.Warn("shift status check failed, prompting for start",
			tillfront.Fields{"err": err})
		g.shift = nil
		g.transitionLocked(NoShiftPendingStart)
	case sh != nil && sh.Open():
		g.shift = sh
		g.transitionLocked(ActiveShift)
	default:
		g.shift = nil
		g.transitionLocked(NoShiftPendingStart)
	}
}

// Start opens a shift with the given starting balance. On failure the gate
// stays in NoShiftPendingStart and the error is returned for the prompt to
// display.
func (g *Gate) Start(ctx context.Context, startBalance float64) (model.Shift, error) {
	g.mu.Lock()
	if g.state != NoShiftPendingStart {
		g.mu.Unlock()
		return model.Shift{}, ErrNoPrompt
	}
	g.mu.Unlock()

	sh, err := g.svc.StartShift(ctx, startBalance)
	if err != nil {
		return model.Shift{}, err
	}

	g.mu.Lock()
	if g.state != NoShiftPendingStart {
		g.mu.Unlock()
		return sh, nil
	}
	g.shift = &sh
	g.transitionLocked(ActiveShift)
	return sh, nil
}

// End closes the active shift with the given counted balance. On failure the
// shift stays active and the error is returned. On success the gate waits for
// the operator to acknowledge the shift summary.
func (g *Gate) End(ctx context.Context, endBalance float64) (model.Shift, error) {
	g.mu.Lock()
	if g.state != ActiveShift {
		g.mu.Unlock()
		return model.Shift{}, ErrNoActiveShift
	}
	g.mu.Unlock()

	sh, err := g.svc.EndShift(ctx, endBalance)
	if err != nil {
		return model.Shift{}, err
	}

	g.mu.Lock()
	g.shift = &sh
	g.transitionLocked(AwaitingEndAcknowledgment)
	return sh, nil
}

// Acknowledge dismisses the end-of-shift summary and readies the gate for the
// next shift.
func (g *Gate) Acknowledge() {
	g.mu.Lock()
	if g.state != AwaitingEndAcknowledgment {
		g.mu.Unlock()
		return
	}
	g.shift = nil
	g.transitionLocked(NoShiftPendingStart)
}

// Subscribe registers fn to run with the new state after every transition and
// returns its unsubscribe function.
func (g *Gate) Subscribe(fn func(State)) (cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return func() {}
	}
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// Close tears the gate down; transitions attempted afterwards are dropped.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.subs = nil
	g.mu.Unlock()
}

// transitionLocked publishes the new state and releases g.mu.
func (g *Gate) transitionLocked(next State) {
	if g.closed {
		g.mu.Unlock()
		return
	}
	prev := g.state
	g.state = next
	fns := make([]func(State), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	if prev != next {
		g.log.Debug("shift gate transition",
			tillfront.Fields{"from": prev.String(), "to": next.String()})
	}
	for _, fn := range fns {
		fn(next)
	}
}
