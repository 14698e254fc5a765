package arm

import (
	"fmt"
	"sync"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// State is the lifecycle state of a Resolver.
type State int

const (
	Idle State = iota
	Targeting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Targeting:
		return "TARGETING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Target is a task-space goal with an optional explicit mirror for when the
// robot faces the other way. A nil Mirrored means (-x, y) of the primary.
type Target struct {
	Name     string `json:"name,omitempty" mapstructure:"name"`
	Primary  Pose2  `json:"primary" mapstructure:"primary"`
	Mirrored *Pose2 `json:"mirrored,omitempty" mapstructure:"mirrored"`
}

// SelectTarget returns the pose to command for a heading in degrees. When the front
// faces away from the reference direction, heading in (-90, 90), the mirror is used.
func SelectTarget(t Target, heading float64) Pose2 {
	h := angle.Normalize180(heading)
	if h > -90 && h < 90 {
		if t.Mirrored != nil {
			return *t.Mirrored
		}
		return t.Primary.Mirror()
	}
	return t.Primary
}

// TaskTargeter accepts task- and joint-space setpoints. *Controller implements it.
type TaskTargeter interface {
	SetTaskTarget(x, y float64) bool
	SetJointTarget(extension, angleDeg float64) bool
}

// Resolver turns preset activations into arm setpoints and owns the
// Idle -> Targeting -> Idle lifecycle. Leaving Targeting always retracts the arm.
//
// Activate and Cancel may be called from any goroutine between ticks; Tick applies
// them on the control goroutine, cancellation first.
type Resolver struct {
	arm     TaskTargeter
	heading HeadingSource
	diag    DiagnosticsSink

	mu       sync.Mutex
	pending  *Target
	cancel   bool
	state    State
	active   Target
	selected Pose2
}

// NewResolver returns an idle resolver commanding arm.
func NewResolver(arm TaskTargeter, heading HeadingSource, diag DiagnosticsSink) *Resolver {
	if diag == nil {
		diag = discard{}
	}
	return &Resolver{arm: arm, heading: heading, diag: diag}
}

// Activate requests targeting t on the next tick. A later activation replaces an earlier one.
func (r *Resolver) Activate(t Target) {
	r.mu.Lock()
	r.pending = &t
	r.mu.Unlock()
}

// Cancel requests release on the next tick and drops any pending activation.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	r.cancel = true
	r.pending = nil
	r.mu.Unlock()
}

// End signals natural completion. It behaves like Cancel.
func (r *Resolver) End() {
	r.Cancel()
}

// Tick applies pending requests. A pending cancellation is handled before any
// targeting decision and retracts exactly once if the resolver was Targeting.
func (r *Resolver) Tick() {
	r.mu.Lock()
	cancel, pending := r.cancel, r.pending
	r.cancel, r.pending = false, nil
	state := r.state
	r.mu.Unlock()

	if cancel && state == Targeting {
		if !r.arm.SetJointTarget(0, 0) {
			r.diag.Report("Arm retract on release was rejected", true)
		}
		state = Idle
	}

	var selected Pose2
	if pending != nil {
		selected = SelectTarget(*pending, r.heading.Yaw())
		if !r.arm.SetTaskTarget(selected.X, selected.Y) {
			// the command stays active so release still retracts
			r.diag.Report(fmt.Sprintf("Preset %q could not be reached at (%.2f, %.2f)",
				pending.Name, selected.X, selected.Y), false)
		}
		state = Targeting
	}

	r.mu.Lock()
	r.state = state
	if pending != nil {
		r.active = *pending
		r.selected = selected
	}
	r.mu.Unlock()
}

// Retract drops any pending request, returns to Idle and commands the neutral pose
// once, whatever the state. It runs on the control goroutine, for shutdown.
func (r *Resolver) Retract() bool {
	r.mu.Lock()
	r.cancel, r.pending = false, nil
	r.state = Idle
	r.mu.Unlock()

	if !r.arm.SetJointTarget(0, 0) {
		r.diag.Report("Arm retract on shutdown was rejected", true)
		return false
	}
	return true
}

// State returns the current lifecycle state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Active returns the target being held and the pose selected for it.
// ok is false when the resolver is Idle.
func (r *Resolver) Active() (t Target, selected Pose2, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Targeting {
		return Target{}, Pose2{}, false
	}
	return r.active, r.selected, true
}
