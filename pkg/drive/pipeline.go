// Package drive turns planar velocity and rotation intent into framed, speed-limited
// drivetrain commands and dead-reckons the chassis pose from them.
package drive

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// ChassisIntent is a chassis velocity command: VX forward and VY left in m/s,
// Omega counter-clockwise in deg/s.
type ChassisIntent struct {
	VX    float64
	VY    float64
	Omega float64
	Turbo bool
}

func (c ChassisIntent) finite() bool {
	for _, v := range []float64{c.VX, c.VY, c.Omega} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Limits bounds the linear (m/s) and angular (deg/s) speed of the chassis.
type Limits struct {
	Linear  float64 `json:"linear" mapstructure:"linear"`
	Angular float64 `json:"angular" mapstructure:"angular"`
}

// Modes holds the speed limits for normal and turbo driving.
type Modes struct {
	Normal Limits `json:"normal" mapstructure:"normal"`
	Turbo  Limits `json:"turbo" mapstructure:"turbo"`
}

// DefaultModes returns the competition speed limits.
func DefaultModes() Modes {
	return Modes{
		Normal: Limits{Linear: 5.0, Angular: 540.0},
		Turbo:  Limits{Linear: 5.5, Angular: 540.0},
	}
}

// Validate checks that every limit is finite and positive.
func (m Modes) Validate() error {
	for name, v := range map[string]float64{
		"normal.linear": m.Normal.Linear, "normal.angular": m.Normal.Angular,
		"turbo.linear": m.Turbo.Linear, "turbo.angular": m.Turbo.Angular,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return errors.Errorf("drive limit %s must be positive, got %v", name, v)
		}
	}
	return nil
}

// Drivetrain accepts chassis velocities: linear X/Y in m/s, angular Z in deg/s.
type Drivetrain interface {
	SetVelocity(ctx context.Context, linear, angular r3.Vector) error
}

// HeadingSource reports the chassis yaw in degrees, counter-clockwise positive.
type HeadingSource interface {
	Yaw() float64
}

// Request is one tick of driver or planner input.
type Request struct {
	Intent        ChassisIntent
	FieldOriented bool
	Stop          bool
}

// Pipeline produces one feasible chassis command per tick.
type Pipeline struct {
	modes   Modes
	heading HeadingSource
	drive   Drivetrain
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	limits Limits
	last   ChassisIntent
}

// NewPipeline returns a pipeline starting in normal mode.
func NewPipeline(modes Modes, heading HeadingSource, drive Drivetrain, logger *zap.SugaredLogger) (*Pipeline, error) {
	if err := modes.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		modes:   modes,
		heading: heading,
		drive:   drive,
		logger:  logger,
		limits:  modes.Normal,
	}, nil
}

// SetMaxSpeed caches the bounds used for the rest of the tick.
func (p *Pipeline) SetMaxSpeed(linear, angular float64) {
	p.mu.Lock()
	p.limits = Limits{Linear: math.Abs(linear), Angular: math.Abs(angular)}
	p.mu.Unlock()
}

// SelectMode resolves this tick's bounds from the turbo flag.
func (p *Pipeline) SelectMode(turbo bool) {
	l := p.modes.Normal
	if turbo {
		l = p.modes.Turbo
	}
	p.SetMaxSpeed(l.Linear, l.Angular)
}

// MaxSpeed returns the bounds cached for the current tick.
func (p *Pipeline) MaxSpeed() Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limits
}

// RobotOriented passes a robot-relative command through unchanged.
func (p *Pipeline) RobotOriented(vx, vy, omega float64) ChassisIntent {
	return ChassisIntent{VX: vx, VY: vy, Omega: omega}
}

// FieldOriented rotates a field-relative (vx, vy) by -heading into the robot frame.
// With heading 90 a field +X command becomes robot (0, -1). Omega is unchanged.
func (p *Pipeline) FieldOriented(vx, vy, omega, heading float64) ChassisIntent {
	rad := angle.Radians(-heading)
	sin, cos := math.Sincos(rad)
	return ChassisIntent{
		VX:    vx*cos - vy*sin,
		VY:    vx*sin + vy*cos,
		Omega: omega,
	}
}

// Stop returns a zero command.
func (p *Pipeline) Stop() ChassisIntent {
	return ChassisIntent{}
}

// Tick resolves the speed mode, applies the frame transform, clamps to the active
// bounds and sends the result to the drivetrain. The command is recorded even when
// the drivetrain rejects it. A request or heading that is not finite sends Stop.
func (p *Pipeline) Tick(ctx context.Context, req Request) (ChassisIntent, error) {
	p.SelectMode(req.Intent.Turbo)

	in := req.Intent
	var out ChassisIntent
	switch {
	case req.Stop:
		out = p.Stop()
	case req.FieldOriented:
		out = p.FieldOriented(in.VX, in.VY, in.Omega, p.heading.Yaw())
	default:
		out = p.RobotOriented(in.VX, in.VY, in.Omega)
	}

	if !out.finite() {
		p.logger.Warnf("non-finite chassis command vx: %v, vy: %v, omega: %v, stopping", out.VX, out.VY, out.Omega)
		out = p.Stop()
	}

	limits := p.MaxSpeed()
	out.VX = angle.SymmetricClamp(out.VX, limits.Linear)
	out.VY = angle.SymmetricClamp(out.VY, limits.Linear)
	out.Omega = angle.SymmetricClamp(out.Omega, limits.Angular)
	out.Turbo = in.Turbo

	p.mu.Lock()
	p.last = out
	p.mu.Unlock()

	return out, p.send(ctx, out)
}

// Halt sends a zero command outside the normal tick, for shutdown.
func (p *Pipeline) Halt(ctx context.Context) error {
	p.mu.Lock()
	p.last = ChassisIntent{}
	p.mu.Unlock()
	return p.send(ctx, ChassisIntent{})
}

// Last returns the most recent command.
func (p *Pipeline) Last() ChassisIntent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Pipeline) send(ctx context.Context, c ChassisIntent) error {
	p.logger.Debugf("chassis velocity vx: %.2f, vy: %.2f (m/s), omega: %.2f (deg/s), turbo: %t",
		c.VX, c.VY, c.Omega, c.Turbo)
	err := p.drive.SetVelocity(ctx, r3.Vector{X: c.VX, Y: c.VY}, r3.Vector{Z: c.Omega})
	return errors.Wrap(err, "set chassis velocity")
}
