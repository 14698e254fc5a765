// Package arm implements kinematics, envelope checks, target resolution and setpoint
// control for a two-degree-of-freedom arm: a pivot angle and a telescoping extension.
package arm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
	"github.com/chargedpika/2023-Charged-Up/pkg/control"
)

// JointSetpoint is a joint-space target. Extension is measured past the minimum extension.
type JointSetpoint struct {
	Angle     float64 `json:"angle_deg"`
	Extension float64 `json:"extension_in"`
}

// ControllerConfig holds the static parameters of the setpoint controller.
type ControllerConfig struct {
	Envelope   Envelope
	AngleGains control.PIDConfig
	MaxVoltage float64
	Period     time.Duration
}

// Snapshot is a consistent view of the controller's commanded and measured state.
type Snapshot struct {
	Setpoint       JointSetpoint
	Pose           Pose2
	MeasuredAngle  float64
	AngleVoltage   float64
	LastValidation bool
}

// Controller owns the arm's joint setpoint and runs its feedback loops once per tick.
// It is the single writer of the ArmAngle and ArmWinch actuators.
type Controller struct {
	env        Envelope
	anglePID   *control.PID
	maxVoltage float64
	period     time.Duration

	actuators ActuatorSink
	position  PositionSource
	diag      DiagnosticsSink

	// mu guards the setpoint pair and the exposed state
	mu        sync.Mutex
	setpoint  JointSetpoint
	measured  float64
	voltage   float64
	lastValid bool
}

// NewController validates the envelope and returns a controller holding the neutral setpoint.
func NewController(cfg ControllerConfig, actuators ActuatorSink, position PositionSource, diag DiagnosticsSink) (*Controller, error) {
	if err := cfg.Envelope.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.AngleGains.Validate(); err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	if cfg.MaxVoltage <= 0 {
		return nil, configErrorf("max voltage must be positive, got %v", cfg.MaxVoltage)
	}
	if cfg.Period <= 0 {
		return nil, configErrorf("tick period must be positive, got %v", cfg.Period)
	}
	if actuators == nil || position == nil {
		return nil, configErrorf("actuator sink and position source are required")
	}
	if diag == nil {
		diag = discard{}
	}

	return &Controller{
		env:        cfg.Envelope,
		anglePID:   control.NewPID(cfg.AngleGains),
		maxVoltage: cfg.MaxVoltage,
		period:     cfg.Period,
		actuators:  actuators,
		position:   position,
		diag:       diag,
		lastValid:  true,
	}, nil
}

// Envelope returns the controller's static limits.
func (c *Controller) Envelope() Envelope {
	return c.env
}

// SetJointTarget replaces the setpoint if the joint pair and the pose it maps to are legal.
// On failure the previous setpoint is kept and the reason is reported.
func (c *Controller) SetJointTarget(extension, angleDeg float64) bool {
	sp := JointSetpoint{Angle: angleDeg, Extension: extension}
	if err := c.env.checkSetpoint(sp); err != nil {
		c.reject(fmt.Sprintf("Illegal arm joint setpoint (%.2f in, %.2f deg): %v", extension, angleDeg, err))
		return false
	}
	c.apply(sp)
	return true
}

// SetTaskTarget moves the grab point to (x, y) using Envelope.Solve.
func (c *Controller) SetTaskTarget(x, y float64) bool {
	sp, err := c.env.Solve(Pose2{X: x, Y: y})
	if err != nil {
		c.reject(fmt.Sprintf("Arm target (%.2f, %.2f) rejected: %v", x, y, err))
		return false
	}
	c.apply(sp)
	return true
}

func (c *Controller) apply(sp JointSetpoint) {
	c.mu.Lock()
	c.setpoint = sp
	c.lastValid = true
	c.mu.Unlock()
}

// Retract commands the neutral pose (angle 0, extension 0).
func (c *Controller) Retract() bool {
	return c.SetJointTarget(0, 0)
}

// Tick runs both feedback loops once. The angle loop emits one voltage command and the
// extension loop one position command. Actuator errors are reported, never retried.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	sp := c.setpoint
	c.mu.Unlock()

	volts := 0.0
	raw, err := c.position.ReadAbsoluteAngle(ctx)
	if err != nil {
		c.diag.Report(fmt.Sprintf("Arm angle read failed, holding 0 V: %v", err), false)
	} else {
		measured := angle.Normalize180(raw)
		volts = angle.SymmetricClamp(c.anglePID.NextError(angleError(sp.Angle, measured), c.period), c.maxVoltage)

		c.mu.Lock()
		c.measured = measured
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.voltage = volts
	c.mu.Unlock()

	if err := c.actuators.SetVoltage(ctx, ArmAngle, volts); err != nil {
		c.diag.Report(fmt.Sprintf("Arm angle command failed: %v", err), false)
	}
	if err := c.actuators.SetPosition(ctx, ArmWinch, sp.Extension); err != nil {
		c.diag.Report(fmt.Sprintf("Arm winch command failed: %v", err), false)
	}
}

// Halt commands 0 V to the angle motor and resets the angle loop. The winch keeps
// its last position. Call it after the final Tick so the pivot is not left driven.
func (c *Controller) Halt(ctx context.Context) error {
	c.anglePID.Reset()
	c.mu.Lock()
	c.voltage = 0
	c.mu.Unlock()
	return errors.Wrap(c.actuators.SetVoltage(ctx, ArmAngle, 0), "halt arm angle")
}

// Setpoint returns the current joint setpoint.
func (c *Controller) Setpoint() JointSetpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

// MeasuredAngle returns the last measured arm angle in (-180, 180].
func (c *Controller) MeasuredAngle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measured
}

// AngleVoltage returns the last voltage commanded to the angle motor.
func (c *Controller) AngleVoltage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voltage
}

// LastValidation returns the result of the most recent setpoint request.
func (c *Controller) LastValidation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastValid
}

// Snapshot returns the commanded and measured state under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Setpoint:       c.setpoint,
		Pose:           c.env.PoseOf(c.setpoint),
		MeasuredAngle:  c.measured,
		AngleVoltage:   c.voltage,
		LastValidation: c.lastValid,
	}
}

func (c *Controller) reject(msg string) {
	c.mu.Lock()
	c.lastValid = false
	c.mu.Unlock()
	c.diag.Report(msg, false)
}

// angleError returns target - measured in a frame whose seam points straight down,
// so the loop always swings the arm over the top and never through the chassis.
func angleError(target, measured float64) float64 {
	return angle.Normalize360(target+90) - angle.Normalize360(measured+90)
}

type discard struct{}

func (discard) Report(string, bool) {}
