// Package sim implements simulated arm and chassis hardware for running the control
// loop without a robot attached.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
)

// DefaultDegreesPerVoltSecond is the arm pivot rate per volt of the simulated motor.
const DefaultDegreesPerVoltSecond = 30.0

// Arm is a first-order arm plant: the pivot turns at a rate proportional to the applied
// voltage and the winch reaches its commanded extension within one step. A coasting arm
// ignores both.
type Arm struct {
	DegreesPerVoltSecond float64

	mu        sync.Mutex
	angle     float64
	volts     float64
	extension float64
	target    float64
	readErr   error
	coast     bool
}

// NewArm returns a plant resting at angle 0 with the winch fully retracted.
func NewArm() *Arm {
	return &Arm{DegreesPerVoltSecond: DefaultDegreesPerVoltSecond}
}

// SetVoltage implements arm.ActuatorSink.
func (a *Arm) SetVoltage(_ context.Context, id arm.ActuatorID, volts float64) error {
	if id != arm.ArmAngle {
		return errors.Errorf("actuator %q does not take a voltage", id)
	}
	a.mu.Lock()
	a.volts = volts
	a.mu.Unlock()
	return nil
}

// SetPosition implements arm.ActuatorSink.
func (a *Arm) SetPosition(_ context.Context, id arm.ActuatorID, value float64) error {
	if id != arm.ArmWinch {
		return errors.Errorf("actuator %q does not take a position", id)
	}
	a.mu.Lock()
	a.target = value
	a.mu.Unlock()
	return nil
}

// ReadAbsoluteAngle implements arm.PositionSource.
func (a *Arm) ReadAbsoluteAngle(context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readErr != nil {
		return 0, a.readErr
	}
	return angle.Normalize360(a.angle), nil
}

// FailReads makes ReadAbsoluteAngle return err until called again with nil.
func (a *Arm) FailReads(err error) {
	a.mu.Lock()
	a.readErr = err
	a.mu.Unlock()
}

// Step advances the plant by dt.
func (a *Arm) Step(dt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coast {
		return
	}
	a.angle = angle.Normalize180(a.angle + a.volts*a.DegreesPerVoltSecond*dt.Seconds())
	a.extension = a.target
}

// Angle returns the pivot angle in (-180, 180].
func (a *Arm) Angle() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angle
}

// SetAngle places the pivot at deg.
func (a *Arm) SetAngle(deg float64) {
	a.mu.Lock()
	a.angle = angle.Normalize180(deg)
	a.mu.Unlock()
}

// Extension returns the winch extension past the minimum.
func (a *Arm) Extension() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.extension
}

// Voltage returns the last voltage applied to the pivot.
func (a *Arm) Voltage() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volts
}

// SetBrake implements teleop.Brake.
func (a *Arm) SetBrake(_ context.Context, brake bool) error {
	a.mu.Lock()
	a.coast = !brake
	a.mu.Unlock()
	return nil
}

// Braked reports whether the plant follows its commands.
func (a *Arm) Braked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.coast
}

// Gyro is a simulated yaw sensor.
type Gyro struct {
	mu  sync.Mutex
	yaw float64
}

// Yaw implements arm.HeadingSource and drive.HeadingSource.
func (g *Gyro) Yaw() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.yaw
}

// SetYaw overrides the heading.
func (g *Gyro) SetYaw(deg float64) {
	g.mu.Lock()
	g.yaw = angle.Normalize180(deg)
	g.mu.Unlock()
}

func (g *Gyro) turn(deg float64) {
	g.mu.Lock()
	g.yaw = angle.Normalize180(g.yaw + deg)
	g.mu.Unlock()
}

// Drivetrain is a simulated holonomic base that turns its gyro by the commanded rate.
type Drivetrain struct {
	gyro *Gyro

	mu      sync.Mutex
	linear  r3.Vector
	angular r3.Vector
	coast   bool
}

// NewDrivetrain returns a base turning gyro.
func NewDrivetrain(gyro *Gyro) *Drivetrain {
	return &Drivetrain{gyro: gyro}
}

// SetVelocity implements drive.Drivetrain.
func (d *Drivetrain) SetVelocity(_ context.Context, linear, angular r3.Vector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.coast && linear == (r3.Vector{}) && angular == (r3.Vector{}) {
		return nil
	}
	d.linear = linear
	d.angular = angular
	return nil
}

// Velocity returns the velocities the base is moving at.
func (d *Drivetrain) Velocity() (linear, angular r3.Vector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.linear, d.angular
}

// SetBrake implements teleop.Brake. A coasting base keeps turning at its last rate
// after a zero command instead of stopping.
func (d *Drivetrain) SetBrake(_ context.Context, brake bool) error {
	d.mu.Lock()
	d.coast = !brake
	d.mu.Unlock()
	return nil
}

// Braked reports whether the base stops on a zero command.
func (d *Drivetrain) Braked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.coast
}

// Step advances the base by dt.
func (d *Drivetrain) Step(dt time.Duration) {
	_, angular := d.Velocity()
	d.gyro.turn(angular.Z * dt.Seconds())
}

// World bundles the simulated hardware of one robot.
type World struct {
	Arm        *Arm
	Gyro       *Gyro
	Drivetrain *Drivetrain
}

// NewWorld returns a robot at rest facing heading 0.
func NewWorld() *World {
	gyro := &Gyro{}
	return &World{
		Arm:        NewArm(),
		Gyro:       gyro,
		Drivetrain: NewDrivetrain(gyro),
	}
}

// Step advances every plant by dt.
func (w *World) Step(dt time.Duration) {
	w.Arm.Step(dt)
	w.Drivetrain.Step(dt)
}
