package arm

import "context"

// ActuatorID names an actuator channel owned by the arm controller.
type ActuatorID string

// Actuators driven by the arm.
const (
	ArmAngle ActuatorID = "arm_angle"
	ArmWinch ActuatorID = "arm_winch"
)

// ActuatorSink accepts actuation commands. Commands are best-effort and are not retried.
type ActuatorSink interface {
	SetVoltage(ctx context.Context, id ActuatorID, volts float64) error
	SetPosition(ctx context.Context, id ActuatorID, value float64) error
}

// PositionSource reports the arm's absolute angle in degrees, in [0, 360).
type PositionSource interface {
	ReadAbsoluteAngle(ctx context.Context) (float64, error)
}

// HeadingSource reports the chassis yaw in degrees.
type HeadingSource interface {
	Yaw() float64
}

// DiagnosticsSink receives one-way diagnostic messages. It never affects control flow.
type DiagnosticsSink interface {
	Report(message string, fatal bool)
}

// HeadingFunc adapts a function to a HeadingSource.
type HeadingFunc func() float64

// Yaw implements HeadingSource.
func (f HeadingFunc) Yaw() float64 { return f() }
