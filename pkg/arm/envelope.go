package arm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// SeamClearance is the closest a setpoint may come to straight down (-90 degrees),
// where the angle loop wraps.
const SeamClearance = 15.0

// Envelope holds the static geometric limits of the arm. Lengths are in inches, angles in degrees.
type Envelope struct {
	MaxReach      float64 `json:"max_reach" mapstructure:"max_reach"`
	MaxHeight     float64 `json:"max_height" mapstructure:"max_height"`
	MaxAngle      float64 `json:"max_angle" mapstructure:"max_angle"`
	MinExtension  float64 `json:"min_extension" mapstructure:"min_extension"`
	MaxExtension  float64 `json:"max_extension" mapstructure:"max_extension"`
	JointToFloor  float64 `json:"joint_to_floor" mapstructure:"joint_to_floor"`
	JointToBumper float64 `json:"joint_to_bumper" mapstructure:"joint_to_bumper"`
}

// DefaultEnvelope returns the limits of the competition arm.
func DefaultEnvelope() Envelope {
	return Envelope{
		MaxReach:      48.0,
		MaxHeight:     78.0,
		MaxAngle:      180.0,
		MinExtension:  36.0,
		MaxExtension:  32.0,
		JointToFloor:  46.0,
		JointToBumper: 20.0,
	}
}

// Kinematics returns the kinematic model for this envelope.
func (e Envelope) Kinematics() Kinematics {
	return Kinematics{FloorOffset: e.JointToFloor}
}

// Validate checks that the envelope is self-consistent. It returns an error wrapping
// ErrConfiguration on failure; callers must not run with an invalid envelope.
func (e Envelope) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"max_reach", e.MaxReach},
		{"max_height", e.MaxHeight},
		{"max_angle", e.MaxAngle},
		{"min_extension", e.MinExtension},
		{"max_extension", e.MaxExtension},
		{"joint_to_floor", e.JointToFloor},
		{"joint_to_bumper", e.JointToBumper},
	}
	for _, f := range fields {
		if !finite(f.value) {
			return configErrorf("%s is not finite (%v)", f.name, f.value)
		}
		if f.value < 0 {
			return configErrorf("%s must not be negative (%v)", f.name, f.value)
		}
	}

	switch {
	case e.MaxReach == 0:
		return configErrorf("max_reach must be positive")
	case e.MaxHeight == 0:
		return configErrorf("max_height must be positive")
	case e.MaxExtension == 0:
		return configErrorf("max_extension must be positive")
	case e.MaxAngle == 0 || e.MaxAngle > 180:
		return configErrorf("max_angle must be in (0, 180], got %v", e.MaxAngle)
	case e.JointToFloor > e.MaxHeight:
		return configErrorf("joint_to_floor (%v) above max_height (%v)", e.JointToFloor, e.MaxHeight)
	}

	// the retract pose must always be commandable
	if err := e.checkSetpoint(JointSetpoint{}); err != nil {
		return errors.Wrap(ErrConfiguration, err.Error())
	}
	return nil
}

// CheckPose returns nil if the grab point lies inside the envelope.
// X is bounded symmetrically by the reach plus the bumper clearance.
func (e Envelope) CheckPose(p Pose2) error {
	if !finite(p.X) || !finite(p.Y) {
		return domainErrorf("non-finite pose (%v, %v)", p.X, p.Y)
	}
	if limit := e.MaxReach + e.JointToBumper; math.Abs(p.X) > limit {
		return domainErrorf("x %.2f beyond reach limit %.2f", p.X, limit)
	}
	if p.Y < 0 {
		return domainErrorf("y %.2f below floor", p.Y)
	}
	if p.Y > e.MaxHeight {
		return domainErrorf("y %.2f above max height %.2f", p.Y, e.MaxHeight)
	}
	return nil
}

// CheckJoint returns nil if the joint pair is within its limits.
// Extension is measured past the minimum extension.
func (e Envelope) CheckJoint(extension, angleDeg float64) error {
	if !finite(extension) || !finite(angleDeg) {
		return domainErrorf("non-finite joint (%v in, %v deg)", extension, angleDeg)
	}
	if extension < 0 || extension > e.MaxExtension {
		return domainErrorf("extension %.2f outside [0, %.2f]", extension, e.MaxExtension)
	}
	if math.Abs(angleDeg) > e.MaxAngle {
		return domainErrorf("angle %.2f beyond ±%.2f", angleDeg, e.MaxAngle)
	}
	return nil
}

// IsLegalPose reports whether the grab point lies inside the envelope.
func (e Envelope) IsLegalPose(p Pose2) bool {
	return e.CheckPose(p) == nil
}

// IsLegalJoint reports whether the joint pair is within its limits.
func (e Envelope) IsLegalJoint(extension, angleDeg float64) bool {
	return e.CheckJoint(extension, angleDeg) == nil
}

// checkSetpoint validates a joint setpoint, its distance from the angle loop seam and
// the pose it maps to.
func (e Envelope) checkSetpoint(sp JointSetpoint) error {
	if err := e.CheckJoint(sp.Extension, sp.Angle); err != nil {
		return err
	}
	if d := math.Abs(angle.Normalize180(sp.Angle + 90)); d < SeamClearance {
		return domainErrorf("angle %.2f within %.0f deg of straight down", sp.Angle, SeamClearance)
	}
	return e.CheckPose(e.PoseOf(sp))
}

// Solve resolves a grab point to the joint setpoint that reaches it. The pose, the
// inverse kinematics and the resulting setpoint are each checked; the error says
// which stage failed and wraps ErrDomain.
func (e Envelope) Solve(p Pose2) (JointSetpoint, error) {
	if err := e.CheckPose(p); err != nil {
		return JointSetpoint{}, errors.Wrap(err, "illegal target arm position")
	}

	reach, angleDeg, err := e.Kinematics().Inverse(p)
	if err != nil {
		return JointSetpoint{}, errors.Wrap(err, "no arm solution")
	}

	sp := JointSetpoint{Angle: angleDeg, Extension: reach - e.MinExtension}
	if err := e.checkSetpoint(sp); err != nil {
		return JointSetpoint{}, errors.Wrapf(err, "illegal arm kinematic position (%.2f in, %.2f deg)",
			sp.Extension, sp.Angle)
	}
	return sp, nil
}

// PoseOf returns the grab point of a joint setpoint.
func (e Envelope) PoseOf(sp JointSetpoint) Pose2 {
	return e.Kinematics().Forward(sp.Extension+e.MinExtension, sp.Angle)
}
