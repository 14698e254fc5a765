package arm

import (
	"math"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// Pose2 is a grab-point position in inches.
// Y = 0 is the floor and X = 0 is directly above the pivot.
type Pose2 struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// Mirror returns the pose reflected across the vertical through the pivot.
func (p Pose2) Mirror() Pose2 {
	return Pose2{X: -p.X, Y: p.Y}
}

// Kinematics maps between joint space (reach, angle) and task space.
// Reach is the full pivot-to-grab-point distance; angle is in degrees.
type Kinematics struct {
	FloorOffset float64
}

// Forward returns the grab point for a reach and angle.
func (k Kinematics) Forward(reach, angleDeg float64) Pose2 {
	rad := angle.Radians(angleDeg)
	return Pose2{
		X: math.Cos(rad) * reach,
		Y: math.Sin(rad)*reach + k.FloorOffset,
	}
}

// Inverse returns the reach and angle that place the grab point at p.
//
// For x > 0 the angle is atan(dy/x). For x < 0 the arm is past vertical and the
// angle is carried around the full circle so that Forward(Inverse(p)) == p.
// x == 0 has no defined angle and returns ErrSingularInput.
func (k Kinematics) Inverse(p Pose2) (reach, angleDeg float64, err error) {
	if !finite(p.X) || !finite(p.Y) {
		return 0, 0, domainErrorf("non-finite target (%v, %v)", p.X, p.Y)
	}
	if p.X == 0 {
		return 0, 0, singularErrorf("target (%v, %v) is directly above the pivot", p.X, p.Y)
	}

	dy := p.Y - k.FloorOffset
	reach = math.Hypot(p.X, dy)
	angleDeg = angle.Degrees(math.Atan2(dy, p.X))
	return reach, angleDeg, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
