package robot

import (
	"math"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// CountsPerRevolution is the resolution of an STS servo encoder.
const CountsPerRevolution = 4096

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id" mapstructure:"id"`
	DriveMode    int `json:"drive_mode" mapstructure:"drive_mode"`
	HomingOffset int `json:"homing_offset" mapstructure:"homing_offset"`
	RangeMin     int `json:"range_min" mapstructure:"range_min"`
	RangeMax     int `json:"range_max" mapstructure:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// Degrees converts a raw servo position to an absolute angle in [0, 360).
// HomingOffset is the raw position at 0 degrees; DriveMode 1 reverses the direction.
func (c MotorCalibration) Degrees(raw int) float64 {
	d := float64(raw-c.HomingOffset) * 360 / CountsPerRevolution
	if c.DriveMode != 0 {
		d = -d
	}
	return angle.Normalize360(d)
}

// RawForDegrees converts an angle to the nearest raw servo position inside the range.
func (c MotorCalibration) RawForDegrees(deg float64) int {
	d := angle.Normalize180(deg)
	if c.DriveMode != 0 {
		d = -d
	}
	raw := int(math.Round(d*CountsPerRevolution/360)) + c.HomingOffset
	raw = ((raw % CountsPerRevolution) + CountsPerRevolution) % CountsPerRevolution
	return c.clamp(raw)
}

// Fraction converts a raw servo position to its place in the range, 0 at RangeMin and 1 at RangeMax.
func (c MotorCalibration) Fraction(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return math.Min(math.Max(float64(raw-c.RangeMin)/rangeSize, 0), 1)
}

// RawAt converts a fraction of the range to a raw servo position.
func (c MotorCalibration) RawAt(fraction float64) int {
	fraction = math.Min(math.Max(fraction, 0), 1)
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int(math.Round(fraction*rangeSize)) + c.RangeMin
}

func (c MotorCalibration) clamp(raw int) int {
	if c.RangeMax <= c.RangeMin {
		return raw
	}
	return min(max(raw, c.RangeMin), c.RangeMax)
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllMotors() to ensure consistent ordering
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}

// DefaultCalibration returns a calibration for servos 1 and 2 homed at mid-travel.
func DefaultCalibration() Calibration {
	return Calibration{
		ArmAngle: {ID: 1, HomingOffset: 2048, RangeMin: 0, RangeMax: 4095},
		ArmWinch: {ID: 2, HomingOffset: 0, RangeMin: 1024, RangeMax: 3072},
	}
}
