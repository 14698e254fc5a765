// Package robot provides the robot's configuration and the Feetech servo rig that
// drives a bench arm.
package robot

import "github.com/chargedpika/2023-Charged-Up/pkg/arm"

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the bench arm.
const (
	ArmAngle MotorName = MotorName(arm.ArmAngle)
	ArmWinch MotorName = MotorName(arm.ArmWinch)
)

// AllMotors returns all motor names in order (matching servo IDs 1-2).
func AllMotors() []MotorName {
	return []MotorName{
		ArmAngle,
		ArmWinch,
	}
}
