// Package chargedup is the motion core of a two-degree-of-freedom scoring arm
// (pivot angle and telescoping extension) on a holonomic drivetrain.
//
// Task-space grab-point targets are solved to joint setpoints under a safety
// envelope that never commands an unreachable pose, and planar drive intent is
// turned into framed, speed-limited chassis commands, all on a fixed-period loop.
//
// # Installation
//
//	go install github.com/chargedpika/2023-Charged-Up/cmd/chargedup@latest
//
// # Usage
//
// Try the loop against the simulated arm:
//
//	chargedup run --sim
//
// To drive a bench arm built from Feetech servos, find and calibrate it first:
//
//	chargedup setup
//	chargedup run
//
// Check where a preset lands:
//
//	chargedup solve --all --heading 0
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/chargedup: CLI with run, setup and solve commands
//   - pkg/angle: angle normalization and clamping
//   - pkg/arm: kinematics, envelope guard, target resolver and setpoint controller
//   - pkg/control: PID loop
//   - pkg/drive: drive command pipeline and dead-reckoning odometry
//   - pkg/diag: logging and the diagnostics sink
//   - pkg/robot: configuration, calibration and the Feetech servo rig
//   - pkg/sim: simulated arm, gyro and drivetrain
//   - pkg/teleop: fixed-rate control loop
package chargedup
