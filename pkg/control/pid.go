// Package control implements the per-tick feedback loops used by the arm.
package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// PIDConfig holds gains and limits for a PID loop.
type PIDConfig struct {
	Kp float64 `json:"kp" mapstructure:"kp"`
	Ki float64 `json:"ki" mapstructure:"ki"`
	Kd float64 `json:"kd" mapstructure:"kd"`

	// IntegralLimit bounds the accumulated integral term. Zero disables the bound.
	IntegralLimit float64 `json:"integral_limit" mapstructure:"integral_limit"`
	// OutputLimit bounds the output symmetrically. Zero disables the bound.
	OutputLimit float64 `json:"output_limit" mapstructure:"output_limit"`
}

// Validate checks that gains and limits are finite and limits are not negative.
func (c PIDConfig) Validate() error {
	for name, v := range map[string]float64{
		"kp": c.Kp, "ki": c.Ki, "kd": c.Kd,
		"integral_limit": c.IntegralLimit, "output_limit": c.OutputLimit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("pid %s is not finite", name)
		}
	}
	if c.IntegralLimit < 0 || c.OutputLimit < 0 {
		return errors.New("pid limits must not be negative")
	}
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		return errors.New("pid should have at least one of kp, ki or kd")
	}
	return nil
}

// PID is a discrete PID controller. It is not safe for concurrent use; the
// owning loop calls it once per tick.
type PID struct {
	cfg      PIDConfig
	integral float64
	prevErr  float64
	primed   bool
}

// NewPID returns a PID loop with the given gains.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// Next returns the output for one step with the given setpoint, measurement and period.
func (p *PID) Next(setpoint, measured float64, dt time.Duration) float64 {
	return p.NextError(setpoint-measured, dt)
}

// NextError returns the output for a precomputed error term.
func (p *PID) NextError(err float64, dt time.Duration) float64 {
	dtS := dt.Seconds()
	if dtS <= 0 {
		return clamp(p.cfg.Kp*err, p.cfg.OutputLimit)
	}

	p.integral += p.cfg.Ki * err * dtS
	p.integral = clamp(p.integral, p.cfg.IntegralLimit)

	deriv := 0.0
	if p.primed {
		deriv = (err - p.prevErr) / dtS
	}
	p.prevErr = err
	p.primed = true

	return clamp(p.cfg.Kp*err+p.integral+p.cfg.Kd*deriv, p.cfg.OutputLimit)
}

// Reset clears the integral and derivative history.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.primed = false
}

// Config returns the loop's gains.
func (p *PID) Config() PIDConfig {
	return p.cfg
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Min(math.Max(v, -limit), limit)
}
