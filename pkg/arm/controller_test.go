package arm

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargedpika/2023-Charged-Up/pkg/control"
)

type command struct {
	kind  string
	id    ActuatorID
	value float64
}

type fakeActuators struct {
	commands []command
	err      error
}

func (f *fakeActuators) SetVoltage(_ context.Context, id ActuatorID, volts float64) error {
	f.commands = append(f.commands, command{"voltage", id, volts})
	return f.err
}

func (f *fakeActuators) SetPosition(_ context.Context, id ActuatorID, value float64) error {
	f.commands = append(f.commands, command{"position", id, value})
	return f.err
}

type fakePosition struct {
	angle float64
	err   error
}

func (f *fakePosition) ReadAbsoluteAngle(context.Context) (float64, error) {
	return f.angle, f.err
}

type report struct {
	message string
	fatal   bool
}

type recorder struct {
	reports []report
}

func (r *recorder) Report(message string, fatal bool) {
	r.reports = append(r.reports, report{message, fatal})
}

func testConfig() ControllerConfig {
	return ControllerConfig{
		Envelope:   DefaultEnvelope(),
		AngleGains: control.PIDConfig{Kp: 0.1},
		MaxVoltage: 12,
		Period:     20 * time.Millisecond,
	}
}

func newTestController(t *testing.T) (*Controller, *fakeActuators, *fakePosition, *recorder) {
	t.Helper()
	act := &fakeActuators{}
	pos := &fakePosition{}
	rec := &recorder{}
	c, err := NewController(testConfig(), act, pos, rec)
	require.NoError(t, err)
	return c, act, pos, rec
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *ControllerConfig)
	}{
		{"bad envelope", func(cfg *ControllerConfig) { cfg.Envelope.MaxAngle = 400 }},
		{"no gains", func(cfg *ControllerConfig) { cfg.AngleGains = control.PIDConfig{} }},
		{"no voltage", func(cfg *ControllerConfig) { cfg.MaxVoltage = 0 }},
		{"no period", func(cfg *ControllerConfig) { cfg.Period = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			_, err := NewController(cfg, &fakeActuators{}, &fakePosition{}, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestControllerStartsNeutral(t *testing.T) {
	c, _, _, _ := newTestController(t)
	assert.Equal(t, JointSetpoint{}, c.Setpoint())
	assert.True(t, c.LastValidation())
}

func TestSetTaskTargetAccepted(t *testing.T) {
	c, _, _, rec := newTestController(t)

	require.True(t, c.SetTaskTarget(64, 57.69))
	assert.True(t, c.LastValidation())
	assert.Empty(t, rec.reports)

	sp := c.Setpoint()
	assert.InDelta(t, math.Hypot(64, 11.69)-36, sp.Extension, 1e-9)
	assert.InDelta(t, math.Atan(11.69/64)*180/math.Pi, sp.Angle, 1e-9)

	pose := c.Snapshot().Pose
	assert.InDelta(t, 64, pose.X, 1e-9)
	assert.InDelta(t, 57.69, pose.Y, 1e-9)
}

func TestSetTaskTargetAboveMaxHeightKeepsSetpoint(t *testing.T) {
	c, _, _, rec := newTestController(t)
	require.True(t, c.SetTaskTarget(45.41, 41.97))
	before := c.Setpoint()

	assert.False(t, c.SetTaskTarget(40, 78.5))
	assert.Equal(t, before, c.Setpoint())
	assert.False(t, c.LastValidation())
	require.Len(t, rec.reports, 1)
	assert.False(t, rec.reports[0].fatal)
	assert.Contains(t, rec.reports[0].message, "illegal target arm position")
}

func TestSetTaskTargetRejections(t *testing.T) {
	tests := []struct {
		name    string
		x, y    float64
		message string
	}{
		{"singular above pivot", 0, 60, "no arm solution"},
		{"reachable pose but over extended", 60, 0, "illegal arm kinematic position"},
		{"inside minimum extension", 10, 46, "illegal arm kinematic position"},
		{"beyond reach", 90, 40, "illegal target arm position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _, rec := newTestController(t)
			assert.False(t, c.SetTaskTarget(tt.x, tt.y))
			assert.Equal(t, JointSetpoint{}, c.Setpoint())
			require.Len(t, rec.reports, 1)
			assert.Contains(t, rec.reports[0].message, tt.message)
		})
	}
}

func TestSetJointTarget(t *testing.T) {
	c, _, _, _ := newTestController(t)

	require.True(t, c.SetJointTarget(10, 30))
	assert.Equal(t, JointSetpoint{Angle: 30, Extension: 10}, c.Setpoint())

	assert.False(t, c.SetJointTarget(40, 0))
	assert.False(t, c.SetJointTarget(10, 181))
	// legal joint pair whose pose drops below the floor
	assert.False(t, c.SetJointTarget(30, -60))
	assert.Equal(t, JointSetpoint{Angle: 30, Extension: 10}, c.Setpoint())

	require.True(t, c.Retract())
	assert.Equal(t, JointSetpoint{}, c.Setpoint())
	assert.True(t, c.LastValidation())
}

func TestTickEmitsOneCommandPerLoop(t *testing.T) {
	c, act, pos, _ := newTestController(t)
	require.True(t, c.SetJointTarget(12, 0))
	pos.angle = 350

	c.Tick(context.Background())

	require.Len(t, act.commands, 2)
	assert.Equal(t, "voltage", act.commands[0].kind)
	assert.Equal(t, ArmAngle, act.commands[0].id)
	assert.InDelta(t, 1.0, act.commands[0].value, 1e-9)
	assert.Equal(t, command{"position", ArmWinch, 12}, act.commands[1])

	assert.InDelta(t, -10, c.MeasuredAngle(), 1e-9)
	assert.InDelta(t, 1.0, c.AngleVoltage(), 1e-9)
}

func TestTickClampsVoltage(t *testing.T) {
	act := &fakeActuators{}
	pos := &fakePosition{angle: 90}
	cfg := testConfig()
	cfg.AngleGains.Kp = 10
	c, err := NewController(cfg, act, pos, nil)
	require.NoError(t, err)

	c.Tick(context.Background())
	assert.Equal(t, -12.0, act.commands[0].value)
}

func TestTickReadFailureHoldsZeroVolts(t *testing.T) {
	c, act, pos, rec := newTestController(t)
	pos.err = errors.New("bus timeout")

	c.Tick(context.Background())

	require.Len(t, act.commands, 2)
	assert.Equal(t, 0.0, act.commands[0].value)
	require.Len(t, rec.reports, 1)
	assert.Contains(t, rec.reports[0].message, "bus timeout")
}

func TestTickReportsActuatorErrors(t *testing.T) {
	c, act, _, rec := newTestController(t)
	act.err = errors.New("stalled")

	c.Tick(context.Background())

	assert.Len(t, act.commands, 2)
	assert.Len(t, rec.reports, 2)
}

func TestAngleErrorNeverCrossesStraightDown(t *testing.T) {
	tests := []struct {
		name             string
		target, measured float64
		expected         float64
	}{
		{"small front error", 0, -10, 10},
		{"across the rear horizontal", 178.76, -179, -2.24},
		{"rear low to front low goes over the top", -10, -130, -240},
		{"front low to rear low goes over the top", -130, -10, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, angleError(tt.target, tt.measured), 1e-9)
		})
	}
}

func TestHaltZeroesAngleVoltage(t *testing.T) {
	c, act, pos, _ := newTestController(t)
	require.True(t, c.SetJointTarget(0, 30))
	pos.angle = 0
	c.Tick(context.Background())
	require.NotZero(t, c.AngleVoltage())

	require.NoError(t, c.Halt(context.Background()))
	assert.Equal(t, command{"voltage", ArmAngle, 0}, act.commands[len(act.commands)-1])
	assert.Equal(t, 0.0, c.AngleVoltage())

	act.err = errors.New("bus timeout")
	err := c.Halt(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus timeout")
}

func TestSetJointTargetKeepsClearOfSeam(t *testing.T) {
	tests := []struct {
		angle    float64
		expected bool
	}{
		{-90, false},
		{-89, false},
		{-76, false},
		{-104, false},
		{-74, true},
		{-106, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v deg", tt.angle), func(t *testing.T) {
			c, _, _, rec := newTestController(t)
			assert.Equal(t, tt.expected, c.SetJointTarget(5, tt.angle))
			if !tt.expected {
				require.Len(t, rec.reports, 1)
				assert.Contains(t, rec.reports[0].message, "straight down")
			}
		})
	}
}
