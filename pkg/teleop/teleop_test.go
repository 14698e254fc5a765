package teleop

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
	"github.com/chargedpika/2023-Charged-Up/pkg/diag"
	"github.com/chargedpika/2023-Charged-Up/pkg/drive"
	"github.com/chargedpika/2023-Charged-Up/pkg/robot"
	"github.com/chargedpika/2023-Charged-Up/pkg/sim"
)

type harness struct {
	ctl   *Controller
	world *sim.World
	clock *clock.Mock
	sink  *diag.Sink
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	world := sim.NewWorld()
	mock := clock.NewMock()
	sink := diag.NewSink(logger, 16)

	ctl, err := NewController(Config{
		Robot:     robot.DefaultConfig(),
		Clock:     mock,
		Logger:    logger,
		AfterTick: world.Step,
	}, Hardware{
		Actuators:   world.Arm,
		Position:    world.Arm,
		Heading:     world.Gyro,
		Drivetrain:  world.Drivetrain,
		Diagnostics: sink,
		Brakes:      []Brake{world.Arm, world.Drivetrain},
	})
	require.NoError(t, err)
	return &harness{ctl: ctl, world: world, clock: mock, sink: sink, logs: logs}
}

func (h *harness) tick(n int) State {
	var s State
	for range n {
		h.ctl.step(context.Background())
		s = <-h.ctl.States()
	}
	return s
}

// neutralCounter counts retract requests reaching the arm.
type neutralCounter struct {
	*arm.Controller
	writes int
}

func (n *neutralCounter) SetJointTarget(extension, angleDeg float64) bool {
	if extension == 0 && angleDeg == 0 {
		n.writes++
	}
	return n.Controller.SetJointTarget(extension, angleDeg)
}

func (h *harness) countNeutralWrites() *neutralCounter {
	n := &neutralCounter{Controller: h.ctl.arm}
	h.ctl.resolver = arm.NewResolver(n, h.world.Gyro, h.sink)
	return n
}

type brokenBrake struct{}

func (brokenBrake) SetBrake(context.Context, bool) error { return errors.New("brake line open") }

func TestNewControllerRejectsBadConfig(t *testing.T) {
	world := sim.NewWorld()
	hw := Hardware{Actuators: world.Arm, Position: world.Arm, Heading: world.Gyro, Drivetrain: world.Drivetrain}

	cfg := robot.DefaultConfig()
	cfg.Arm.MaxReach = -1
	_, err := NewController(Config{Robot: cfg}, hw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, arm.ErrConfiguration))

	_, err = NewController(Config{Robot: robot.DefaultConfig()}, Hardware{Actuators: world.Arm, Position: world.Arm})
	assert.Error(t, err)
}

func TestStepDrivesChassisAndTracksOdometry(t *testing.T) {
	h := newHarness(t)
	h.ctl.SetInput(drive.Request{Intent: drive.ChassisIntent{VX: 9}})

	s := h.tick(50)
	assert.Equal(t, 5.0, s.Chassis.VX, "clamped to normal mode")
	assert.InDelta(t, 5.0, s.Field.X, 1e-6, "one second at 5 m/s")
	assert.Equal(t, arm.Idle, s.Resolver)
	assert.Equal(t, h.clock.Now(), s.Timestamp)

	linear, _ := h.world.Drivetrain.Velocity()
	assert.Equal(t, r3.Vector{X: 5}, linear)
}

func TestStepFieldOrientedFollowsGyro(t *testing.T) {
	h := newHarness(t)
	h.world.Gyro.SetYaw(90)
	h.ctl.SetInput(drive.Request{Intent: drive.ChassisIntent{VX: 1}, FieldOriented: true})

	s := h.tick(1)
	assert.InDelta(t, 0, s.Chassis.VX, 1e-9)
	assert.InDelta(t, -1, s.Chassis.VY, 1e-9)
	assert.InDelta(t, 0.02, s.Field.X, 1e-9, "field displacement matches the request")
	assert.InDelta(t, 0, s.Field.Y, 1e-9)
}

func TestPresetHoldAndRelease(t *testing.T) {
	h := newHarness(t)
	h.world.Gyro.SetYaw(180)

	target, ok := arm.Preset("cube_mid")
	require.True(t, ok)
	h.ctl.Activate(target)

	s := h.tick(1)
	assert.Equal(t, arm.Targeting, s.Resolver)
	assert.Equal(t, "cube_mid", s.Target)
	assert.True(t, s.Arm.LastValidation)
	assert.InDelta(t, target.Primary.X, s.Arm.Pose.X, 1e-6)
	assert.InDelta(t, target.Primary.Y, s.Arm.Pose.Y, 1e-6)

	s = h.tick(400)
	assert.InDelta(t, s.Arm.Setpoint.Angle, h.world.Arm.Angle(), 0.5, "plant settles on the setpoint")
	assert.Equal(t, s.Arm.Setpoint.Extension, h.world.Arm.Extension())

	h.ctl.Release()
	s = h.tick(1)
	assert.Equal(t, arm.Idle, s.Resolver)
	assert.Empty(t, s.Target)
	assert.Equal(t, arm.JointSetpoint{}, s.Arm.Setpoint)
}

func TestPresetMirrorsWhenFacingAway(t *testing.T) {
	h := newHarness(t)
	h.world.Gyro.SetYaw(0)

	target, _ := arm.Preset("ground")
	h.ctl.Activate(target)
	s := h.tick(1)
	assert.InDelta(t, -target.Primary.X, s.Arm.Pose.X, 1e-6)
	assert.InDelta(t, target.Primary.Y, s.Arm.Pose.Y, 1e-6)
	assert.Greater(t, math.Abs(s.Arm.Setpoint.Angle), 90.0, "reaches behind the pivot")
}

func TestUnreachableTargetIsReported(t *testing.T) {
	h := newHarness(t)
	h.ctl.Activate(arm.Target{Name: "ceiling", Primary: arm.Pose2{X: 10, Y: 200}})

	s := h.tick(1)
	assert.False(t, s.Arm.LastValidation)
	assert.Equal(t, arm.JointSetpoint{}, s.Arm.Setpoint)
	assert.Equal(t, arm.Targeting, s.Resolver)

	assert.NotZero(t, h.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.NotZero(t, len(h.sink.Messages()))
}

func TestStartRunsOnTickerAndShutsDown(t *testing.T) {
	h := newHarness(t)
	neutral := h.countNeutralWrites()
	ctx, cancel := context.WithCancel(context.Background())

	target, _ := arm.Preset("cone_mid")
	h.ctl.Activate(target)
	h.ctl.SetInput(drive.Request{Intent: drive.ChassisIntent{VX: 1, Omega: 30}})

	done := make(chan error, 1)
	go func() { done <- h.ctl.Start(ctx) }()
	require.Eventually(t, h.ctl.Running, time.Second, time.Millisecond)
	assert.Error(t, h.ctl.Start(ctx), "second start is rejected")

	h.clock.Add(h.ctl.period)
	select {
	case s := <-h.ctl.States():
		assert.Equal(t, arm.Targeting, s.Resolver)
		assert.Equal(t, 1.0, s.Chassis.VX)
	case <-time.After(time.Second):
		t.Fatal("no state after one period")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	assert.False(t, h.ctl.Running())
	linear, angular := h.world.Drivetrain.Velocity()
	assert.Equal(t, r3.Vector{}, linear)
	assert.Equal(t, r3.Vector{}, angular)
	assert.Equal(t, arm.JointSetpoint{}, h.ctl.Arm().Setpoint())
	assert.Equal(t, 1, neutral.writes, "neutral pose commanded once")
	assert.Equal(t, 0.0, h.world.Arm.Voltage(), "pivot left unpowered")
	assert.Equal(t, 0.0, h.ctl.Arm().AngleVoltage())
	h.world.Step(h.ctl.period)
	assert.Equal(t, 0.0, h.world.Arm.Extension(), "retract command reached the winch")
}

func TestShutdownWhileIdleRetractsOnce(t *testing.T) {
	h := newHarness(t)
	neutral := h.countNeutralWrites()
	h.world.Arm.SetAngle(40)
	h.tick(1)
	require.NotZero(t, h.world.Arm.Voltage())

	h.ctl.shutdown()
	assert.Equal(t, 1, neutral.writes)
	assert.Equal(t, arm.Idle, h.ctl.resolver.State())
	assert.Equal(t, 0.0, h.world.Arm.Voltage())
}

func TestBrakesSwitchOnTick(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.ctl.Braked())

	h.ctl.SetBrakes(false)
	assert.True(t, h.world.Arm.Braked(), "applied on the next tick")

	s := h.tick(1)
	assert.False(t, s.Brake)
	assert.NoError(t, s.Error)
	assert.False(t, h.world.Arm.Braked())
	assert.False(t, h.world.Drivetrain.Braked())
	assert.Equal(t, 1, h.logs.FilterMessage("Coasting").Len())

	h.ctl.SetBrakes(true)
	s = h.tick(1)
	assert.True(t, s.Brake)
	assert.True(t, h.world.Arm.Braked())
	assert.True(t, h.world.Drivetrain.Braked())
}

func TestBrakeFailureIsReportedInState(t *testing.T) {
	h := newHarness(t)
	h.ctl.brakes = append(h.ctl.brakes, brokenBrake{})

	h.ctl.SetBrakes(false)
	s := h.tick(1)
	require.Error(t, s.Error)
	assert.Contains(t, s.Error.Error(), "brake line open")
	assert.False(t, s.Brake)
	assert.False(t, h.world.Arm.Braked(), "working brakes still switch")

	s = h.tick(1)
	assert.NoError(t, s.Error, "not retried")
}
