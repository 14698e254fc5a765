// Package teleop runs the robot's fixed-rate control loop: operator input in, one
// resolver, drive and arm update per tick, state snapshots out.
package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
	"github.com/chargedpika/2023-Charged-Up/pkg/drive"
	"github.com/chargedpika/2023-Charged-Up/pkg/robot"
)

// State is a snapshot of the robot after one tick.
type State struct {
	Arm       arm.Snapshot
	Resolver  arm.State
	Target    string
	Chassis   drive.ChassisIntent
	Field     drive.Pose
	Heading   float64
	Brake     bool
	Timestamp time.Time
	Error     error
}

// Brake is hardware with a holding mode. SetBrake(false) lets it coast.
type Brake interface {
	SetBrake(ctx context.Context, brake bool) error
}

// Hardware is the set of collaborators the loop drives.
type Hardware struct {
	Actuators   arm.ActuatorSink
	Position    arm.PositionSource
	Heading     arm.HeadingSource
	Drivetrain  drive.Drivetrain
	Diagnostics arm.DiagnosticsSink
	// Brakes are switched together by SetBrakes. Everything starts braked.
	Brakes []Brake
}

// Config holds configuration for the controller.
type Config struct {
	Robot  robot.Config
	Clock  clock.Clock
	Logger *zap.SugaredLogger
	// AfterTick, when set, runs at the end of every tick with the loop period.
	// The simulator uses it to advance its plants.
	AfterTick func(dt time.Duration)
}

// Controller manages the control loop.
type Controller struct {
	arm       *arm.Controller
	resolver  *arm.Resolver
	pipeline  *drive.Pipeline
	odometry  drive.Odometry
	heading   arm.HeadingSource
	brakes    []Brake
	clock     clock.Clock
	logger    *zap.SugaredLogger
	afterTick func(time.Duration)
	hz        int
	period    time.Duration

	mu       sync.RWMutex
	input    drive.Request
	brake    bool
	brakeReq *bool
	running  bool
	stateCh  chan State
	logCh    chan string
}

// NewController validates the configuration and wires the arm and drive components.
func NewController(cfg Config, hw Hardware) (*Controller, error) {
	if err := cfg.Robot.Validate(); err != nil {
		return nil, err
	}
	if hw.Heading == nil || hw.Drivetrain == nil {
		return nil, errors.New("heading source and drivetrain are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	armCtl, err := arm.NewController(cfg.Robot.Controller(), hw.Actuators, hw.Position, hw.Diagnostics)
	if err != nil {
		return nil, errors.Wrap(err, "create arm controller")
	}

	pipeline, err := drive.NewPipeline(cfg.Robot.Drive, hw.Heading, hw.Drivetrain, cfg.Logger.Named("drive"))
	if err != nil {
		return nil, errors.Wrap(err, "create drive pipeline")
	}

	return &Controller{
		arm:       armCtl,
		resolver:  arm.NewResolver(armCtl, hw.Heading, hw.Diagnostics),
		pipeline:  pipeline,
		heading:   hw.Heading,
		brakes:    hw.Brakes,
		brake:     true,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		afterTick: cfg.AfterTick,
		hz:        cfg.Robot.LoopHz,
		period:    cfg.Robot.Period(),
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Running reports whether the loop is started.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// SetInput replaces the drive request used from the next tick on.
func (c *Controller) SetInput(req drive.Request) {
	c.mu.Lock()
	c.input = req
	c.mu.Unlock()
}

// Input returns the current drive request.
func (c *Controller) Input() drive.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input
}

// Activate holds the arm on t from the next tick until Release.
func (c *Controller) Activate(t arm.Target) {
	c.log("Targeting %s", t.Name)
	c.resolver.Activate(t)
}

// Release drops the held target; the arm retracts on the next tick.
func (c *Controller) Release() {
	c.resolver.Cancel()
}

// SetBrakes requests brake (true) or coast (false) on every brake from the next tick on.
func (c *Controller) SetBrakes(brake bool) {
	c.mu.Lock()
	c.brakeReq = &brake
	c.mu.Unlock()
}

// Braked reports whether the brakes are on.
func (c *Controller) Braked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.brake
}

// Arm returns the arm setpoint controller.
func (c *Controller) Arm() *arm.Controller {
	return c.arm
}

func (c *Controller) log(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.Info(text)
	msg := fmt.Sprintf("[%s] %s", c.clock.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is done, then stops the chassis and retracts the arm.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	ticker := c.clock.Ticker(c.period)
	c.running = true
	c.mu.Unlock()
	defer ticker.Stop()

	c.log("Control loop started at %d Hz", c.hz)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

// step runs one tick in fixed order: brakes, resolver, drive, arm.
func (c *Controller) step(ctx context.Context) {
	var tickErr error
	if err := c.applyBrakes(ctx); err != nil {
		c.log("Brake error: %v", err)
		tickErr = err
	}

	c.resolver.Tick()

	chassis, err := c.pipeline.Tick(ctx, c.Input())
	if err != nil {
		c.log("Drive error: %v", err)
		tickErr = multierr.Append(tickErr, err)
	}
	heading := c.heading.Yaw()
	field := c.odometry.Update(chassis, heading, c.period)

	c.arm.Tick(ctx)

	if c.afterTick != nil {
		c.afterTick(c.period)
	}

	s := State{
		Arm:       c.arm.Snapshot(),
		Resolver:  c.resolver.State(),
		Chassis:   chassis,
		Field:     field,
		Heading:   heading,
		Brake:     c.Braked(),
		Timestamp: c.clock.Now(),
		Error:     tickErr,
	}
	if t, _, ok := c.resolver.Active(); ok {
		s.Target = t.Name
	}
	c.sendState(s)
}

// applyBrakes switches every brake to a pending mode. The mode is recorded even
// when some brakes fail, so a retry needs a new request.
func (c *Controller) applyBrakes(ctx context.Context) error {
	c.mu.Lock()
	req := c.brakeReq
	c.brakeReq = nil
	c.mu.Unlock()
	if req == nil {
		return nil
	}

	var err error
	for _, b := range c.brakes {
		err = multierr.Append(err, b.SetBrake(ctx, *req))
	}

	c.mu.Lock()
	c.brake = *req
	c.mu.Unlock()

	if *req {
		c.log("Brakes on")
	} else {
		c.log("Coasting")
	}
	return errors.Wrap(err, "set brakes")
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	ctx := context.Background()
	if err := c.pipeline.Halt(ctx); err != nil {
		c.log("Warning: failed to stop chassis: %v", err)
	} else {
		c.log("Chassis stopped")
	}

	if c.resolver.Retract() {
		c.arm.Tick(ctx)
		c.log("Arm retracted")
	}
	if err := c.arm.Halt(ctx); err != nil {
		c.log("Warning: failed to halt arm: %v", err)
	}
	c.log("Control loop stopped")
}
