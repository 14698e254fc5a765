package robot

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
)

// servo is the subset of *feetech.Servo the rig drives.
type servo interface {
	Position(ctx context.Context) (int, error)
	SetPosition(ctx context.Context, position int) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// Rig drives a bench arm built from two position-controlled Feetech servos: one on the
// pivot and one on the winch. It implements arm.ActuatorSink and arm.PositionSource.
//
// The pivot servo has no voltage mode, so an angle voltage becomes a position step of
// volts * DegreesPerVoltSecond * period from the last measured angle.
type Rig struct {
	servos      map[MotorName]servo
	closer      io.Closer
	calibration Calibration
	maxExt      float64
	degPerVolt  float64
	period      time.Duration

	mu        sync.Mutex
	lastAngle float64
}

// OpenRig connects to the servo bus on port and finds the calibrated servos.
func OpenRig(ctx context.Context, cfg *Config) (*Rig, error) {
	if !cfg.IsCalibrated() {
		return nil, errors.New("arm is not calibrated, run setup first")
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bus")
	}

	found, err := bus.Scan(ctx, 1, 6)
	if err != nil {
		bus.Close()
		return nil, errors.Wrap(err, "scan bus")
	}

	servos := make(map[MotorName]servo, len(found))
	for _, s := range found {
		if name, _, ok := cfg.Calibration.ByID(s.ID); ok {
			servos[name] = feetech.NewServo(bus, s.ID, s.Model)
		}
	}
	for _, name := range AllMotors() {
		if _, ok := servos[name]; !ok {
			bus.Close()
			return nil, errors.Errorf("servo %d (%s) not found on %s", cfg.Calibration[name].ID, name, cfg.Port)
		}
	}

	return newRig(servos, bus, cfg), nil
}

func newRig(servos map[MotorName]servo, closer io.Closer, cfg *Config) *Rig {
	return &Rig{
		servos:      servos,
		closer:      closer,
		calibration: cfg.Calibration,
		maxExt:      cfg.Arm.MaxExtension,
		degPerVolt:  cfg.DegreesPerVoltSecond,
		period:      cfg.Period(),
	}
}

// Enable enables torque on all servos.
func (r *Rig) Enable(ctx context.Context) error {
	var err error
	for _, name := range AllMotors() {
		err = multierr.Append(err, errors.Wrapf(r.servos[name].Enable(ctx), "enable %s", name))
	}
	return err
}

// SetBrake holds the arm with servo torque, or lets it move freely when brake is false.
func (r *Rig) SetBrake(ctx context.Context, brake bool) error {
	if brake {
		return r.Enable(ctx)
	}
	return r.disable(ctx)
}

func (r *Rig) disable(ctx context.Context) error {
	var err error
	for _, name := range AllMotors() {
		err = multierr.Append(err, errors.Wrapf(r.servos[name].Disable(ctx), "disable %s", name))
	}
	return err
}

// Close disables torque and closes the bus.
func (r *Rig) Close(ctx context.Context) error {
	err := r.disable(ctx)
	if r.closer != nil {
		err = multierr.Append(err, errors.Wrap(r.closer.Close(), "close bus"))
	}
	return err
}

// ReadAbsoluteAngle implements arm.PositionSource.
func (r *Rig) ReadAbsoluteAngle(ctx context.Context) (float64, error) {
	raw, err := r.servos[ArmAngle].Position(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read arm angle")
	}
	deg := r.calibration[ArmAngle].Degrees(raw)

	r.mu.Lock()
	r.lastAngle = deg
	r.mu.Unlock()
	return deg, nil
}

// SetVoltage implements arm.ActuatorSink. Zero volts leaves the servo holding its goal.
func (r *Rig) SetVoltage(ctx context.Context, id arm.ActuatorID, volts float64) error {
	if MotorName(id) != ArmAngle {
		return errors.Errorf("actuator %q does not take a voltage", id)
	}
	if volts == 0 {
		return nil
	}

	r.mu.Lock()
	goal := r.lastAngle + volts*r.degPerVolt*r.period.Seconds()
	r.mu.Unlock()

	raw := r.calibration[ArmAngle].RawForDegrees(goal)
	return errors.Wrap(r.servos[ArmAngle].SetPosition(ctx, raw), "write arm angle")
}

// SetPosition implements arm.ActuatorSink. The winch extension is mapped linearly onto
// the calibrated servo range.
func (r *Rig) SetPosition(ctx context.Context, id arm.ActuatorID, value float64) error {
	if MotorName(id) != ArmWinch {
		return errors.Errorf("actuator %q does not take a position", id)
	}
	if r.maxExt <= 0 {
		return errors.New("winch range is not configured")
	}

	raw := r.calibration[ArmWinch].RawAt(value / r.maxExt)
	return errors.Wrap(r.servos[ArmWinch].SetPosition(ctx, raw), "write arm winch")
}
