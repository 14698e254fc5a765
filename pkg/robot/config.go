package robot

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
	"github.com/chargedpika/2023-Charged-Up/pkg/control"
	"github.com/chargedpika/2023-Charged-Up/pkg/drive"
)

const (
	DefaultConfigFile = "chargedup.json"

	configName = "chargedup"
	configType = "json"
	envPrefix  = "CHARGEDUP"
)

// Config holds the robot configuration.
type Config struct {
	Port        string      `json:"port" mapstructure:"port"`
	Calibration Calibration `json:"calibration,omitempty" mapstructure:"calibration"`

	Arm        arm.Envelope      `json:"arm" mapstructure:"arm"`
	AngleGains control.PIDConfig `json:"angle_gains" mapstructure:"angle_gains"`
	MaxVoltage float64           `json:"max_voltage" mapstructure:"max_voltage"`
	Drive      drive.Modes       `json:"drive" mapstructure:"drive"`
	LoopHz     int               `json:"loop_hz" mapstructure:"loop_hz"`

	// DegreesPerVoltSecond converts the angle loop's voltage into a position step on the servo rig.
	DegreesPerVoltSecond float64 `json:"degrees_per_volt_second" mapstructure:"degrees_per_volt_second"`
}

// DefaultConfig returns the competition configuration with no servo port.
func DefaultConfig() Config {
	return Config{
		Arm:                  arm.DefaultEnvelope(),
		AngleGains:           control.PIDConfig{Kp: 0.1, Kd: 0.002, OutputLimit: 12},
		MaxVoltage:           12,
		Drive:                drive.DefaultModes(),
		LoopHz:               50,
		DegreesPerVoltSecond: 30,
	}
}

// IsCalibrated returns true if every arm motor has calibration data.
func (c *Config) IsCalibrated() bool {
	for _, name := range AllMotors() {
		if _, ok := c.Calibration[name]; !ok {
			return false
		}
	}
	return true
}

// Period returns the control loop period, or 0 when LoopHz is not positive.
func (c *Config) Period() time.Duration {
	if c.LoopHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.LoopHz)
}

// Controller returns the arm controller configuration.
func (c *Config) Controller() arm.ControllerConfig {
	return arm.ControllerConfig{
		Envelope:   c.Arm,
		AngleGains: c.AngleGains,
		MaxVoltage: c.MaxVoltage,
		Period:     c.Period(),
	}
}

// Validate checks the configuration. Failures wrap arm.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.Arm.Validate(); err != nil {
		return err
	}
	if err := c.AngleGains.Validate(); err != nil {
		return errors.Wrap(arm.ErrConfiguration, err.Error())
	}
	if err := c.Drive.Validate(); err != nil {
		return errors.Wrap(arm.ErrConfiguration, err.Error())
	}
	if c.MaxVoltage <= 0 {
		return errors.Wrapf(arm.ErrConfiguration, "max voltage must be positive, got %v", c.MaxVoltage)
	}
	if c.LoopHz <= 0 {
		return errors.Wrapf(arm.ErrConfiguration, "loop rate must be positive, got %d", c.LoopHz)
	}
	if c.DegreesPerVoltSecond < 0 {
		return errors.Wrapf(arm.ErrConfiguration, "degrees per volt second must not be negative, got %v", c.DegreesPerVoltSecond)
	}
	return nil
}

// LoadConfig loads configuration from the current directory.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".")
}

// LoadConfigFrom layers defaults, chargedup.json in dir and CHARGEDUP_* environment
// variables (CHARGEDUP_ARM_MAX_REACH for arm.max_reach). A missing file is not an error.
func LoadConfigFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("port", d.Port)

	v.SetDefault("arm.max_reach", d.Arm.MaxReach)
	v.SetDefault("arm.max_height", d.Arm.MaxHeight)
	v.SetDefault("arm.max_angle", d.Arm.MaxAngle)
	v.SetDefault("arm.min_extension", d.Arm.MinExtension)
	v.SetDefault("arm.max_extension", d.Arm.MaxExtension)
	v.SetDefault("arm.joint_to_floor", d.Arm.JointToFloor)
	v.SetDefault("arm.joint_to_bumper", d.Arm.JointToBumper)

	v.SetDefault("angle_gains.kp", d.AngleGains.Kp)
	v.SetDefault("angle_gains.ki", d.AngleGains.Ki)
	v.SetDefault("angle_gains.kd", d.AngleGains.Kd)
	v.SetDefault("angle_gains.integral_limit", d.AngleGains.IntegralLimit)
	v.SetDefault("angle_gains.output_limit", d.AngleGains.OutputLimit)

	v.SetDefault("max_voltage", d.MaxVoltage)
	v.SetDefault("drive.normal.linear", d.Drive.Normal.Linear)
	v.SetDefault("drive.normal.angular", d.Drive.Normal.Angular)
	v.SetDefault("drive.turbo.linear", d.Drive.Turbo.Linear)
	v.SetDefault("drive.turbo.angular", d.Drive.Turbo.Angular)
	v.SetDefault("loop_hz", d.LoopHz)
	v.SetDefault("degrees_per_volt_second", d.DegreesPerVoltSecond)
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
