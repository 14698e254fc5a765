package drive

import (
	"math"
	"sync"
	"time"

	"github.com/chargedpika/2023-Charged-Up/pkg/angle"
)

// Pose is the chassis position on the field in meters with heading in degrees.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// Odometry dead-reckons the field pose from commanded robot-frame velocities and the gyro heading.
type Odometry struct {
	mu   sync.Mutex
	pose Pose
}

// Reset sets the current pose.
func (o *Odometry) Reset(p Pose) {
	o.mu.Lock()
	o.pose = p
	o.mu.Unlock()
}

// Update integrates one period of the command c at the given heading.
func (o *Odometry) Update(c ChassisIntent, heading float64, dt time.Duration) Pose {
	sin, cos := math.Sincos(angle.Radians(heading))
	s := dt.Seconds()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pose.X += (c.VX*cos - c.VY*sin) * s
	o.pose.Y += (c.VX*sin + c.VY*cos) * s
	o.pose.Heading = angle.Normalize180(heading)
	return o.pose
}

// Pose returns the current pose.
func (o *Odometry) Pose() Pose {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pose
}
