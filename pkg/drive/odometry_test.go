package drive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOdometryIntegratesInFieldFrame(t *testing.T) {
	var odo Odometry

	// heading 90: robot forward is field +Y
	pose := odo.Update(ChassisIntent{VX: 2}, 90, 500*time.Millisecond)
	assert.InDelta(t, 0, pose.X, 1e-9)
	assert.InDelta(t, 1, pose.Y, 1e-9)
	assert.InDelta(t, 90, pose.Heading, 1e-9)

	pose = odo.Update(ChassisIntent{VY: 1}, 0, time.Second)
	assert.InDelta(t, 0, pose.X, 1e-9)
	assert.InDelta(t, 2, pose.Y, 1e-9)
	assert.Equal(t, pose, odo.Pose())
}

func TestOdometryUndoesFieldOrientation(t *testing.T) {
	p, _ := newTestPipeline(t, 0)
	var odo Odometry

	for _, heading := range []float64{0, 37, 90, 181, -120} {
		odo.Reset(Pose{})
		cmd := p.FieldOriented(1.5, -0.5, 0, heading)
		pose := odo.Update(cmd, heading, time.Second)
		assert.InDelta(t, 1.5, pose.X, 1e-9, "heading %v", heading)
		assert.InDelta(t, -0.5, pose.Y, 1e-9, "heading %v", heading)
	}
}

func TestOdometryReset(t *testing.T) {
	var odo Odometry
	odo.Reset(Pose{X: 1, Y: 2, Heading: 30})
	assert.Equal(t, Pose{X: 1, Y: 2, Heading: 30}, odo.Pose())
}
