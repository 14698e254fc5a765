package arm

// Preset names for the scoring positions.
const (
	ConeHigh = "cone_high"
	CubeHigh = "cube_high"
	ConeMid  = "cone_mid"
	CubeMid  = "cube_mid"
	Ground   = "ground"
)

var presets = map[string]Target{
	ConeHigh: {Name: ConeHigh, Primary: Pose2{X: 64.0, Y: 57.69}},
	CubeHigh: {Name: CubeHigh, Primary: Pose2{X: 64.0, Y: 47.39}},
	ConeMid:  {Name: ConeMid, Primary: Pose2{X: 45.41, Y: 41.97}},
	CubeMid:  {Name: CubeMid, Primary: Pose2{X: 43.67, Y: 32.31}},
	Ground:   {Name: Ground, Primary: Pose2{X: 35.98, Y: 4.34}},
}

// AllPresets returns the preset names in operator order.
func AllPresets() []string {
	return []string{ConeHigh, CubeHigh, ConeMid, CubeMid, Ground}
}

// Preset returns the named scoring target.
func Preset(name string) (Target, bool) {
	t, ok := presets[name]
	return t, ok
}
