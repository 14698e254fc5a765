package main

import (
	"fmt"
	"os"

	"github.com/chargedpika/2023-Charged-Up/pkg/arm"
	"github.com/chargedpika/2023-Charged-Up/pkg/robot"
)

type SolveCommand struct {
	Preset    string  `long:"preset" short:"p" description:"Preset name (cone_high, cube_high, cone_mid, cube_mid, ground)"`
	All       bool    `long:"all" description:"Solve every preset"`
	X         float64 `long:"x" description:"Target x in inches from the pivot"`
	Y         float64 `long:"y" description:"Target y in inches from the floor"`
	Heading   float64 `long:"heading" default:"180" description:"Robot heading in degrees"`
	ConfigDir string  `long:"config-dir" default:"." description:"Directory holding chargedup.json"`
}

// solution is the outcome of resolving one target against an envelope.
type solution struct {
	Target    arm.Target
	Selected  arm.Pose2
	Reach     float64
	Setpoint  arm.JointSetpoint
	Reachable bool
	Reason    error
}

func solve(env arm.Envelope, t arm.Target, heading float64) solution {
	s := solution{Target: t, Selected: arm.SelectTarget(t, heading)}
	sp, err := env.Solve(s.Selected)
	if err != nil {
		s.Reason = err
		return s
	}
	s.Setpoint = sp
	s.Reach = sp.Extension + env.MinExtension
	s.Reachable = true
	return s
}

func (s solution) String() string {
	name := s.Target.Name
	if name == "" {
		name = "target"
	}
	line := fmt.Sprintf("%-10s (%6.2f, %6.2f)", name, s.Selected.X, s.Selected.Y)
	if s.Reach > 0 {
		line += fmt.Sprintf("  reach %6.2f in  angle %7.2f deg  extension %6.2f in",
			s.Reach, s.Setpoint.Angle, s.Setpoint.Extension)
	}
	if s.Reachable {
		return line + "  " + successStyle.Render("ok")
	}
	return line + "  " + errorStyle.Render(s.Reason.Error())
}

func (c *SolveCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfigFrom(c.ConfigDir)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var targets []arm.Target
	switch {
	case c.All:
		for _, name := range arm.AllPresets() {
			t, _ := arm.Preset(name)
			targets = append(targets, t)
		}
	case c.Preset != "":
		t, ok := arm.Preset(c.Preset)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown preset %q\n", c.Preset)
			os.Exit(1)
		}
		targets = append(targets, t)
	default:
		targets = append(targets, arm.Target{Primary: arm.Pose2{X: c.X, Y: c.Y}})
	}

	fmt.Println(headerStyle.Render("Arm solutions"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("heading %.1f deg", c.Heading)))
	for _, t := range targets {
		fmt.Println(solve(cfg.Arm, t, c.Heading))
	}
	return nil
}
