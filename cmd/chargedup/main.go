package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Run   RunCommand   `command:"run" alias:"teleop" description:"Drive the robot from the keyboard with a live dashboard"`
	Setup SetupCommand `command:"setup" description:"Find the bench arm and calibrate it"`
	Solve SolveCommand `command:"solve" description:"Resolve a preset or x/y target to a joint setpoint"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "chargedup - arm and drive control for the Charged Up robot"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
