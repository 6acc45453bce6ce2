package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Constants string `short:"k" long:"constants" default:"constants.yaml" description:"Tuning constants file (YAML)"`

	Run   RunCommand   `command:"run" description:"Run the robot with a live dashboard"`
	Setup SetupCommand `command:"setup" description:"Find the servo bus and calibrate the motors"`
	Autos AutosCommand `command:"autos" description:"List the autonomous routines"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "taskbot - task scheduling and arbitration for a competition robot"

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
