// Command vrpctl solves routing problems from files without running the service.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"

	"vrp/internal/buildinfo"
)

func main() {
	log.SetFlags(0)
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vrpctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "vrpctl"
	app.Usage = "vehicle routing from the command line"
	app.Version = buildinfo.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "YAML config file for solver defaults", EnvVar: "VRP_CONFIG"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "solve",
			Usage:  "solve one problem and print the response document",
			Flags:  append(inputFlags(), solveFlags()...),
			Action: solveAction,
		},
		{
			Name:   "compare",
			Usage:  "run greedy, then annealing warm-started from greedy, and compare costs",
			Flags:  append(inputFlags(), solveFlags()...),
			Action: compareAction,
		},
		{
			Name:  "distance",
			Usage: "great-circle distance between two points",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "from", Usage: "lat,lon"},
				cli.StringFlag{Name: "to", Usage: "lat,lon"},
				cli.StringFlag{Name: "unit", Value: "km", Usage: "km, miles, meters or feet"},
			},
			Action: distanceAction,
		},
		{
			Name:   "sysinfo",
			Usage:  "print host platform, CPU and memory",
			Action: sysinfoAction,
		},
	}
	return app
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "input, i", Usage: "solve request JSON file, - for stdin"},
		cli.StringFlag{Name: "vehicles", Usage: "vehicles CSV (id,current_lat,current_lon)"},
		cli.StringFlag{Name: "orders", Usage: "orders CSV (id,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon)"},
	}
}

func solveFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "algorithm, a", Usage: "greedy or simulated_annealing"},
		cli.StringFlag{Name: "unit, u", Usage: "km, miles, meters or feet"},
		cli.Float64Flag{Name: "initial-temp"},
		cli.Float64Flag{Name: "final-temp"},
		cli.Float64Flag{Name: "cooling-rate"},
		cli.IntFlag{Name: "max-iterations"},
		cli.Int64Flag{Name: "seed", Usage: "0 seeds from the clock"},
		cli.BoolFlag{Name: "polish", Usage: "apply 2-opt to each route after annealing"},
		cli.BoolFlag{Name: "verbose", Usage: "print the iteration trace"},
		cli.StringFlag{Name: "output, o", Usage: "write the response here instead of stdout"},
	}
}
