// Command markertrack tracks ArUco markers or mapped marker rigs with a
// calibrated camera and publishes smoothed poses over the network.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/markertrack/internal/version"
)

func main() {
	flag.Usage = printUsage
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "track":
		err = runTrack(ctx, args)
	case "calibrate-camera":
		err = runCalibrateCamera(ctx, args)
	case "delete-calibration":
		err = runDeleteCalibration(args)
	case "map-rig":
		err = runMapRig(ctx, args)
	case "rigs":
		err = runRigs(ctx, args)
	case "migrate":
		err = runMigrate(args)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`markertrack - ArUco marker and marker rig tracker

Usage: markertrack <command> [options]

Commands:
  track               Track a marker or mapped rig and publish poses
  calibrate-camera    Calibrate camera intrinsics from a chessboard
  delete-calibration  Remove stored intrinsics for a device
  map-rig             Map the marker offsets of a rig
  rigs                List or delete mapped rigs
  migrate             Manage the database schema
  version             Show version
  help                Show this help message

Run 'markertrack <command> -h' for command options.`)
}
