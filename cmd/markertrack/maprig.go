package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/markertrack/internal/config"
	"github.com/banshee-data/markertrack/internal/rig"
	"github.com/banshee-data/markertrack/internal/rig/mapping"
	"github.com/banshee-data/markertrack/internal/vision"
)

// parseIDs parses a comma separated marker id list.
func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid marker id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runMapRig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("map-rig", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	configPath := fs.String("config", "calibration.json", "Calibration config file (missing file uses defaults)")
	rigID := fs.String("rig", "", "Rig ID to map (required)")
	length := fs.Float64("marker-length", 5, "Marker edge length")
	upID := fs.Int("up", 0, "Up marker ID")
	sides := fs.String("sides", "1,2,3,4", "Comma separated side marker IDs")
	downID := fs.Int("down", rig.NoMarker, "Down marker ID, -1 for none")
	device := fs.String("device", "0", "Camera device")
	dictionary := fs.String("dictionary", "6x6_250", "ArUco dictionary")
	reportDir := fs.String("report-dir", ".", "Directory for the mapping error plot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rigID == "" {
		return fmt.Errorf("-rig is required")
	}
	sideIDs, err := parseIDs(*sides)
	if err != nil {
		return err
	}

	cfg, err := config.LoadCalibrationConfig(*configPath)
	if err != nil {
		return err
	}
	builder, err := mapping.NewBuilder(mapping.Plan{
		RigID:        *rigID,
		MarkerLength: *length,
		UpID:         *upID,
		SideIDs:      sideIDs,
		DownID:       *downID,
		MinSamples:   cfg.GetMappingMinSamples(),
	})
	if err != nil {
		return err
	}

	database, err := common.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	intrinsics, err := common.intrinsicsStore().Load(*device)
	if err != nil {
		return err
	}
	src, det, err := common.openSource(*device, *dictionary)
	if err != nil {
		return err
	}
	defer src.Close()

	session := &mapping.Session{
		Builder:    builder,
		Source:     src,
		Detector:   det,
		Estimator:  vision.PlanarEstimator{},
		Intrinsics: intrinsics,
		Store:      database,
		Confirm:    enterPresses(ctx, os.Stdin),
		ReportDir:  *reportDir,
	}
	if display := common.openDisplay("rig mapping"); display != nil {
		defer display.Close()
		session.Display = display
	}

	log.Printf("mapping rig %q: hold the up marker and one side marker in view, press ENTER to capture", *rigID)
	mapped, report, err := session.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("rig %q mapped (run %s): offsets for markers %v", mapped.ID, report.RunID, mapped.OffsetIDs())
	return nil
}
