package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/markertrack/internal/db"
)

func runRigs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rigs", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: markertrack rigs list|delete <rig-id>|sessions")
	}

	database, err := common.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	switch fs.Arg(0) {
	case "list":
		rigs, err := database.ListRigs(ctx)
		if err != nil {
			return err
		}
		return printRigs(rigs)
	case "delete":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: markertrack rigs delete <rig-id>")
		}
		return database.DeleteRig(ctx, fs.Arg(1))
	case "sessions":
		sessions, err := database.RecentSessions(ctx, 20)
		if err != nil {
			return err
		}
		return printSessions(sessions)
	default:
		return fmt.Errorf("unknown rigs action %q", fs.Arg(0))
	}
}

func printRigs(rigs []db.RigSummary) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RIG\tMARKER LENGTH\tMARKERS\tOFFSETS\tUPDATED")
	for _, r := range rigs {
		fmt.Fprintf(w, "%s\t%g\t%d\t%d\t%s\n", r.ID, r.MarkerLength, r.Markers, r.Offsets, r.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printSessions(sessions []db.TrackingSession) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODE\tRIG\tSTARTED\tDURATION\tFRAMES\tPOSED\tDROPPED")
	for _, s := range sessions {
		duration := "running"
		if s.FinishedAt != nil {
			duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n", s.ID, s.Mode, s.RigID,
			s.StartedAt.Format(time.RFC3339), duration, s.Frames, s.FramesPosed, s.Dropped)
	}
	return w.Flush()
}
