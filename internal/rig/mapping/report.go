package mapping

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/banshee-data/markertrack/internal/security"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// LegReport is the fit chosen for one leg.
type LegReport struct {
	Key LegKey
	Fit Fit
}

// Report summarises a finished mapping run.
type Report struct {
	RunID uuid.UUID
	RigID string
	Legs  []LegReport
	// Bridge is the side marker used to place the down marker, or
	// rig.NoMarker when the rig has none.
	Bridge      int
	BridgeError float64
}

var legColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
	color.RGBA{R: 227, G: 119, B: 194, A: 255},
	color.RGBA{R: 127, G: 127, B: 127, A: 255},
}

// WritePlot saves a PNG of every candidate's mean error per leg into
// dir and returns the file path. Outliers show up as spikes; the winner
// is the minimum of each line.
func (r Report) WritePlot(dir string) (string, error) {
	name := fmt.Sprintf("mapping_%s_%s.png", security.SanitizeFilename(r.RigID), r.RunID.String()[:8])
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rig %s - leave-one-out error per candidate", r.RigID)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Mean squared error"

	for i, leg := range r.Legs {
		pts := make(plotter.XYs, 0, len(leg.Fit.Errors))
		for j, e := range leg.Fit.Errors {
			if math.IsInf(e, 0) || math.IsNaN(e) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(j), Y: e})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", err
		}
		line.Color = legColors[i%len(legColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(leg.Key.String(), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save mapping plot: %w", err)
	}
	return path, nil
}
