package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/markertrack/internal/httputil"
	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/version"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Stats is the live counter snapshot reported by /api/status.
type Stats struct {
	Mode          string `json:"mode"`
	RigID         string `json:"rig_id,omitempty"`
	Sink          string `json:"sink"`
	Frames        int64  `json:"frames"`
	FramesPosed   int64  `json:"frames_posed"`
	Queued        uint64 `json:"queued"`
	QueueDropped  uint64 `json:"queue_dropped"`
	Published     uint64 `json:"published"`
	PublishFailed uint64 `json:"publish_failed"`
}

// Status is the /api/status response body.
type Status struct {
	Version  version.Info `json:"version"`
	Uptime   string       `json:"uptime"`
	Stats    Stats        `json:"stats"`
	Latest   *Sample      `json:"latest,omitempty"`
	Observed uint64       `json:"observed"`
}

// WebServer serves the debug pages for one session.
type WebServer struct {
	History *History
	// Stats supplies live counters; nil reports zeros.
	Stats func() Stats

	started time.Time
	mux     *http.ServeMux
}

// NewWebServer builds the handler set. Extra routes, such as the
// database admin pages, can be attached to Mux before serving.
func NewWebServer(history *History, stats func() Stats) *WebServer {
	ws := &WebServer{History: history, Stats: stats, started: time.Now(), mux: http.NewServeMux()}
	ws.mux.HandleFunc("/api/status", ws.handleStatus)
	ws.mux.HandleFunc("/api/pose/history", ws.handleHistory)
	ws.mux.HandleFunc("/debug/pose/chart", ws.handlePoseChart)
	return ws
}

// Mux returns the server's routes.
func (ws *WebServer) Mux() *http.ServeMux { return ws.mux }

// ServeHTTP implements http.Handler.
func (ws *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx ends.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: ws, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("[monitor] shutdown: %v", err)
		}
	}()
	monitoring.Logf("[monitor] debug server on http://%s/debug/pose/chart", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	st := Status{
		Version:  version.Current(),
		Uptime:   time.Since(ws.started).Round(time.Second).String(),
		Observed: ws.History.Total(),
	}
	if ws.Stats != nil {
		st.Stats = ws.Stats()
	}
	if s, ok := ws.History.Latest(); ok {
		st.Latest = &s
	}
	httputil.WriteJSONOK(w, st)
}

func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.History.Snapshot())
}

var axisNames = [3]string{"x", "y", "z"}

// handlePoseChart renders raw and fused translation over the retained
// history, one line per axis.
func (ws *WebServer) handlePoseChart(w http.ResponseWriter, r *http.Request) {
	samples := ws.History.Snapshot()
	if len(samples) == 0 {
		httputil.NotFound(w, "no frames observed yet")
		return
	}

	t0 := samples[0].Timestamp
	x := make([]string, len(samples))
	var raw, fused [3][]opts.LineData
	for i, s := range samples {
		x[i] = fmt.Sprintf("%.2f", s.Timestamp-t0)
		for a := 0; a < 3; a++ {
			fused[a] = append(fused[a], opts.LineData{Value: s.Fused[a]})
			if s.Raw != nil {
				raw[a] = append(raw[a], opts.LineData{Value: s.Raw[a]})
			} else {
				// Gaps render as breaks in the raw line.
				raw[a] = append(raw[a], opts.LineData{Value: "-"})
			}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Marker pose", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Raw vs fused translation", Subtitle: fmt.Sprintf("frames=%d window=%.1fs", len(samples), samples[len(samples)-1].Timestamp-t0)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x)
	for a := 0; a < 3; a++ {
		line.AddSeries("raw "+axisNames[a], raw[a], charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))
		line.AddSeries("fused "+axisNames[a], fused[a], charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
