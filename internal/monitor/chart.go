package monitor

import (
	"log"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleChart renders the recorded belief trajectory as an HTML line
// chart. Debugging-only: no auth, payload size bounded by the recorder
// window.
func (ws *WebServer) handleChart(w http.ResponseWriter, _ *http.Request) {
	points := ws.recorder.snapshot()
	if len(points) == 0 {
		http.Error(w, "no samples recorded yet", http.StatusNotFound)
		return
	}

	xs := make([]string, 0, len(points))
	arousal := make([]opts.LineData, 0, len(points))
	rhythm := make([]opts.LineData, 0, len(points))
	predErr := make([]opts.LineData, 0, len(points))
	tempo := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xs = append(xs, p.At.Format("15:04:05.0"))
		arousal = append(arousal, opts.LineData{Value: p.Arousal})
		rhythm = append(rhythm, opts.LineData{Value: p.Rhythm})
		predErr = append(predErr, opts.LineData{Value: p.PredErr})
		tempo = append(tempo, opts.LineData{Value: p.TempoScale})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Breathloop Session",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Belief trajectory",
			Subtitle: "arousal / rhythm alignment / prediction error / tempo scale",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xs).
		AddSeries("arousal", arousal).
		AddSeries("rhythm", rhythm).
		AddSeries("prediction_error", predErr).
		AddSeries("tempo", tempo)

	if err := line.Render(w); err != nil {
		log.Printf("monitor: render chart: %v", err)
	}
}
