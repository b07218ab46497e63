package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/hccps/sondar/internal/sonar"
)

// maxHeatmapCells bounds the rendered cell count; larger images are
// downsampled by stride so the page stays responsive.
const maxHeatmapCells = 65536

// viridis is the colour ramp used for intensity.
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// RenderHeatMap writes an HTML heat map of a range-Doppler image.
func RenderHeatMap(w io.Writer, image sonar.RangeDopplerImage, title string) error {
	rows := len(image)
	if rows == 0 {
		return fmt.Errorf("empty image")
	}
	cols := len(image[0])

	stride := 1
	for (rows/stride)*(cols/stride) > maxHeatmapCells {
		stride *= 2
	}

	var maxValue float32
	data := make([]opts.HeatMapData, 0, (rows/stride)*(cols/stride))
	xAxis := make([]int, 0, cols/stride)
	yAxis := make([]int, 0, rows/stride)
	for j := 0; j < cols; j += stride {
		xAxis = append(xAxis, j)
	}
	for i := 0; i < rows; i += stride {
		yAxis = append(yAxis, i)
	}

	for yi, i := 0, 0; i < rows; yi, i = yi+1, i+stride {
		for xi, j := 0, 0; j < cols; xi, j = xi+1, j+stride {
			v := image[i][j]
			if v > maxValue {
				maxValue = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
		}
	}
	if maxValue == 0 {
		maxValue = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title, Theme: "dark", Width: "1000px", Height: "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%dx%d cells, stride=%d", rows, cols, stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "slow time (Doppler)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "range bin"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        maxValue,
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xAxis).AddSeries("intensity", data)

	return hm.Render(w)
}

// AttachDebugRoutes mounts the debug endpoints on the given mux. These
// are unauthenticated and intended for local inspection only.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/heatmap", s.handleHeatmap)
}

// handleHeatmap renders the latest compensated range-Doppler image.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	result, ok := s.source.LastResult()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no result available yet")
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Range-Doppler frame %d (v=%.2f m/s)", result.FrameIndex, result.VelocityMps)
	if err := RenderHeatMap(&buf, result.Image, title); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render heat map: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
