// Package heatmap renders per-slice voxel intensity heatmaps to a
// self-contained HTML page. Cells without data, and cells masked by the
// intensity window, are left absent so they render as the white page
// background rather than a color.
package heatmap

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"

	"mrsiproc/pkg/voxelgrid"
)

// Options controls the rendered page.
type Options struct {
	// Title prefixes each slice chart title
	Title string

	// SourceLabel names the intensity source shown on the color bar
	SourceLabel string

	// Window is the color window; out-of-window cells must already be
	// masked in the grids
	Window voxelgrid.Window
}

// Render writes one heatmap per slice grid to a single HTML page.
func Render(w io.Writer, grids []*voxelgrid.Grid, o Options) error {
	if len(grids) == 0 {
		return fmt.Errorf("no slice grids to render")
	}

	page := components.NewPage()
	page.SetPageTitle(o.Title)

	for _, g := range grids {
		page.AddCharts(sliceChart(g, o))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render heatmap page: %w", err)
	}
	return nil
}

// RenderFile renders the page to the named file.
func RenderFile(path string, grids []*voxelgrid.Grid, o Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := Render(f, grids, o); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file":   path,
		"slices": len(grids),
	}).Info("heatmap page rendered")
	return nil
}

// sliceChart builds one category heatmap for a slice. Rows are listed
// top-down so that y=0 appears at the top, the convention of the
// measurement raster.
func sliceChart(g *voxelgrid.Grid, o Options) *charts.HeatMap {
	hm := charts.NewHeatMap()

	xCats := make([]string, g.Width())
	for i := range xCats {
		xCats[i] = fmt.Sprintf("%d", g.Extent.MinX+i)
	}
	// Category y axes plot bottom-up; reversing the labels puts row 0 on
	// top
	yCats := make([]string, g.Height())
	for i := range yCats {
		yCats[i] = fmt.Sprintf("%d", g.Extent.MaxY-i)
	}

	var data []opts.HeatMapData
	for y := g.Extent.MinY; y <= g.Extent.MaxY; y++ {
		for x := g.Extent.MinX; x <= g.Extent.MaxX; x++ {
			v := g.At(x, y)
			if voxelgrid.IsNoData(v) {
				continue
			}
			xi := x - g.Extent.MinX
			yi := g.Extent.MaxY - y
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
		}
	}

	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s at z = %d", o.Title, g.Z),
			Subtitle: fmt.Sprintf("values outside [%g, %g] shown white",
				o.Window.Min, o.Window.Max),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Name: "x",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category",
			Name: "y",
			Data: yCats,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(o.Window.Min),
			Max:        float32(o.Window.Max),
			Text:       []string{o.SourceLabel, ""},
		}),
	)

	hm.SetXAxis(xCats).AddSeries("intensity", data)
	return hm
}
