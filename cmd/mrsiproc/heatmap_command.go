package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mrsiproc/pkg/heatmap"
	"mrsiproc/pkg/report"
	"mrsiproc/pkg/voxelgrid"
)

func newHeatmapCommand(ctx *commandContext) *cobra.Command {
	var input, output, source string
	var vmin, vmax float64

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Render per-slice intensity heatmaps from a merged workbook",
		Long: `Heatmap loads voxel intensities from the 'all' sheet of a merged
workbook, builds one raster per slice and renders them to a single HTML
page. Values outside the intensity window are masked and shown as the
page background. Window bounds are pulled to rounded values near the
data extent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			if output == "" {
				output = strings.TrimSuffix(input, filepath.Ext(input)) + "_map.html"
			}
			if !cmd.Flags().Changed("vmin") {
				vmin = cfg.Heatmap.VMin
			}
			if !cmd.Flags().Changed("vmax") {
				vmax = cfg.Heatmap.VMax
			}

			src, err := report.ParseIntensitySource(source)
			if err != nil {
				return err
			}

			voxels, sourceLabel, err := report.ReadVoxels(input, src)
			if err != nil {
				return err
			}

			grids, err := voxelgrid.BuildSlices(voxels)
			if err != nil {
				return err
			}

			dataMin, dataMax, hasData := math.Inf(1), math.Inf(-1), false
			for _, g := range grids {
				if lo, hi, ok := g.ValueRange(); ok {
					dataMin = math.Min(dataMin, lo)
					dataMax = math.Max(dataMax, hi)
					hasData = true
				}
			}

			win := voxelgrid.Window{Min: vmin, Max: vmax}.Adjust(dataMin, dataMax, hasData)
			log.WithFields(log.Fields{
				"min":    win.Min,
				"max":    win.Max,
				"source": sourceLabel,
			}).Info("intensity window")

			masked := make([]*voxelgrid.Grid, len(grids))
			for i, g := range grids {
				masked[i] = g.Mask(win)
			}

			return heatmap.RenderFile(output, masked, heatmap.Options{
				Title:       sourceLabel,
				SourceLabel: sourceLabel,
				Window:      win,
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Merged workbook (.xlsx) to read")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output HTML file")
	cmd.Flags().StringVarP(&source, "source", "s", "default", "Intensity source: height, area or default")
	cmd.Flags().Float64Var(&vmin, "vmin", 0, "Lower window bound (default from config)")
	cmd.Flags().Float64Var(&vmax, "vmax", 0, "Upper window bound (default from config)")

	return cmd
}
