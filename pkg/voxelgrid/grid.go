// Package voxelgrid reconstructs dense per-slice intensity grids from
// sparse voxel records and provides the color-window handling used by the
// heatmap rendering: cells without data carry a sentinel, values outside
// the window are masked rather than clipped, and window bounds are
// adjusted to decade-aligned "nice" limits.
package voxelgrid

import (
	"fmt"
	"math"
	"sort"

	"mrsiproc/internal/models"
)

// NoData marks a grid cell for which the source records carry no value.
// Masked cells reuse the same sentinel so that rendering treats both
// identically (blank, not colored).
var NoData = math.NaN()

// IsNoData reports whether a cell value is the no-data sentinel.
func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// Extent is the inclusive coordinate range covered by a set of voxels.
type Extent struct {
	MinX, MaxX int
	MinY, MaxY int
}

// ExtentOf computes the bounding x/y range over all voxels, across all
// z-slices, so every slice grid covers the same span.
func ExtentOf(voxels []models.Voxel) (Extent, error) {
	if len(voxels) == 0 {
		return Extent{}, fmt.Errorf("no voxels to compute extent from")
	}

	e := Extent{
		MinX: voxels[0].Coord.X, MaxX: voxels[0].Coord.X,
		MinY: voxels[0].Coord.Y, MaxY: voxels[0].Coord.Y,
	}
	for _, v := range voxels[1:] {
		if v.Coord.X < e.MinX {
			e.MinX = v.Coord.X
		}
		if v.Coord.X > e.MaxX {
			e.MaxX = v.Coord.X
		}
		if v.Coord.Y < e.MinY {
			e.MinY = v.Coord.Y
		}
		if v.Coord.Y > e.MaxY {
			e.MaxY = v.Coord.Y
		}
	}
	return e, nil
}

// Grid is a dense 2D intensity grid for one z-slice. Values are stored
// row-major with rows indexed by y and columns by x, offset by the
// extent minimum.
type Grid struct {
	// Extent is the coordinate span the grid covers
	Extent Extent

	// Z is the slice index this grid belongs to
	Z int

	values []float64
}

// Width returns the number of columns in the grid.
func (g *Grid) Width() int { return g.Extent.MaxX - g.Extent.MinX + 1 }

// Height returns the number of rows in the grid.
func (g *Grid) Height() int { return g.Extent.MaxY - g.Extent.MinY + 1 }

// At returns the cell value at grid coordinate (x, y). Coordinates
// outside the extent report NoData.
func (g *Grid) At(x, y int) float64 {
	if x < g.Extent.MinX || x > g.Extent.MaxX || y < g.Extent.MinY || y > g.Extent.MaxY {
		return NoData
	}
	return g.values[(y-g.Extent.MinY)*g.Width()+(x-g.Extent.MinX)]
}

func (g *Grid) set(x, y int, v float64) {
	g.values[(y-g.Extent.MinY)*g.Width()+(x-g.Extent.MinX)] = v
}

// Build produces a dense grid over the given extent from sparse voxels of
// a single z-slice. Every cell of the rectangular span is present; cells
// absent from the source are set to NoData. Voxels outside the extent are
// ignored.
func Build(voxels []models.Voxel, z int, extent Extent) *Grid {
	g := &Grid{Extent: extent, Z: z}
	g.values = make([]float64, g.Width()*g.Height())
	for i := range g.values {
		g.values[i] = NoData
	}

	for _, v := range voxels {
		if v.Coord.Z != z {
			continue
		}
		c := v.Coord
		if c.X < extent.MinX || c.X > extent.MaxX || c.Y < extent.MinY || c.Y > extent.MaxY {
			continue
		}
		g.set(c.X, c.Y, v.Value)
	}
	return g
}

// BuildSlices groups voxels by z and builds one dense grid per slice, all
// sharing the common extent. The returned slice indices are sorted
// ascending.
func BuildSlices(voxels []models.Voxel) ([]*Grid, error) {
	extent, err := ExtentOf(voxels)
	if err != nil {
		return nil, err
	}

	present := make(map[int]bool)
	var zs []int
	for _, v := range voxels {
		if !present[v.Coord.Z] {
			present[v.Coord.Z] = true
			zs = append(zs, v.Coord.Z)
		}
	}
	sort.Ints(zs)

	grids := make([]*Grid, 0, len(zs))
	for _, z := range zs {
		grids = append(grids, Build(voxels, z, extent))
	}
	return grids, nil
}

// Mask returns a copy of the grid with every value outside [win.Min,
// win.Max] replaced by NoData. Values are never clipped to the window.
func (g *Grid) Mask(win Window) *Grid {
	out := &Grid{Extent: g.Extent, Z: g.Z, values: make([]float64, len(g.values))}
	for i, v := range g.values {
		if IsNoData(v) || v < win.Min || v > win.Max {
			out.values[i] = NoData
		} else {
			out.values[i] = v
		}
	}
	return out
}

// ValueRange returns the minimum and maximum over the cells that carry
// data. ok is false when the grid holds no data at all.
func (g *Grid) ValueRange() (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range g.values {
		if IsNoData(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		ok = true
	}
	return min, max, ok
}
