package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord identifies a single voxel position in the measurement raster.
type Coord struct {
	// X, Y, Z are the integer grid indices of the voxel
	X, Y, Z int
}

// ParseCoord parses the "x_y_z" coordinate encoding used by the fitted
// measurement files, e.g. "12_7_3".
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 3 {
		return Coord{}, fmt.Errorf("coordinate %q does not split into 3 parts", s)
	}

	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Coord{}, fmt.Errorf("coordinate %q has non-integer component %q", s, p)
		}
		vals[i] = v
	}

	return Coord{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// String returns the coordinate in the "x_y_z" file encoding.
func (c Coord) String() string {
	return fmt.Sprintf("%d_%d_%d", c.X, c.Y, c.Z)
}

// Less orders coordinates by (z, x, y), the sort order used by the
// measurement workbooks.
func (c Coord) Less(o Coord) bool {
	if c.Z != o.Z {
		return c.Z < o.Z
	}
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

// GridDims describes the fixed dimensions of the voxel raster.
type GridDims struct {
	// X, Y, Z are the number of voxels along each axis
	X, Y, Z int
}

// Contains reports whether the coordinate lies inside the grid.
func (g GridDims) Contains(c Coord) bool {
	return c.X >= 0 && c.X < g.X &&
		c.Y >= 0 && c.Y < g.Y &&
		c.Z >= 0 && c.Z < g.Z
}

// Voxel is one grid cell carrying a scalar metric (height, area or a
// derived concentration).
type Voxel struct {
	// Coord is the grid position of the voxel
	Coord Coord

	// Value is the scalar metric associated with the voxel
	Value float64
}

// MeasurementEntry holds one fitted measurement row for a single voxel
// and metabolite. Field values are kept as strings so that the workbook
// export can pass unmodified source text through to formula inputs.
type MeasurementEntry struct {
	// Coord is the parsed voxel position
	Coord Coord

	// Metabolite is the metabolite name of this row
	Metabolite string

	// Fields maps column name to the raw string value from the source file
	Fields map[string]string
}

// Field returns the raw value for the named column, or the empty string
// when the column is absent.
func (e *MeasurementEntry) Field(name string) string {
	return e.Fields[name]
}
