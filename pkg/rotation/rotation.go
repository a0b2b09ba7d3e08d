// Package rotation rotates voxel coordinates of fitted MRSI measurement
// files within a fixed-size raster. It is used when a phantom measurement
// was not acquired with the same raster orientation as the subject
// measurement it corrects.
package rotation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"mrsiproc/internal/models"
)

// SupportedAngles lists the rotation angles the raster supports.
var SupportedAngles = []int{90, 180, 270}

// Rotate rotates a coordinate about the raster center in the XY plane,
// leaving Z unchanged. Only 90, 180 and 270 degrees are supported; any
// other angle is an input error.
func Rotate(c models.Coord, angle int, grid models.GridDims) (models.Coord, error) {
	switch angle {
	case 90:
		return models.Coord{X: grid.Y - 1 - c.Y, Y: c.X, Z: c.Z}, nil
	case 180:
		return models.Coord{X: grid.X - 1 - c.X, Y: grid.Y - 1 - c.Y, Z: c.Z}, nil
	case 270:
		return models.Coord{X: c.Y, Y: grid.X - 1 - c.X, Z: c.Z}, nil
	default:
		return models.Coord{}, fmt.Errorf("unsupported rotation angle %d (must be 90, 180 or 270)", angle)
	}
}

// Stats summarizes one file rewrite.
type Stats struct {
	// Rotated is the number of voxel blocks whose coordinate was rotated
	Rotated int

	// PassedThrough is the number of blocks copied unchanged because their
	// coordinate could not be parsed
	PassedThrough int
}

// RewriteFile reads a Coord-block text file, rotates every voxel
// coordinate by the given angle and writes the result to outPath.
//
// The file format is a sequence of three-line blocks: a header line
// starting with "Coord", a tab-separated data line whose first field is
// the "x_y_z" coordinate, and an end line. Lines outside blocks are
// copied verbatim. Blocks whose coordinate cannot be parsed are passed
// through unchanged and reported with a warning.
//
// The source file is never modified; the output is written only after
// every record has been rebuilt.
func RewriteFile(inPath, outPath string, angle int, grid models.GridDims) (*Stats, error) {
	// Reject bad angles before touching any file
	if _, err := Rotate(models.Coord{}, angle, grid); err != nil {
		return nil, err
	}

	lines, err := readLines(inPath)
	if err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}

	output := make([]string, 0, len(lines))
	stats := &Stats{}

	for i := 0; i < len(lines); {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "Coord") || i+2 >= len(lines) {
			// Not a voxel block, copy the line as-is
			output = append(output, lines[i])
			i++
			continue
		}

		header := lines[i]
		data := lines[i+1]
		end := lines[i+2]

		rotated, err := rotateDataLine(data, angle, grid)
		if err != nil {
			log.WithFields(log.Fields{
				"line":  i + 2,
				"error": err,
			}).Warn("keeping voxel block unchanged")
			output = append(output, header, data, end)
			stats.PassedThrough++
		} else {
			output = append(output, header, rotated, end)
			stats.Rotated++
		}

		i += 3
	}

	if err := writeLines(outPath, output); err != nil {
		return nil, fmt.Errorf("error writing output file: %w", err)
	}

	return stats, nil
}

// rotateDataLine rewrites the leading "x_y_z" field of a tab-separated
// data line with its rotated coordinate.
func rotateDataLine(line string, angle int, grid models.GridDims) (string, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "\t")

	coord, err := models.ParseCoord(parts[0])
	if err != nil {
		return "", err
	}

	rotated, err := Rotate(coord, angle, grid)
	if err != nil {
		return "", err
	}

	parts[0] = rotated.String()
	return strings.Join(parts, "\t"), nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
