package report

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"mrsiproc/internal/models"
)

// IntensitySource selects which workbook column feeds the heatmap.
type IntensitySource int

const (
	// SourceDefault prefers a Height column and falls back to Area
	SourceDefault IntensitySource = iota

	// SourceHeight uses the first Height-like column
	SourceHeight

	// SourceArea uses the first Area-like column
	SourceArea
)

// ParseIntensitySource maps the CLI flag value to a source.
func ParseIntensitySource(s string) (IntensitySource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "default":
		return SourceDefault, nil
	case "h", "height":
		return SourceHeight, nil
	case "a", "area":
		return SourceArea, nil
	default:
		return SourceDefault, fmt.Errorf("unknown intensity source %q (height, area or default)", s)
	}
}

// ReadVoxels loads voxel intensities from the "all" sheet of a workbook
// produced by the merge workflow. Headers sit on row 4 (data from row
// 5); the coordinate column is found by substring match. It returns the
// voxels and the name of the intensity column used.
func ReadVoxels(path string, source IntensitySource) ([]models.Voxel, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("all")
	if err != nil {
		return nil, "", fmt.Errorf("error reading 'all' sheet: %w", err)
	}
	if len(rows) < 5 {
		return nil, "", fmt.Errorf("'all' sheet has no data rows below the header row")
	}

	headers := rows[3]
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	coordIdx := findColumn(headers, "coord")
	if coordIdx < 0 {
		return nil, "", fmt.Errorf("no column containing 'Coord' found in 'all' sheet headers")
	}

	intIdx, intName, err := pickIntensityColumn(headers, source)
	if err != nil {
		return nil, "", err
	}
	log.WithFields(log.Fields{
		"coordColumn":     headers[coordIdx],
		"intensityColumn": intName,
	}).Info("reading voxels from workbook")

	var voxels []models.Voxel
	for rowNo, row := range rows[4:] {
		if coordIdx >= len(row) || strings.TrimSpace(row[coordIdx]) == "" {
			continue
		}
		coord, err := models.ParseCoord(row[coordIdx])
		if err != nil {
			log.WithFields(log.Fields{
				"row":   rowNo + 5,
				"coord": row[coordIdx],
			}).Warn("skipping row with unparseable coordinate")
			continue
		}

		if intIdx >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[intIdx]), 64)
		if err != nil {
			// Formula cells can evaluate to "" for missing inputs
			continue
		}

		voxels = append(voxels, models.Voxel{Coord: coord, Value: v})
	}

	if len(voxels) == 0 {
		return nil, "", fmt.Errorf("no usable voxel rows in 'all' sheet")
	}
	return voxels, intName, nil
}

// pickIntensityColumn resolves the requested source against the columns
// that are actually present, falling back between Height and Area the
// way the analysis workflow expects.
func pickIntensityColumn(headers []string, source IntensitySource) (int, string, error) {
	heightIdx := findColumn(headers, "height")
	areaIdx := findColumn(headers, "area")

	switch source {
	case SourceHeight:
		if heightIdx >= 0 {
			return heightIdx, headers[heightIdx], nil
		}
		if areaIdx >= 0 {
			log.Warn("no Height column found, falling back to Area")
			return areaIdx, headers[areaIdx], nil
		}
	case SourceArea:
		if areaIdx >= 0 {
			return areaIdx, headers[areaIdx], nil
		}
		if heightIdx >= 0 {
			log.Warn("no Area column found, falling back to Height")
			return heightIdx, headers[heightIdx], nil
		}
	default:
		if heightIdx >= 0 {
			return heightIdx, headers[heightIdx], nil
		}
		if areaIdx >= 0 {
			return areaIdx, headers[areaIdx], nil
		}
	}
	return -1, "", fmt.Errorf("neither Height nor Area column found in 'all' sheet")
}

func findColumn(headers []string, substr string) int {
	for i, h := range headers {
		if strings.Contains(strings.ToLower(h), substr) {
			return i
		}
	}
	return -1
}
