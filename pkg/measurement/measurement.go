// Package measurement parses fitted MRSI measurement text files into
// coordinate-keyed records. Files consist of blocks separated by "###";
// each block opens with a tab-separated header line beginning "Coord"
// and is followed by one row per voxel and metabolite, the first field
// carrying the "x_y_z" coordinate.
package measurement

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"mrsiproc/internal/models"
)

// ParseFile reads and parses one measurement file. It returns the
// entries and the column headers of the last block (all blocks of a file
// share the same layout).
func ParseFile(path string) ([]models.MeasurementEntry, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening measurement file: %w", err)
	}
	defer file.Close()

	entries, headers, err := Parse(file)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return entries, headers, nil
}

// Parse parses measurement data from a reader. Rows whose coordinate or
// layout cannot be interpreted are skipped with a warning; this is a
// recover-and-continue policy, not a fatal one.
func Parse(r io.Reader) ([]models.MeasurementEntry, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	var entries []models.MeasurementEntry
	var headers []string

	blocks := strings.Split(strings.TrimSpace(string(data)), "###")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || !strings.HasPrefix(lines[0], "Coord") {
			continue
		}
		headers = strings.Split(strings.TrimRight(lines[0], "\r"), "\t")

		for i, line := range lines[1:] {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			parts := strings.Split(line, "\t")
			if len(parts) < len(headers) {
				log.WithFields(log.Fields{
					"row":    i + 2,
					"fields": len(parts),
					"want":   len(headers),
				}).Warn("skipping short measurement row")
				continue
			}

			fields := make(map[string]string, len(headers))
			for j, h := range headers {
				fields[h] = parts[j]
			}

			coord, err := models.ParseCoord(fields["Coord"])
			if err != nil {
				log.WithFields(log.Fields{
					"row":   i + 2,
					"coord": fields["Coord"],
				}).Warn("skipping row with unparseable coordinate")
				continue
			}

			entries = append(entries, models.MeasurementEntry{
				Coord:      coord,
				Metabolite: fields["Metabolite"],
				Fields:     fields,
			})
		}
	}

	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("no measurement entries found")
	}
	return entries, headers, nil
}

// SortByCoord orders entries by (z, x, y), the layout order of the
// report workbook.
func SortByCoord(entries []models.MeasurementEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Coord.Less(entries[j].Coord)
	})
}

// Metabolites returns the sorted set of metabolite names present in the
// entries.
func Metabolites(entries []models.MeasurementEntry) []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if !seen[e.Metabolite] {
			seen[e.Metabolite] = true
			names = append(names, e.Metabolite)
		}
	}
	sort.Strings(names)
	return names
}

// Filter returns the entries whose metabolite is in the selected set.
func Filter(entries []models.MeasurementEntry, selected []string) []models.MeasurementEntry {
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s != "" {
			want[s] = true
		}
	}

	var out []models.MeasurementEntry
	for _, e := range entries {
		if want[e.Metabolite] {
			out = append(out, e)
		}
	}
	return out
}

// Voxels extracts (coordinate, value) pairs for the named numeric field.
// Rows whose field does not parse are skipped with a warning.
func Voxels(entries []models.MeasurementEntry, field string) []models.Voxel {
	var voxels []models.Voxel
	for _, e := range entries {
		v, err := parseFloat(e.Field(field))
		if err != nil {
			log.WithFields(log.Fields{
				"coord": e.Coord.String(),
				"field": field,
			}).Warn("skipping voxel with non-numeric field")
			continue
		}
		voxels = append(voxels, models.Voxel{Coord: e.Coord, Value: v})
	}
	return voxels
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
