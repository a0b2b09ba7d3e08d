// Package report assembles the Excel workbooks of the analysis
// workflow: the phantom/subject comparison workbook whose derived
// quantities are live cross-referencing formulas, and the relaxometry
// result workbook with its fit chart.
//
// Derived cells are written as formulas, never as precomputed values, so
// the workbook re-derives every result when raw inputs or the sequence
// parameters are edited.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"mrsiproc/internal/models"
)

// SequenceParams carries the acquisition timing constants seeded into
// the parameter cells of the workbook. Zero values leave the cell blank
// for the analyst to fill in; every formula references the cell, not the
// value.
type SequenceParams struct {
	TRPhantom, T1Phantom, TEPhantom float64
	TRSubject, T1Subject, TESubject float64

	// PhantomConcentration is the reference concentration in mM (cell F1)
	PhantomConcentration float64
}

// Derived column names appended after the source columns.
var derivedColumns = []string{"Height", "FWHM", "I0ps", "I0"}

// layout captures the column arithmetic of the merged workbook.
type layout struct {
	headers    []string // source columns
	headerCols []string // source + derived columns
	areaCol    int      // 1-based column of Area
	ldCol      int      // 1-based column of LDamping
	heightCol  int
	fwhmCol    int
	i0psCol    int
	i0Col      int
	concCol    int // "c [mM]" column, after the phantom block
	subjOffset int // column offset of the subject block
}

func newLayout(headers []string) (*layout, error) {
	l := &layout{headers: headers}
	l.headerCols = append(append([]string{}, headers...), derivedColumns...)

	for i, h := range headers {
		switch h {
		case "Area":
			l.areaCol = i + 1
		case "LDamping":
			l.ldCol = i + 1
		}
	}
	if l.areaCol == 0 || l.ldCol == 0 {
		return nil, fmt.Errorf("measurement headers lack Area or LDamping column: %v", headers)
	}

	n := len(headers)
	l.heightCol = n + 1
	l.fwhmCol = n + 2
	l.i0psCol = n + 3
	l.i0Col = n + 4
	l.concCol = n + 5
	l.subjOffset = n + 5
	return l, nil
}

// WriteMergedWorkbook merges phantom (reference) and subject (target)
// entries by coordinate key and writes the combined workbook: an "all"
// sheet with the phantom block, a concentration column and the subject
// block side by side, plus one sheet per z-slice and dataset. All
// derived quantities are emitted as formulas.
func WriteMergedWorkbook(path string, phantom, subject []models.MeasurementEntry, headers []string, seq SequenceParams) error {
	l, err := newLayout(headers)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeAllSheet(f, l, phantom, subject, seq); err != nil {
		return err
	}
	if err := writeSliceSheets(f, l, phantom, "p"); err != nil {
		return err
	}
	if err := writeSliceSheets(f, l, subject, "s"); err != nil {
		return err
	}

	// Drop the default sheet so "all" comes first
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("error removing default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex("all")
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving workbook: %w", err)
	}
	return nil
}

func writeAllSheet(f *excelize.File, l *layout, phantom, subject []models.MeasurementEntry, seq SequenceParams) error {
	const sheet = "all"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet %s: %w", sheet, err)
	}

	if err := writeParamCells(f, sheet, seq); err != nil {
		return err
	}

	// Header row 4: phantom block suffixed _p, concentration column,
	// subject block suffixed _s
	for i, h := range l.headerCols {
		if err := setCell(f, sheet, i+1, 4, h+"_p"); err != nil {
			return err
		}
		if err := setCell(f, sheet, i+1+l.subjOffset, 4, h+"_s"); err != nil {
			return err
		}
	}
	if err := setCell(f, sheet, l.concCol, 4, "c [mM]"); err != nil {
		return err
	}

	byCoordP := indexByCoord(phantom)
	byCoordS := indexByCoord(subject)
	coords := unionCoords(phantom, subject)

	row := 5
	for _, c := range coords {
		if e, ok := byCoordP[c]; ok {
			if err := writeEntryRow(f, sheet, l, e, row, 0, "$B"); err != nil {
				return err
			}
		}
		if e, ok := byCoordS[c]; ok {
			if err := writeEntryRow(f, sheet, l, e, row, l.subjOffset, "$D"); err != nil {
				return err
			}
		}

		// Concentration from the I0 ratio scaled by the phantom
		// concentration; blank when either side is missing or zero
		pI0, err := excelize.ColumnNumberToName(l.i0Col)
		if err != nil {
			return err
		}
		sI0, err := excelize.ColumnNumberToName(l.i0Col + l.subjOffset)
		if err != nil {
			return err
		}
		formula := fmt.Sprintf(`IF(AND(%[1]s%[3]d<>0, %[2]s%[3]d<>0), (%[2]s%[3]d/%[1]s%[3]d)*$F$1, "")`, pI0, sI0, row)
		if err := setFormula(f, sheet, l.concCol, row, formula); err != nil {
			return err
		}

		row++
	}
	return nil
}

// writeSliceSheets writes one sheet per z-value of the dataset, named
// z{n}p or z{n}s. Parameter cells link back to the "all" sheet so edits
// there recompute every slice.
func writeSliceSheets(f *excelize.File, l *layout, entries []models.MeasurementEntry, suffix string) error {
	for _, z := range zValues(entries) {
		sheet := fmt.Sprintf("z%d%s", z, suffix)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("error creating sheet %s: %w", sheet, err)
		}

		labels := map[string]string{
			"A1": "TRp", "A2": "T1p", "A3": "TEp",
			"C1": "TRs", "C2": "T1s", "C3": "TEs",
			"E1": "Pc [mM]",
		}
		for cell, v := range labels {
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		links := map[string]string{
			"B1": "all!B1", "B2": "all!B2", "B3": "all!B3",
			"D1": "all!D1", "D2": "all!D2", "D3": "all!D3",
			"F1": "'all'!F1",
		}
		for cell, formula := range links {
			if err := f.SetCellFormula(sheet, cell, formula); err != nil {
				return err
			}
		}

		for i, h := range l.headerCols {
			if err := setCell(f, sheet, i+1, 4, h); err != nil {
				return err
			}
		}
		if err := setCell(f, sheet, l.concCol, 4, "c [mM]"); err != nil {
			return err
		}

		row := 5
		for _, e := range entries {
			if e.Coord.Z != z {
				continue
			}
			if err := writeEntryRow(f, sheet, l, e, row, 0, "$B"); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// writeEntryRow writes the source fields of one entry followed by the
// four derived-quantity formulas, shifted right by offset columns.
// paramCol is the absolute column of the sequence parameter cells the
// formulas reference ($B for the phantom block, $D for the subject one).
func writeEntryRow(f *excelize.File, sheet string, l *layout, e models.MeasurementEntry, row, offset int, paramCol string) error {
	for i, h := range l.headers {
		if err := setCell(f, sheet, i+1+offset, row, e.Field(h)); err != nil {
			return err
		}
	}

	area, err := excelize.ColumnNumberToName(l.areaCol + offset)
	if err != nil {
		return err
	}
	ld, err := excelize.ColumnNumberToName(l.ldCol + offset)
	if err != nil {
		return err
	}
	height, err := excelize.ColumnNumberToName(l.heightCol + offset)
	if err != nil {
		return err
	}
	fwhm, err := excelize.ColumnNumberToName(l.fwhmCol + offset)
	if err != nil {
		return err
	}
	i0ps, err := excelize.ColumnNumberToName(l.i0psCol + offset)
	if err != nil {
		return err
	}

	formulas := []struct {
		col     int
		formula string
	}{
		{l.heightCol + offset, fmt.Sprintf("%s%d/%s%d", area, row, ld, row)},
		{l.fwhmCol + offset, fmt.Sprintf("%s%d/PI()", ld, row)},
		{l.i0psCol + offset, fmt.Sprintf("%s%d*EXP(%s$3/%s%d)", height, row, paramCol, fwhm, row)},
		{l.i0Col + offset, fmt.Sprintf("%s%d*(1-EXP(-%s$1/%s$2))", i0ps, row, paramCol, paramCol)},
	}
	for _, fc := range formulas {
		if err := setFormula(f, sheet, fc.col, row, fc.formula); err != nil {
			return err
		}
	}
	return nil
}

func writeParamCells(f *excelize.File, sheet string, seq SequenceParams) error {
	labels := map[string]string{
		"A1": "TRp", "A2": "T1p", "A3": "TEp",
		"C1": "TRs", "C2": "T1s", "C3": "TEs",
		"E1": "Pc [mM]",
	}
	for cell, v := range labels {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}

	values := map[string]float64{
		"B1": seq.TRPhantom, "B2": seq.T1Phantom, "B3": seq.TEPhantom,
		"D1": seq.TRSubject, "D2": seq.T1Subject, "D3": seq.TESubject,
		"F1": seq.PhantomConcentration,
	}
	for cell, v := range values {
		if v == 0 {
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func setFormula(f *excelize.File, sheet string, col, row int, formula string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellFormula(sheet, cell, formula)
}

func indexByCoord(entries []models.MeasurementEntry) map[models.Coord]models.MeasurementEntry {
	m := make(map[models.Coord]models.MeasurementEntry, len(entries))
	for _, e := range entries {
		if _, ok := m[e.Coord]; !ok {
			m[e.Coord] = e
		}
	}
	return m
}

func unionCoords(a, b []models.MeasurementEntry) []models.Coord {
	seen := make(map[models.Coord]bool)
	var coords []models.Coord
	for _, e := range a {
		if !seen[e.Coord] {
			seen[e.Coord] = true
			coords = append(coords, e.Coord)
		}
	}
	for _, e := range b {
		if !seen[e.Coord] {
			seen[e.Coord] = true
			coords = append(coords, e.Coord)
		}
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	return coords
}

func zValues(entries []models.MeasurementEntry) []int {
	seen := make(map[int]bool)
	var zs []int
	for _, e := range entries {
		if !seen[e.Coord.Z] {
			seen[e.Coord.Z] = true
			zs = append(zs, e.Coord.Z)
		}
	}
	sort.Ints(zs)
	return zs
}
