package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"mrsiproc/internal/models"
	"mrsiproc/pkg/relaxometry"
)

func entry(x, y, z int, metabolite, area, ldamping string) models.MeasurementEntry {
	c := models.Coord{X: x, Y: y, Z: z}
	return models.MeasurementEntry{
		Coord:      c,
		Metabolite: metabolite,
		Fields: map[string]string{
			"Coord":      c.String(),
			"Metabolite": metabolite,
			"Area":       area,
			"LDamping":   ldamping,
		},
	}
}

var testHeaders = []string{"Coord", "Metabolite", "Area", "LDamping"}

// TestWriteMergedWorkbook verifies the sheet layout, the merge by
// coordinate key and the live formulas of the combined workbook
func TestWriteMergedWorkbook(t *testing.T) {
	phantom := []models.MeasurementEntry{
		entry(1, 1, 0, "Main", "10.0", "2.0"),
		entry(2, 1, 1, "Main", "8.0", "1.6"),
	}
	subject := []models.MeasurementEntry{
		entry(1, 1, 0, "Main", "5.0", "2.5"),
		entry(3, 2, 1, "Main", "6.0", "1.2"),
	}

	path := filepath.Join(t.TempDir(), "merged.xlsx")
	seq := SequenceParams{TRPhantom: 1500, T1Phantom: 800, TEPhantom: 30, PhantomConcentration: 50}

	if err := WriteMergedWorkbook(path, phantom, subject, testHeaders, seq); err != nil {
		t.Fatalf("WriteMergedWorkbook failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	t.Run("Sheets", func(t *testing.T) {
		sheets := f.GetSheetList()
		for _, want := range []string{"all", "z0p", "z1p", "z0s", "z1s"} {
			found := false
			for _, s := range sheets {
				if s == want {
					found = true
				}
			}
			if !found {
				t.Errorf("sheet %s missing, have %v", want, sheets)
			}
		}
	})

	t.Run("ParamCells", func(t *testing.T) {
		if v, _ := f.GetCellValue("all", "A1"); v != "TRp" {
			t.Errorf("A1 = %q, want TRp", v)
		}
		if v, _ := f.GetCellValue("all", "B1"); v != "1500" {
			t.Errorf("B1 = %q, want 1500", v)
		}
		if v, _ := f.GetCellValue("all", "E1"); v != "Pc [mM]" {
			t.Errorf("E1 = %q, want Pc [mM]", v)
		}
	})

	t.Run("HeaderRow", func(t *testing.T) {
		if v, _ := f.GetCellValue("all", "A4"); v != "Coord_p" {
			t.Errorf("A4 = %q, want Coord_p", v)
		}
		// Derived phantom headers follow the 4 source columns
		if v, _ := f.GetCellValue("all", "E4"); v != "Height_p" {
			t.Errorf("E4 = %q, want Height_p", v)
		}
		// Concentration column sits after the phantom block
		if v, _ := f.GetCellValue("all", "I4"); v != "c [mM]" {
			t.Errorf("I4 = %q, want c [mM]", v)
		}
		// Subject block starts right after it
		if v, _ := f.GetCellValue("all", "J4"); v != "Coord_s" {
			t.Errorf("J4 = %q, want Coord_s", v)
		}
	})

	t.Run("MergedRows", func(t *testing.T) {
		// Row 5 is coordinate 1_1_0, present on both sides
		if v, _ := f.GetCellValue("all", "A5"); v != "1_1_0" {
			t.Errorf("A5 = %q, want 1_1_0", v)
		}
		if v, _ := f.GetCellValue("all", "J5"); v != "1_1_0" {
			t.Errorf("J5 = %q, want 1_1_0", v)
		}
		// Row 6 is 2_1_1, phantom only: subject side stays empty
		if v, _ := f.GetCellValue("all", "A6"); v != "2_1_1" {
			t.Errorf("A6 = %q, want 2_1_1", v)
		}
		if v, _ := f.GetCellValue("all", "J6"); v != "" {
			t.Errorf("J6 = %q, want empty", v)
		}
		// Row 7 is 3_2_1, subject only
		if v, _ := f.GetCellValue("all", "J7"); v != "3_2_1" {
			t.Errorf("J7 = %q, want 3_2_1", v)
		}
	})

	t.Run("Formulas", func(t *testing.T) {
		// Height = Area / LDamping on the phantom side
		if formula, _ := f.GetCellFormula("all", "E5"); formula != "C5/D5" {
			t.Errorf("E5 formula = %q, want C5/D5", formula)
		}
		// FWHM = LDamping / PI()
		if formula, _ := f.GetCellFormula("all", "F5"); formula != "D5/PI()" {
			t.Errorf("F5 formula = %q, want D5/PI()", formula)
		}
		// I0ps and I0 reference the phantom parameter cells
		if formula, _ := f.GetCellFormula("all", "G5"); formula != "E5*EXP($B$3/F5)" {
			t.Errorf("G5 formula = %q", formula)
		}
		if formula, _ := f.GetCellFormula("all", "H5"); formula != "G5*(1-EXP(-$B$1/$B$2))" {
			t.Errorf("H5 formula = %q", formula)
		}
		// Subject-side height references the shifted columns
		if formula, _ := f.GetCellFormula("all", "N5"); formula != "L5/M5" {
			t.Errorf("N5 formula = %q, want L5/M5", formula)
		}
		// Concentration ratio formula on the merged row
		formula, _ := f.GetCellFormula("all", "I5")
		if !strings.Contains(formula, "H5") || !strings.Contains(formula, "Q5") || !strings.Contains(formula, "$F$1") {
			t.Errorf("I5 concentration formula = %q", formula)
		}
	})

	t.Run("SliceSheetLinks", func(t *testing.T) {
		if formula, _ := f.GetCellFormula("z1p", "B1"); formula != "all!B1" {
			t.Errorf("z1p B1 formula = %q, want all!B1", formula)
		}
		if formula, _ := f.GetCellFormula("z1p", "F1"); formula != "'all'!F1" {
			t.Errorf("z1p F1 formula = %q, want 'all'!F1", formula)
		}
		// Slice sheet carries only its z rows, headers unsuffixed
		if v, _ := f.GetCellValue("z1p", "A4"); v != "Coord" {
			t.Errorf("z1p A4 = %q, want Coord", v)
		}
		if v, _ := f.GetCellValue("z1p", "A5"); v != "2_1_1" {
			t.Errorf("z1p A5 = %q, want 2_1_1", v)
		}
		if v, _ := f.GetCellValue("z1p", "A6"); v != "" {
			t.Errorf("z1p has extra row: %q", v)
		}
	})
}

// TestWriteMergedWorkbookRequiresColumns verifies the Area/LDamping
// header requirement
func TestWriteMergedWorkbookRequiresColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	err := WriteMergedWorkbook(path, nil, nil, []string{"Coord", "Metabolite"}, SequenceParams{})
	if err == nil {
		t.Fatal("expected error for headers without Area/LDamping")
	}
}

// TestWriteFitWorkbook verifies the relaxometry workbook layout
func TestWriteFitWorkbook(t *testing.T) {
	times := []float64{100, 500, 1000, 2000, 4000}
	amps := make([]float64, len(times))
	free := relaxometry.InversionRecovery{}
	fixed := relaxometry.InversionRecoveryFixed{}
	for i, ti := range times {
		amps[i] = free.Eval(ti, []float64{1000, 800, 1.0})
	}

	outcome, err := relaxometry.FitWithFallback(free, fixed, times, amps, relaxometry.DefaultOptions())
	if err != nil {
		t.Fatalf("FitWithFallback failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "fit.xlsx")
	if err := WriteFitWorkbook(path, "TI", times, amps, free, fixed, outcome); err != nil {
		t.Fatalf("WriteFitWorkbook failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Data", "FitResults", "FitCurve"} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			t.Errorf("sheet %s missing", sheet)
		}
	}

	if v, _ := f.GetCellValue("Data", "A1"); v != "TI_ms" {
		t.Errorf("Data A1 = %q, want TI_ms", v)
	}
	if v, _ := f.GetCellValue("Data", "A2"); v != "100" {
		t.Errorf("Data A2 = %q, want 100", v)
	}
	if v, _ := f.GetCellValue("FitResults", "A2"); v != "M0" {
		t.Errorf("FitResults A2 = %q, want M0", v)
	}
	if v, _ := f.GetCellValue("FitCurve", "B1"); v != "Fit_alpha_free" {
		t.Errorf("FitCurve B1 = %q", v)
	}
}

// TestReadVoxels verifies workbook voxel loading with the row-4 header
// convention
func TestReadVoxels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxels.xlsx")

	f := excelize.NewFile()
	if _, err := f.NewSheet("all"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	headers := []string{"Coord_p", "Height_p", "Area_p"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		if err := f.SetCellValue("all", cell, h); err != nil {
			t.Fatalf("SetCellValue failed: %v", err)
		}
	}
	rows := [][]interface{}{
		{"1_2_0", 3.5, 7.0},
		{"2_2_0", 4.5, 9.0},
		{"oops", 1.0, 1.0},
		{"3_2_0", "", 2.0},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+5)
			if err := f.SetCellValue("all", cell, v); err != nil {
				t.Fatalf("SetCellValue failed: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	f.Close()

	t.Run("HeightSource", func(t *testing.T) {
		voxels, col, err := ReadVoxels(path, SourceHeight)
		if err != nil {
			t.Fatalf("ReadVoxels failed: %v", err)
		}
		if col != "Height_p" {
			t.Errorf("intensity column = %q, want Height_p", col)
		}
		// Bad coordinate row and the empty-height row are skipped
		if len(voxels) != 2 {
			t.Fatalf("got %d voxels, want 2", len(voxels))
		}
		if voxels[0].Value != 3.5 {
			t.Errorf("first voxel value = %v, want 3.5", voxels[0].Value)
		}
	})

	t.Run("AreaSource", func(t *testing.T) {
		voxels, col, err := ReadVoxels(path, SourceArea)
		if err != nil {
			t.Fatalf("ReadVoxels failed: %v", err)
		}
		if col != "Area_p" {
			t.Errorf("intensity column = %q, want Area_p", col)
		}
		if len(voxels) != 3 {
			t.Fatalf("got %d voxels, want 3", len(voxels))
		}
	})

	t.Run("DefaultPrefersHeight", func(t *testing.T) {
		_, col, err := ReadVoxels(path, SourceDefault)
		if err != nil {
			t.Fatalf("ReadVoxels failed: %v", err)
		}
		if col != "Height_p" {
			t.Errorf("default source picked %q, want Height_p", col)
		}
	})
}
