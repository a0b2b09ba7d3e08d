package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"mrsiproc/pkg/relaxometry"
)

// curvePoints is the sample count of the dense fitted curve written for
// charting.
const curvePoints = 100

// WriteFitWorkbook writes a relaxometry result workbook: the raw samples
// on a Data sheet, parameter estimates with standard errors and R^2 on a
// FitResults sheet, the densely sampled fitted curves on a FitCurve
// sheet and a native chart comparing samples and fits. timingLabel is
// "TI" or "TE" depending on the experiment.
func WriteFitWorkbook(path, timingLabel string, times, amps []float64,
	free, fixed relaxometry.Model, outcome *relaxometry.Outcome) error {

	f := excelize.NewFile()
	defer f.Close()

	if err := writeDataSheet(f, timingLabel, times, amps); err != nil {
		return err
	}
	if err := writeResultsSheet(f, outcome); err != nil {
		return err
	}
	if err := writeCurveSheet(f, timingLabel, times, free, fixed, outcome); err != nil {
		return err
	}
	if err := addFitChart(f, timingLabel, len(times), outcome); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("error removing default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex("Data")
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving workbook: %w", err)
	}
	return nil
}

func writeDataSheet(f *excelize.File, timingLabel string, times, amps []float64) error {
	const sheet = "Data"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	if err := f.SetCellValue(sheet, "A1", timingLabel+"_ms"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "B1", "Amplitude"); err != nil {
		return err
	}
	for i := range times {
		if err := setCell(f, sheet, 1, i+2, times[i]); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, i+2, amps[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeResultsSheet(f *excelize.File, outcome *relaxometry.Outcome) error {
	const sheet = "FitResults"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	for col, h := range []string{"Parameter", "Value", "Error"} {
		if err := setCell(f, sheet, col+1, 1, h); err != nil {
			return err
		}
	}

	row := 2
	writeResult := func(r *relaxometry.Result, suffix string) error {
		for i, name := range r.ParamNames {
			if err := setCell(f, sheet, 1, row, name+suffix); err != nil {
				return err
			}
			if err := setCell(f, sheet, 2, row, r.Params[i]); err != nil {
				return err
			}
			if !math.IsNaN(r.StdErrs[i]) {
				if err := setCell(f, sheet, 3, row, r.StdErrs[i]); err != nil {
					return err
				}
			}
			row++
		}
		if err := setCell(f, sheet, 1, row, "R2"+suffix); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, row, r.RSquared); err != nil {
			return err
		}
		row++
		return nil
	}

	if outcome.Free != nil {
		if err := writeResult(outcome.Free, ""); err != nil {
			return err
		}
	} else {
		if err := setCell(f, sheet, 1, row, "Fallback"); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, row, outcome.FallbackReason); err != nil {
			return err
		}
		row++
	}
	if outcome.Fixed != nil {
		if err := writeResult(outcome.Fixed, "_fixed"); err != nil {
			return err
		}
	}
	return nil
}

// writeCurveSheet samples both fits densely over [0, 1.05*max(t)] for
// the comparison chart.
func writeCurveSheet(f *excelize.File, timingLabel string, times []float64,
	free, fixed relaxometry.Model, outcome *relaxometry.Outcome) error {

	const sheet = "FitCurve"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	maxT := 0.0
	for _, t := range times {
		if t > maxT {
			maxT = t
		}
	}
	span := maxT * 1.05

	headers := []string{timingLabel + "_ms"}
	if outcome.Free != nil {
		headers = append(headers, "Fit_alpha_free")
	}
	if outcome.Fixed != nil {
		headers = append(headers, "Fit_alpha_1")
	}
	for col, h := range headers {
		if err := setCell(f, sheet, col+1, 1, h); err != nil {
			return err
		}
	}

	for i := 0; i < curvePoints; i++ {
		t := span * float64(i) / float64(curvePoints-1)
		if err := setCell(f, sheet, 1, i+2, t); err != nil {
			return err
		}
		col := 2
		if outcome.Free != nil {
			if err := setCell(f, sheet, col, i+2, free.Eval(t, outcome.Free.Params)); err != nil {
				return err
			}
			col++
		}
		if outcome.Fixed != nil {
			if err := setCell(f, sheet, col, i+2, fixed.Eval(t, outcome.Fixed.Params)); err != nil {
				return err
			}
		}
	}
	return nil
}

func addFitChart(f *excelize.File, timingLabel string, nSamples int, outcome *relaxometry.Outcome) error {
	series := []excelize.ChartSeries{{
		Name:       "Data",
		Categories: fmt.Sprintf("Data!$A$2:$A$%d", nSamples+1),
		Values:     fmt.Sprintf("Data!$B$2:$B$%d", nSamples+1),
	}}

	curveCol := 'B'
	if outcome.Free != nil {
		series = append(series, excelize.ChartSeries{
			Name:       "Fit (alpha free)",
			Categories: fmt.Sprintf("FitCurve!$A$2:$A$%d", curvePoints+1),
			Values:     fmt.Sprintf("FitCurve!$%c$2:$%c$%d", curveCol, curveCol, curvePoints+1),
		})
		curveCol++
	}
	if outcome.Fixed != nil {
		series = append(series, excelize.ChartSeries{
			Name:       "Fit (alpha = 1)",
			Categories: fmt.Sprintf("FitCurve!$A$2:$A$%d", curvePoints+1),
			Values:     fmt.Sprintf("FitCurve!$%c$2:$%c$%d", curveCol, curveCol, curvePoints+1),
		})
	}

	chart := &excelize.Chart{
		Type:   excelize.Scatter,
		Series: series,
		Title: []excelize.RichTextRun{
			{Text: fmt.Sprintf("Relaxometry fit (%s)", timingLabel)},
		},
		Legend: excelize.ChartLegend{Position: "bottom"},
	}
	if err := f.AddChart("Data", "D2", chart); err != nil {
		return fmt.Errorf("error adding fit chart: %w", err)
	}
	return nil
}
