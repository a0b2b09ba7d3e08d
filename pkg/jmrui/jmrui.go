// Package jmrui reads the text outputs of jMRUI-style spectral fitting:
// result files with labeled "Amplitudes" and "Phases" sections, and the
// companion files listing one timing value (TI or TE) per line.
package jmrui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ReadAmplitudes extracts the values of the "Amplitudes" section of a
// jMRUI result file. The section ends at the "Standard deviation of
// Amplitudes" line.
func ReadAmplitudes(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening amplitude file: %w", err)
	}
	defer file.Close()

	amps, _, err := parseSections(file)
	if err != nil {
		return nil, err
	}
	if len(amps) == 0 {
		return nil, fmt.Errorf("no amplitudes found in %s", path)
	}
	return amps, nil
}

// ReadSignedAmplitudes extracts amplitudes with their sign restored from
// the "Phases" section: a phase below zero flips the amplitude negative.
// When the file carries no phase data the magnitudes are returned as-is
// with a warning.
func ReadSignedAmplitudes(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening amplitude file: %w", err)
	}
	defer file.Close()

	amps, phases, err := parseSections(file)
	if err != nil {
		return nil, err
	}
	if len(amps) == 0 {
		return nil, fmt.Errorf("no amplitudes found in %s", path)
	}

	if len(phases) == 0 {
		log.WithField("file", path).Warn("no phase data found, using amplitudes as-is")
		return amps, nil
	}

	n := len(amps)
	if len(phases) < n {
		n = len(phases)
	}
	signed := make([]float64, n)
	for i := 0; i < n; i++ {
		if phases[i] < 0 {
			signed[i] = -amps[i]
		} else {
			signed[i] = amps[i]
		}
	}
	return signed, nil
}

// parseSections scans a jMRUI result stream for the Amplitudes and
// Phases sections. Tokens that do not parse as numbers are ignored.
func parseSections(r io.Reader) (amps, phases []float64, err error) {
	insideAmp := false
	insidePhase := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Standard deviation of Amplitudes"):
			insideAmp = false
			continue
		case strings.HasPrefix(line, "Amplitudes"):
			insideAmp = true
			continue
		case strings.HasPrefix(line, "Standard deviation of Phases"):
			insidePhase = false
			continue
		case strings.HasPrefix(line, "Phases"):
			insidePhase = true
			continue
		}

		if insideAmp {
			amps = append(amps, parseTokens(line)...)
		}
		if insidePhase {
			phases = append(phases, parseTokens(line)...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading result file: %w", err)
	}
	return amps, phases, nil
}

func parseTokens(line string) []float64 {
	var vals []float64
	for _, tok := range strings.Fields(line) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

// ReadTimings reads one timing value (TI or TE in ms) per line. When
// skipHeader is set the first line is ignored. Non-numeric lines are
// skipped with a warning; an empty result is an error.
func ReadTimings(path string, skipHeader bool) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening timing file: %w", err)
	}
	defer file.Close()

	var vals []float64
	lineNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		if skipHeader && lineNo == 1 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			log.WithFields(log.Fields{
				"file": path,
				"line": lineNo,
			}).Warn("skipping non-numeric timing value")
			continue
		}
		vals = append(vals, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading timing file: %w", err)
	}

	if len(vals) == 0 {
		return nil, fmt.Errorf("no timing values found in %s", path)
	}
	return vals, nil
}
