package dicomtool

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// InspectOptions controls metadata printing and frame export.
type InspectOptions struct {
	// OutDir receives one PNG per frame; empty skips frame export
	OutDir string

	// Brightness scales the normalized pixel intensities before clamping
	Brightness float64
}

// FileInfo holds the metadata Inspect extracts from one file.
type FileInfo struct {
	PatientName string
	Modality    string
	StudyDate   string
	Frames      int
}

// Inspect parses a DICOM file, logs its key metadata and optionally
// exports every image frame as a normalized grayscale PNG.
func Inspect(path string, opts InspectOptions) (*FileInfo, error) {
	dataset, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error parsing DICOM file: %w", err)
	}

	info := &FileInfo{
		PatientName: stringTag(&dataset, tag.PatientName),
		Modality:    stringTag(&dataset, tag.Modality),
		StudyDate:   stringTag(&dataset, tag.StudyDate),
	}

	log.WithFields(log.Fields{
		"file":      filepath.Base(path),
		"patient":   info.PatientName,
		"modality":  info.Modality,
		"studyDate": info.StudyDate,
	}).Info("DICOM metadata")

	pixelElem, err := dataset.FindElementByTag(tag.PixelData)
	if err != nil {
		log.Info("file carries no pixel data")
		return info, nil
	}

	pixelInfo := dicom.MustGetPixelDataInfo(pixelElem.Value)
	info.Frames = len(pixelInfo.Frames)

	if opts.OutDir == "" {
		return info, nil
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output folder: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	brightness := opts.Brightness
	if brightness <= 0 {
		brightness = 1.0
	}

	for i, fr := range pixelInfo.Frames {
		img, err := fr.GetImage()
		if err != nil {
			return nil, fmt.Errorf("error decoding frame %d: %w", i, err)
		}

		out := filepath.Join(opts.OutDir, fmt.Sprintf("%s_frame_%03d.png", base, i))
		if err := writeFramePNG(out, img, brightness); err != nil {
			return nil, err
		}
		log.WithField("file", out).Debug("frame exported")
	}

	log.WithFields(log.Fields{
		"frames": info.Frames,
		"outDir": opts.OutDir,
	}).Info("frames exported")
	return info, nil
}

// stringTag returns the first string value of the tagged element, or
// "Unknown" when the element is missing or not a string.
func stringTag(ds *dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "Unknown"
	}
	vals, ok := elem.Value.GetValue().([]string)
	if !ok || len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return "Unknown"
	}
	return strings.TrimSpace(vals[0])
}

// writeFramePNG rescales the frame to the full grayscale range, applies
// the brightness factor and writes the result as a 16-bit PNG.
func writeFramePNG(path string, img image.Image, brightness float64) error {
	scaled := rescaleFrame(img, brightness)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating PNG file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, scaled); err != nil {
		return fmt.Errorf("error encoding PNG: %w", err)
	}
	return nil
}

// rescaleFrame maps the frame's observed intensity range onto [0, 1],
// multiplies by brightness and clamps. Raw scanner intensities would
// otherwise render near-black.
func rescaleFrame(img image.Image, brightness float64) *image.Gray16 {
	b := img.Bounds()

	minV, maxV := math.Inf(1), math.Inf(-1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}

	span := maxV - minV
	out := image.NewGray16(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			norm := 0.0
			if span > 0 {
				norm = (v - minV) / span
			}
			norm *= brightness
			if norm > 1 {
				norm = 1
			}
			out.SetGray16(x, y, color.Gray16{Y: uint16(norm * math.MaxUint16)})
		}
	}
	return out
}
