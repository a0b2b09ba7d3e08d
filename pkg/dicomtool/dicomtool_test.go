package dicomtool

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
}

// TestRename verifies the matched-folder copy behavior and the skip
// policy for unmatched folders
func TestRename(t *testing.T) {
	root := t.TempDir()

	writeFiles(t, filepath.Join(root, "series1"), map[string]string{
		"IM0002.dcm": "payload-b",
		"IM0001.dcm": "payload-a",
		"names.txt":  "slice_z0\n\nslice_z1\n",
	})
	writeFiles(t, filepath.Join(root, "mismatch"), map[string]string{
		"IM0001.dcm": "payload",
		"names.txt":  "one\ntwo\nthree\n",
	})
	writeFiles(t, filepath.Join(root, "notxt"), map[string]string{
		"IM0001.dcm": "payload",
	})

	report, err := Rename(root)
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if len(report.Processed) != 1 {
		t.Fatalf("processed %d folders, want 1: %v", len(report.Processed), report.Processed)
	}

	// .dcm files are matched to names in sorted order
	got, err := os.ReadFile(filepath.Join(root, "series1", "new", "slice_z0.dcm"))
	if err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if string(got) != "payload-a" {
		t.Errorf("slice_z0.dcm = %q, want payload-a", got)
	}
	got, err = os.ReadFile(filepath.Join(root, "series1", "new", "slice_z1.dcm"))
	if err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if string(got) != "payload-b" {
		t.Errorf("slice_z1.dcm = %q, want payload-b", got)
	}

	// Originals stay in place
	if _, err := os.Stat(filepath.Join(root, "series1", "IM0001.dcm")); err != nil {
		t.Errorf("source file was removed: %v", err)
	}

	if len(report.Skipped) != 2 {
		t.Fatalf("skipped %d folders, want 2: %v", len(report.Skipped), report.Skipped)
	}
	skipped := map[string]bool{}
	for _, s := range report.Skipped {
		skipped[filepath.Base(s.Path)] = true
		if s.Reason == "" {
			t.Errorf("skip of %s carries no reason", s.Path)
		}
	}
	for _, want := range []string{"mismatch", "notxt"} {
		if !skipped[want] {
			t.Errorf("folder %s not reported as skipped", want)
		}
	}
}

// TestRenameIdempotent verifies that rerunning does not descend into the
// output folder
func TestRenameIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "series"), map[string]string{
		"a.dcm":     "payload",
		"names.txt": "renamed\n",
	})

	if _, err := Rename(root); err != nil {
		t.Fatalf("first Rename failed: %v", err)
	}
	report, err := Rename(root)
	if err != nil {
		t.Fatalf("second Rename failed: %v", err)
	}

	for _, s := range report.Skipped {
		if filepath.Base(s.Path) == renamedDirName {
			t.Errorf("output folder %s was visited: %v", s.Path, s)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "series", "new", "new")); err == nil {
		t.Error("nested output folder created on rerun")
	}
}

// TestRenameMissingRoot verifies the error for a nonexistent root
func TestRenameMissingRoot(t *testing.T) {
	if _, err := Rename(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root folder")
	}
}

// TestStringTag verifies the metadata lookup and its Unknown fallback
func TestStringTag(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		elem, err := dicom.NewElement(tag.PatientName, []string{"DOE^JANE"})
		if err != nil {
			t.Fatalf("NewElement failed: %v", err)
		}
		ds := &dicom.Dataset{Elements: []*dicom.Element{elem}}
		if got := stringTag(ds, tag.PatientName); got != "DOE^JANE" {
			t.Errorf("stringTag = %q, want DOE^JANE", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		ds := &dicom.Dataset{}
		if got := stringTag(ds, tag.Modality); got != "Unknown" {
			t.Errorf("stringTag = %q, want Unknown", got)
		}
	})

	t.Run("Blank", func(t *testing.T) {
		elem, err := dicom.NewElement(tag.StudyDate, []string{"  "})
		if err != nil {
			t.Fatalf("NewElement failed: %v", err)
		}
		ds := &dicom.Dataset{Elements: []*dicom.Element{elem}}
		if got := stringTag(ds, tag.StudyDate); got != "Unknown" {
			t.Errorf("stringTag = %q, want Unknown", got)
		}
	})
}

// TestInspectMissingFile verifies the error for an unreadable input
func TestInspectMissingFile(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "absent.dcm"), InspectOptions{})
	if err == nil {
		t.Fatal("expected error for missing DICOM file")
	}
}

// TestRescaleFrame verifies the normalize-scale-clamp pixel pipeline
func TestRescaleFrame(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 1))
	src.SetGray16(0, 0, color.Gray16{Y: 100})
	src.SetGray16(1, 0, color.Gray16{Y: 300})

	t.Run("FullRange", func(t *testing.T) {
		out := rescaleFrame(src, 1.0)
		if got := out.Gray16At(0, 0).Y; got != 0 {
			t.Errorf("min pixel = %d, want 0", got)
		}
		if got := out.Gray16At(1, 0).Y; got != 65535 {
			t.Errorf("max pixel = %d, want 65535", got)
		}
	})

	t.Run("BrightnessClamps", func(t *testing.T) {
		out := rescaleFrame(src, 4.0)
		if got := out.Gray16At(1, 0).Y; got != 65535 {
			t.Errorf("boosted max pixel = %d, want clamped 65535", got)
		}
	})

	t.Run("FlatFrame", func(t *testing.T) {
		flat := image.NewGray16(image.Rect(0, 0, 2, 2))
		out := rescaleFrame(flat, 1.0)
		if got := out.Gray16At(0, 0).Y; got != 0 {
			t.Errorf("flat frame pixel = %d, want 0", got)
		}
	})
}
