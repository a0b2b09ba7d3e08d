package rotation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mrsiproc/internal/models"
)

var testGrid = models.GridDims{X: 32, Y: 32, Z: 8}

// TestRotateKnownCoordinates verifies the rotation formulas against
// hand-computed positions
func TestRotateKnownCoordinates(t *testing.T) {
	cases := []struct {
		name  string
		in    models.Coord
		angle int
		want  models.Coord
	}{
		{"origin 90", models.Coord{X: 0, Y: 0, Z: 0}, 90, models.Coord{X: 31, Y: 0, Z: 0}},
		{"origin 180", models.Coord{X: 0, Y: 0, Z: 3}, 180, models.Coord{X: 31, Y: 31, Z: 3}},
		{"origin 270", models.Coord{X: 0, Y: 0, Z: 7}, 270, models.Coord{X: 0, Y: 31, Z: 7}},
		{"interior 90", models.Coord{X: 5, Y: 12, Z: 2}, 90, models.Coord{X: 19, Y: 5, Z: 2}},
		{"interior 180", models.Coord{X: 5, Y: 12, Z: 2}, 180, models.Coord{X: 26, Y: 19, Z: 2}},
		{"interior 270", models.Coord{X: 5, Y: 12, Z: 2}, 270, models.Coord{X: 12, Y: 26, Z: 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Rotate(tc.in, tc.angle, testGrid)
			if err != nil {
				t.Fatalf("Rotate returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Rotate(%v, %d) = %v, want %v", tc.in, tc.angle, got, tc.want)
			}
		})
	}
}

// TestRotateUnsupportedAngle verifies that any angle outside {90,180,270}
// is rejected
func TestRotateUnsupportedAngle(t *testing.T) {
	for _, angle := range []int{0, 45, 91, 360, -90} {
		if _, err := Rotate(models.Coord{X: 1, Y: 1, Z: 1}, angle, testGrid); err == nil {
			t.Errorf("Rotate accepted unsupported angle %d", angle)
		}
	}
}

// TestRotateIsBijection verifies that each supported angle permutes the
// grid without collisions and stays in range
func TestRotateIsBijection(t *testing.T) {
	for _, angle := range SupportedAngles {
		seen := make(map[models.Coord]bool)
		for x := 0; x < testGrid.X; x++ {
			for y := 0; y < testGrid.Y; y++ {
				c := models.Coord{X: x, Y: y, Z: 0}
				r, err := Rotate(c, angle, testGrid)
				if err != nil {
					t.Fatalf("Rotate(%v, %d) failed: %v", c, angle, err)
				}
				if !testGrid.Contains(r) {
					t.Fatalf("Rotate(%v, %d) = %v leaves the grid", c, angle, r)
				}
				if seen[r] {
					t.Fatalf("Rotate(.., %d) maps two coordinates to %v", angle, r)
				}
				seen[r] = true
			}
		}
		if len(seen) != testGrid.X*testGrid.Y {
			t.Errorf("angle %d covered %d cells, want %d", angle, len(seen), testGrid.X*testGrid.Y)
		}
	}
}

// TestRotateFourTimesIsIdentity verifies that four 90-degree rotations
// return every coordinate to its original position
func TestRotateFourTimesIsIdentity(t *testing.T) {
	for x := 0; x < testGrid.X; x++ {
		for y := 0; y < testGrid.Y; y++ {
			orig := models.Coord{X: x, Y: y, Z: 4}
			c := orig
			for i := 0; i < 4; i++ {
				var err error
				c, err = Rotate(c, 90, testGrid)
				if err != nil {
					t.Fatalf("Rotate failed: %v", err)
				}
			}
			if c != orig {
				t.Fatalf("four 90-degree rotations moved %v to %v", orig, c)
			}
		}
	}
}

// TestRotateCycleConsistency verifies that 90 followed by 270 and 180
// applied twice are both the identity
func TestRotateCycleConsistency(t *testing.T) {
	orig := models.Coord{X: 3, Y: 17, Z: 1}

	r90, _ := Rotate(orig, 90, testGrid)
	back, _ := Rotate(r90, 270, testGrid)
	if back != orig {
		t.Errorf("90 then 270 moved %v to %v", orig, back)
	}

	r180, _ := Rotate(orig, 180, testGrid)
	again, _ := Rotate(r180, 180, testGrid)
	if again != orig {
		t.Errorf("180 twice moved %v to %v", orig, again)
	}
}

// TestRewriteFile verifies block rewriting, verbatim copying of unrelated
// lines and pass-through of malformed blocks
func TestRewriteFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")

	input := strings.Join([]string{
		"some preamble",
		"Coord\tMetabolite\tArea\tLDamping",
		"5_12_2\tMain\t10.5\t2.1",
		"###",
		"Coord\tMetabolite\tArea\tLDamping",
		"bad_coord\tMain\t3.3\t1.0",
		"###",
		"trailing line",
	}, "\n") + "\n"

	if err := os.WriteFile(inPath, []byte(input), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	stats, err := RewriteFile(inPath, outPath, 90, testGrid)
	if err != nil {
		t.Fatalf("RewriteFile failed: %v", err)
	}

	if stats.Rotated != 1 {
		t.Errorf("expected 1 rotated block, got %d", stats.Rotated)
	}
	if stats.PassedThrough != 1 {
		t.Errorf("expected 1 passed-through block, got %d", stats.PassedThrough)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	text := string(out)

	if !strings.Contains(text, "19_5_2\tMain\t10.5\t2.1") {
		t.Errorf("rotated coordinate missing from output:\n%s", text)
	}
	if !strings.Contains(text, "bad_coord\tMain\t3.3\t1.0") {
		t.Errorf("malformed block was not passed through unchanged:\n%s", text)
	}
	if !strings.Contains(text, "some preamble") || !strings.Contains(text, "trailing line") {
		t.Errorf("unrelated lines were not copied verbatim:\n%s", text)
	}

	// Source file must be untouched
	orig, err := os.ReadFile(inPath)
	if err != nil {
		t.Fatalf("failed to re-read input: %v", err)
	}
	if string(orig) != input {
		t.Error("input file was modified")
	}
}

// TestRewriteFileBadAngle verifies that a bad angle fails before any
// output file is created
func TestRewriteFileBadAngle(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")

	if err := os.WriteFile(inPath, []byte("Coord\n1_2_3\n###\n"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	if _, err := RewriteFile(inPath, outPath, 45, testGrid); err == nil {
		t.Fatal("expected error for unsupported angle")
	}

	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("output file was created despite fatal input error")
	}
}
