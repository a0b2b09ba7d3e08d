package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestRootHelp verifies that all subcommands are registered
func TestRootHelp(t *testing.T) {
	out, err := runCommand(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"rotate", "heatmap", "t1fit", "t2fit", "report", "dcmrename", "dcminspect", "config"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %s", sub)
		}
	}
}

// TestConfigShow verifies that the effective configuration is printed
func TestConfigShow(t *testing.T) {
	out, err := runCommand(t, "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	for _, key := range []string{"grid:", "heatmap:", "fit:", "sequence:"} {
		if !strings.Contains(out, key) {
			t.Errorf("config output missing %s section", key)
		}
	}
}

// TestConfigInit verifies the default file creation and reload
func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := runCommand(t, "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out, err := runCommand(t, "--config", path, "config")
	if err != nil {
		t.Fatalf("config show with file failed: %v", err)
	}
	if !strings.Contains(out, "x: 32") {
		t.Errorf("reloaded config missing default grid size: %q", out)
	}
}

// TestRotateCommand verifies the end-to-end file rewrite
func TestRotateCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meas.txt")
	output := filepath.Join(dir, "rotated.txt")

	content := "title line\nCoord\tMetabolite\tArea\n5_12_2\tMain\t1.0\n\n"
	if err := os.WriteFile(input, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := runCommand(t, "rotate", "--input", input, "--output", output, "--angle", "90"); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if !strings.Contains(string(got), "19_5_2") {
		t.Errorf("rotated coordinate missing from output: %q", got)
	}
}

// TestRotateCommandBadAngle verifies flag validation
func TestRotateCommandBadAngle(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meas.txt")
	if err := os.WriteFile(input, []byte("Coord\tMetabolite\n1_1_0\tMain\n\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := runCommand(t, "rotate", "--input", input, "--angle", "45"); err == nil {
		t.Fatal("expected error for unsupported angle")
	}
}

func TestDerivedOutputPath(t *testing.T) {
	cases := []struct {
		in, suffix, want string
	}{
		{"data/meas.txt", "_rot90", "data/meas_rot90.txt"},
		{"meas", "_rot90", "meas_rot90"},
	}
	for _, c := range cases {
		if got := derivedOutputPath(c.in, c.suffix); got != c.want {
			t.Errorf("derivedOutputPath(%q, %q) = %q, want %q", c.in, c.suffix, got, c.want)
		}
	}
}
