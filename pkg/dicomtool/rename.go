// Package dicomtool provides the DICOM housekeeping utilities of the
// analysis workflow: batch renaming of exported series according to a
// provided name list, and metadata/frame inspection.
package dicomtool

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// renamedDirName is the subfolder renamed copies are placed in. The
// source files are never modified or overwritten.
const renamedDirName = "new"

// SkippedFolder records a folder the renamer left untouched and why.
type SkippedFolder struct {
	Path   string
	Reason string
}

// RenameReport summarizes one renaming run.
type RenameReport struct {
	// Processed lists folders whose files were renamed and copied
	Processed []string

	// Skipped lists folders left untouched with a reason each
	Skipped []SkippedFolder
}

// Rename walks the subfolders of root. Every folder holding one or more
// .dcm files and exactly one .txt file whose non-empty line count equals
// the .dcm count gets its files copied into a "new" subfolder, renamed
// to the corresponding line of the .txt file (sorted .dcm order). Any
// other folder is skipped with a reason.
func Rename(root string) (*RenameReport, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("cannot access root folder: %w", err)
	}

	report := &RenameReport{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || d.Name() == renamedDirName {
			return nil
		}
		return renameFolder(path, report)
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}

	log.WithFields(log.Fields{
		"processed": len(report.Processed),
		"skipped":   len(report.Skipped),
	}).Info("renaming complete")
	return report, nil
}

func renameFolder(dir string, report *RenameReport) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var dcmFiles, txtFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".dcm":
			dcmFiles = append(dcmFiles, e.Name())
		case ".txt":
			txtFiles = append(txtFiles, e.Name())
		}
	}
	sort.Strings(dcmFiles)

	if len(dcmFiles) == 0 || len(txtFiles) != 1 {
		report.Skipped = append(report.Skipped, SkippedFolder{
			Path:   dir,
			Reason: "missing DCM or TXT / multiple TXT",
		})
		return nil
	}

	names, err := readNameList(filepath.Join(dir, txtFiles[0]))
	if err != nil {
		return err
	}

	if len(dcmFiles) != len(names) {
		report.Skipped = append(report.Skipped, SkippedFolder{
			Path:   dir,
			Reason: fmt.Sprintf("DCM/TXT count mismatch (%d files, %d names)", len(dcmFiles), len(names)),
		})
		return nil
	}

	outDir := filepath.Join(dir, renamedDirName)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("error creating output folder: %w", err)
	}

	for i, old := range dcmFiles {
		src := filepath.Join(dir, old)
		dst := filepath.Join(outDir, names[i]+".dcm")
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("error copying %s: %w", src, err)
		}
		log.WithFields(log.Fields{
			"from": old,
			"to":   names[i] + ".dcm",
		}).Debug("copied")
	}

	report.Processed = append(report.Processed, dir)
	return nil
}

// readNameList reads the new file names, one per line, skipping blanks.
func readNameList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading name list: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
