package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mrsiproc/pkg/dicomtool"
)

func newDcmRenameCommand() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "dcmrename",
		Short: "Batch-rename exported DICOM series from per-folder name lists",
		Long: `Dcmrename walks the subfolders of the root. In every folder holding
.dcm files and exactly one .txt name list with a matching line count,
the files are copied into a 'new' subfolder under their listed names.
Folders that do not match are skipped and reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := dicomtool.Rename(root)
			if err != nil {
				return err
			}
			for _, s := range report.Skipped {
				log.WithFields(log.Fields{
					"folder": s.Path,
					"reason": s.Reason,
				}).Warn("folder skipped")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", ".", "Root folder holding the series subfolders")

	return cmd
}

func newDcmInspectCommand(ctx *commandContext) *cobra.Command {
	var input, outDir string
	var brightness float64

	cmd := &cobra.Command{
		Use:   "dcminspect",
		Short: "Print DICOM metadata and optionally export frames as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("brightness") {
				brightness = cfg.Output.Brightness
			}

			_, err = dicomtool.Inspect(input, dicomtool.InspectOptions{
				OutDir:     outDir,
				Brightness: brightness,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "DICOM file to inspect")
	cmd.Flags().StringVarP(&outDir, "out-dir", "d", "", "Folder for exported frames (omit to skip export)")
	cmd.Flags().Float64VarP(&brightness, "brightness", "b", 1.0, "Brightness factor for exported frames")
	cmd.MarkFlagRequired("input")

	return cmd
}
