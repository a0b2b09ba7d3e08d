package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mrsiproc/pkg/measurement"
	"mrsiproc/pkg/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var phantomPath, subjectPath, output string
	var metabolites []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Merge phantom and subject measurements into a concentration workbook",
		Long: `Report parses the phantom and subject measurement files, pairs their
rows by voxel coordinate and writes a workbook whose formulas derive
peak height, line width, equilibrium intensities and the metabolite
concentration from the phantom reference. Per-slice sheets carry the
same rows split by z.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			phantom, headers, err := measurement.ParseFile(phantomPath)
			if err != nil {
				return fmt.Errorf("phantom file: %w", err)
			}
			subject, _, err := measurement.ParseFile(subjectPath)
			if err != nil {
				return fmt.Errorf("subject file: %w", err)
			}

			if len(metabolites) > 0 {
				phantom = measurement.Filter(phantom, metabolites)
				subject = measurement.Filter(subject, metabolites)
			}
			measurement.SortByCoord(phantom)
			measurement.SortByCoord(subject)

			log.WithFields(log.Fields{
				"phantomRows": len(phantom),
				"subjectRows": len(subject),
			}).Info("measurements loaded")

			seq := report.SequenceParams{
				TRPhantom:            cfg.Sequence.TRPhantom,
				T1Phantom:            cfg.Sequence.T1Phantom,
				TEPhantom:            cfg.Sequence.TEPhantom,
				TRSubject:            cfg.Sequence.TRSubject,
				T1Subject:            cfg.Sequence.T1Subject,
				TESubject:            cfg.Sequence.TESubject,
				PhantomConcentration: cfg.Sequence.PhantomConcentration,
			}

			if err := report.WriteMergedWorkbook(output, phantom, subject, headers, seq); err != nil {
				return err
			}
			log.WithField("output", output).Info("workbook written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&phantomPath, "phantom", "p", "", "Phantom measurement file")
	cmd.Flags().StringVarP(&subjectPath, "subject", "s", "", "Subject measurement file")
	cmd.Flags().StringSliceVarP(&metabolites, "metabolites", "m", nil, "Metabolites to keep (default: all)")
	cmd.Flags().StringVarP(&output, "output", "o", "merged.xlsx", "Output workbook path")
	cmd.MarkFlagRequired("phantom")
	cmd.MarkFlagRequired("subject")

	return cmd
}
