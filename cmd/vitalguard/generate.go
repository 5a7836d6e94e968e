package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/io/csv"
	"github.com/hed1ad/vitalguard/pkg/simulator"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		output        string
		records       int
		contamination float64
		seed          int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a simulated, labeled training dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("records") {
				records = a.cfg.Training.Records
			}
			if !flags.Changed("contamination") {
				contamination = a.cfg.Training.Contamination
			}
			if !flags.Changed("seed") {
				seed = a.cfg.Training.Seed
			}

			data, err := simulator.New(seed).TrainingSet(records, contamination)
			if err != nil {
				return err
			}

			// Strip Close so stdout is left open.
			var w io.Writer = struct{ io.Writer }{cmd.OutOrStdout()}
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				w = f
			}

			cw := csv.NewWriter(w)
			if err := cw.WriteAll(data); err != nil {
				cw.Close()
				return err
			}
			if err := cw.Close(); err != nil {
				return err
			}

			if output != "" {
				a.logger.Info("dataset written",
					zap.String("path", output),
					zap.Int("records", len(data)),
					zap.Int("anomalies", simulator.AnomalyCount(records, contamination)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVarP(&records, "records", "n", 0, "number of records (default training.records)")
	cmd.Flags().Float64Var(&contamination, "contamination", 0, "fraction of anomalies (default training.contamination)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default training.seed)")
	return cmd
}
