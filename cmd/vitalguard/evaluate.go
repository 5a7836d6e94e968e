package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	"github.com/hed1ad/vitalguard/pkg/evaluate"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var modelPath, dataset string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print a classification report for a saved model on a labeled CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataset == "" {
				return errors.New("--data is required")
			}
			if modelPath == "" {
				modelPath = a.cfg.Model.Path
			}

			forest, err := iforest.ReadFile(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			data, err := readDataset(dataset)
			if err != nil {
				return err
			}

			report, err := evaluate.Evaluate(forest, data)
			if err != nil {
				return err
			}
			_, err = report.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model path (default model.path)")
	cmd.Flags().StringVar(&dataset, "data", "", "labeled CSV holdout set")
	return cmd
}
