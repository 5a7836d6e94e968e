package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/detectors"
	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/io/csv"
	"github.com/hed1ad/vitalguard/pkg/recommend"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

func newScoreCmd(a *app) *cobra.Command {
	var modelPath string
	var header bool

	cmd := &cobra.Command{
		Use:   "score FILE",
		Short: "Score every reading in a CSV file and print recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				modelPath = a.cfg.Model.Path
			}
			forest, err := iforest.ReadFile(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			r, err := csv.NewReader(args[0], csv.WithHeader(header))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer r.Close()

			n, anomalies, err := scoreStream(cmd.Context(), forest, r, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a.logger.Info("scoring complete",
				zap.Int("readings", n),
				zap.Int("anomalies", anomalies),
				zap.Int("skipped", r.Skipped()),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model path (default model.path)")
	cmd.Flags().BoolVar(&header, "header", true, "the file starts with a header row")
	return cmd
}

// scoreStream pipes readings through the forest and writes one line per reading.
func scoreStream(ctx context.Context, forest *iforest.Forest, src vio.Reader, out io.Writer) (n, anomalies int, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, err := src.Stream(ctx)
	if err != nil {
		return 0, 0, err
	}

	input := make(chan []float64)
	scores := make(chan detectors.Score)
	go func() {
		defer close(input)
		for row := range rows {
			select {
			case input <- row.Features():
			case <-ctx.Done():
				return
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		errc <- forest.PredictStream(ctx, input, scores)
		close(scores)
	}()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HEART_RATE\tBLOOD_OXYGEN\tSCORE\tSTATUS\tRECOMMENDATION")
	for s := range scores {
		if s.Err != nil {
			cancel()
			return n, anomalies, s.Err
		}
		reading, ferr := vitals.FromFeatures(s.Features)
		if ferr != nil {
			cancel()
			return n, anomalies, ferr
		}
		result := recommend.Recommend(reading, s.IsAnomaly)
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%s\t%s\n",
			reading.HeartRate, reading.BloodOxygen, s.Value, result.Status, result.Recommendation)
		n++
		if s.IsAnomaly {
			anomalies++
		}
	}
	if err := <-errc; err != nil {
		return n, anomalies, err
	}
	return n, anomalies, tw.Flush()
}
