// Package training runs the offline workflow that produces a model artifact:
// simulate a labeled dataset, hold out a test split, fit and evaluate, then
// refit on everything.
package training

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	"github.com/hed1ad/vitalguard/pkg/evaluate"
	"github.com/hed1ad/vitalguard/pkg/simulator"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Options configures a training run.
type Options struct {
	Records       int     `mapstructure:"records" yaml:"records"`
	Contamination float64 `mapstructure:"contamination" yaml:"contamination"`
	TestFraction  float64 `mapstructure:"test_fraction" yaml:"test_fraction"`
	Seed          int64   `mapstructure:"seed" yaml:"seed"`
	Trees         int     `mapstructure:"trees" yaml:"trees"`
	SampleSize    int     `mapstructure:"sample_size" yaml:"sample_size"`
}

// DefaultOptions trains on 5000 simulated records with 10%
// anomalies, an 80/20 split and seed 42.
func DefaultOptions() Options {
	return Options{
		Records:       5000,
		Contamination: simulator.DefaultContamination,
		TestFraction:  0.2,
		Seed:          42,
		Trees:         100,
		SampleSize:    256,
	}
}

// Validate checks the options before any work is done.
func (o Options) Validate() error {
	if o.Records < 2 {
		return errors.New("training.records must be at least 2")
	}
	if o.Contamination <= 0 || o.Contamination > 0.5 {
		return errors.New("training.contamination must be in (0, 0.5]")
	}
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		return errors.New("training.test_fraction must be in (0, 1)")
	}
	if o.Trees <= 0 || o.SampleSize <= 0 {
		return errors.New("training.trees and training.sample_size must be positive")
	}
	return nil
}

// Result is the outcome of a training run.
type Result struct {
	// Model is fitted on the full dataset and ready to be saved.
	Model *iforest.Forest
	// Report evaluates a model fitted on the training split against the holdout.
	Report evaluate.Report
	// Dataset is the data the final model was fitted on.
	Dataset []vitals.LabeledReading
}

func (o Options) trainer() *iforest.Trainer {
	return iforest.New(
		iforest.WithTrees(o.Trees),
		iforest.WithSampleSize(o.SampleSize),
		iforest.WithContamination(o.Contamination),
		iforest.WithSeed(o.Seed),
	)
}

// Run simulates data and trains on it.
func Run(opts Options, logger *zap.Logger) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("simulating training data", zap.Int("records", opts.Records))
	data, err := simulator.New(opts.Seed).TrainingSet(opts.Records, opts.Contamination)
	if err != nil {
		return Result{}, fmt.Errorf("simulate training data: %w", err)
	}

	return Fit(data, opts, logger)
}

// Fit evaluates on a holdout split of data and then fits the final model on all of it.
func Fit(data []vitals.LabeledReading, opts Options, logger *zap.Logger) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	train, test, err := evaluate.TrainTestSplit(data, opts.TestFraction, opts.Seed)
	if err != nil {
		return Result{}, err
	}

	trainer := opts.trainer()
	logger.Info("fitting isolation forest",
		zap.Int("train", len(train)),
		zap.Int("test", len(test)),
		zap.Int("trees", opts.Trees),
	)
	candidate, err := trainer.Fit(vitals.Matrix(train))
	if err != nil {
		return Result{}, fmt.Errorf("fit on training split: %w", err)
	}

	report, err := evaluate.Evaluate(candidate, test)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate on holdout: %w", err)
	}
	logger.Info("holdout evaluation",
		zap.Float64("anomaly_precision", report.Classes[evaluate.Anomaly].Precision),
		zap.Float64("anomaly_recall", report.Classes[evaluate.Anomaly].Recall),
		zap.Float64("accuracy", report.Accuracy),
	)

	final, err := trainer.Fit(vitals.Matrix(data))
	if err != nil {
		return Result{}, fmt.Errorf("fit on full dataset: %w", err)
	}
	logger.Info("final model fitted",
		zap.Int("records", len(data)),
		zap.Float64("threshold", final.Threshold()),
	)

	return Result{Model: final, Report: report, Dataset: data}, nil
}
