// Package pipeline scores readings, explains them and keeps their history.
//
// Each call runs GENERATE -> SCORE -> RECOMMEND -> PERSIST -> FETCH_HISTORY
// and returns the assembled State. Persistence and notification are best
// effort: their failures are logged and never discard the computed result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/notify"
	"github.com/hed1ad/vitalguard/pkg/recommend"
	"github.com/hed1ad/vitalguard/pkg/storage"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// DefaultHistoryLimit is the number of stored readings returned with each state.
const DefaultHistoryLimit = 20

// LabelLayout formats history timestamps as time of day.
const LabelLayout = "15:04:05"

// Sources recorded in metrics.
const (
	SourceSimulated = "simulated"
	SourceExternal  = "external"
)

// Generator produces live readings.
type Generator interface {
	LiveReading() vitals.Reading
}

// Classifier decides whether a feature vector is anomalous.
type Classifier interface {
	Classify(features []float64) (bool, error)
}

// Notifier receives an event for each detected anomaly.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// History holds chart series aligned by index, oldest first.
type History struct {
	Labels       []string `json:"labels"`
	HeartRates   []int    `json:"heart_rates"`
	BloodOxygens []int    `json:"blood_oxygens"`
}

// State is the response for one pipeline pass.
type State struct {
	HeartRate      int     `json:"heart_rate"`
	BloodOxygen    int     `json:"blood_oxygen"`
	IsAnomaly      bool    `json:"is_anomaly"`
	Status         string  `json:"status"`
	Recommendation string  `json:"recommendation"`
	History        History `json:"history"`
}

// Pipeline ties the simulator, model, rule engine and store together.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	gen          Generator
	model        Classifier
	store        storage.Store
	notifier     Notifier
	logger       *zap.Logger
	metrics      *Metrics
	historyLimit int
	location     *time.Location
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithNotifier publishes an event for every anomaly.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithHistoryLimit sets how many stored readings accompany each state.
func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) {
		p.historyLimit = n
	}
}

// WithLocation sets the time zone used for history labels. Defaults to local time.
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) {
		p.location = loc
	}
}

// New creates a Pipeline. The model must already be fitted or loaded.
func New(gen Generator, model Classifier, store storage.Store, opts ...Option) (*Pipeline, error) {
	if gen == nil {
		return nil, errors.New("pipeline requires a reading generator")
	}
	if model == nil {
		return nil, errors.New("pipeline requires a loaded model")
	}
	if store == nil {
		return nil, errors.New("pipeline requires a store")
	}

	p := &Pipeline{
		gen:          gen,
		model:        model,
		store:        store,
		logger:       zap.NewNop(),
		historyLimit: DefaultHistoryLimit,
		location:     time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.historyLimit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", p.historyLimit)
	}

	return p, nil
}

// Current generates a live reading and runs it through the pipeline.
func (p *Pipeline) Current(ctx context.Context) (State, error) {
	return p.run(ctx, p.gen.LiveReading(), SourceSimulated)
}

// Process runs an externally supplied reading through the pipeline.
// Invalid readings are rejected before they reach the model.
func (p *Pipeline) Process(ctx context.Context, r vitals.Reading) (State, error) {
	if err := r.Validate(); err != nil {
		return State{}, err
	}
	return p.run(ctx, r, SourceExternal)
}

// History returns up to the configured number of stored readings, oldest first.
func (p *Pipeline) History(ctx context.Context) History {
	recent, err := p.store.Recent(ctx, p.historyLimit)
	if err != nil {
		p.logger.Warn("fetch history failed, returning empty history", zap.Error(err))
		if p.metrics != nil {
			p.metrics.historyFailures.Inc()
		}
		recent = nil
	}
	return p.chart(storage.Reverse(recent))
}

func (p *Pipeline) run(ctx context.Context, r vitals.Reading, source string) (State, error) {
	start := time.Now()
	isAnomaly, err := p.model.Classify(r.Features())
	if err != nil {
		return State{}, fmt.Errorf("classify reading: %w", err)
	}
	if p.metrics != nil {
		p.metrics.classifySeconds.Observe(time.Since(start).Seconds())
	}

	result := recommend.Recommend(r, isAnomaly)
	if p.metrics != nil {
		p.metrics.readingsTotal.WithLabelValues(result.Status, source).Inc()
	}

	stored, err := p.store.Append(ctx, storage.Entry{
		HeartRate:      r.HeartRate,
		BloodOxygen:    r.BloodOxygen,
		Status:         result.Status,
		Recommendation: result.Recommendation,
	})
	if err != nil {
		p.logger.Error("persist reading failed",
			zap.Int("heart_rate", r.HeartRate),
			zap.Int("blood_oxygen", r.BloodOxygen),
			zap.Error(err),
		)
		if p.metrics != nil {
			p.metrics.persistFailures.Inc()
		}
	}

	if isAnomaly {
		p.logger.Info("anomaly detected",
			zap.Int("heart_rate", r.HeartRate),
			zap.Int("blood_oxygen", r.BloodOxygen),
			zap.String("recommendation", result.Recommendation),
		)
		p.publish(ctx, r, result, stored)
	}

	return State{
		HeartRate:      r.HeartRate,
		BloodOxygen:    r.BloodOxygen,
		IsAnomaly:      result.IsAnomaly,
		Status:         result.Status,
		Recommendation: result.Recommendation,
		History:        p.History(ctx),
	}, nil
}

func (p *Pipeline) publish(ctx context.Context, r vitals.Reading, result recommend.Result, stored storage.StoredReading) {
	if p.notifier == nil {
		return
	}
	ts := stored.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	err := p.notifier.Notify(ctx, notify.Event{
		ReadingID:      stored.ID,
		Timestamp:      ts,
		HeartRate:      r.HeartRate,
		BloodOxygen:    r.BloodOxygen,
		Status:         result.Status,
		Recommendation: result.Recommendation,
	})
	if err != nil {
		p.logger.Warn("publish anomaly event failed", zap.Error(err))
		if p.metrics != nil {
			p.metrics.notifyFailures.Inc()
		}
	}
}

func (p *Pipeline) chart(readings []storage.StoredReading) History {
	h := History{
		Labels:       make([]string, 0, len(readings)),
		HeartRates:   make([]int, 0, len(readings)),
		BloodOxygens: make([]int, 0, len(readings)),
	}
	for _, r := range readings {
		h.Labels = append(h.Labels, r.Timestamp.In(p.location).Format(LabelLayout))
		h.HeartRates = append(h.HeartRates, r.HeartRate)
		h.BloodOxygens = append(h.BloodOxygens, r.BloodOxygen)
	}
	return h
}
