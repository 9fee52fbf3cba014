package indicators

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// TracerName identifies the runner's OpenTelemetry tracer
const TracerName = "cdrflow.indicators"

// computeFunc produces one indicator table for a period filter and frequency
type computeFunc func(ctx context.Context, filter Period, frequency Frequency) (*Table, error)

// indicatorSpec couples an indicator name with its computation. The registry
// below declares which frequencies each indicator supports; an indicator
// registered only at daily frequency is never invoked with another one.
type indicatorSpec struct {
	name    string
	compute computeFunc
}

// IndicatorStatus reports the outcome of one indicator run
type IndicatorStatus struct {
	Name     string
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Runner orchestrates indicator computation and persistence for a frequency.
// Outputs are persisted under "{indicator}_per_{frequency}"; outputs that
// already exist are skipped without recomputation. A failing indicator is
// reported and does not abort the remaining ones.
type Runner struct {
	agg            *Aggregator
	store          Store
	logger         *slog.Logger
	tracer         trace.Tracer
	maxConcurrency int

	mu         sync.Mutex
	tableNames []string
}

// NewRunner creates a runner over the aggregator and persistence store
func NewRunner(agg *Aggregator, store Store, maxConcurrency int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Runner{
		agg:            agg,
		store:          store,
		logger:         logger,
		tracer:         otel.Tracer(TracerName),
		maxConcurrency: maxConcurrency,
	}
}

// TableNames returns the logical names produced or skipped so far
func (r *Runner) TableNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.tableNames))
	copy(names, r.tableNames)
	return names
}

// registry declares the indicator set per frequency. Monthly frequency is
// known but currently carries no indicators.
func (r *Runner) registry() map[Frequency][]indicatorSpec {
	transactions := indicatorSpec{name: "transactions", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return regionBucketCountTable(r.agg.Transactions(f, freq), freq), nil
	}}
	uniqueSubscribers := indicatorSpec{name: "unique_subscribers", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return regionBucketCountTable(r.agg.UniqueSubscribers(f, freq), freq), nil
	}}
	percentActive := indicatorSpec{name: "percent_of_all_subscribers_active", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return activeShareTable(r.agg.PercentActiveSubscribers(f, freq), freq), nil
	}}
	connectionMatrix := indicatorSpec{name: "origin_destination_connection_matrix", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		rows, err := r.agg.ConnectionMatrix(f, freq)
		if err != nil {
			return nil, err
		}
		return connectionTable(rows), nil
	}}
	meanDistance := indicatorSpec{name: "mean_distance", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return distanceTable(r.agg.MeanDistance(f, freq), freq), nil
	}}
	medianDistance := indicatorSpec{name: "median_distance", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return medianDistanceTable(r.agg.MedianDistance(f, freq), freq), nil
	}}
	longestOnly := indicatorSpec{name: "origin_destination_matrix_time_longest_only", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return flowDurationTable(r.agg.LongestStayMatrix(f, freq), freq), nil
	}}
	matrixTime := indicatorSpec{name: "origin_destination_matrix_time", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return flowDurationBothTable(r.agg.TransitionDurationMatrix(f, freq), freq), nil
	}}
	matrixCounts := indicatorSpec{name: "origin_destination_matrix", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return transitionTable(r.agg.TransitionCountMatrix(f, freq), freq), nil
	}}
	matrixUnique := indicatorSpec{name: "origin_destination_unique_users_matrix", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return transitionTable(r.agg.TransitionUniqueSubscribersMatrix(f, freq), freq), nil
	}}
	differentAreas := indicatorSpec{name: "different_areas_visited", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return regionAverageTable(r.agg.DistinctRegionsVisited(f, freq), freq), nil
	}}
	onlyOneRegion := indicatorSpec{name: "only_in_one_region", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return homeRegionCountTable(r.agg.OnlyInOneRegion(f, freq), freq), nil
	}}
	newSims := indicatorSpec{name: "new_sims", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		rows, err := r.agg.NewSubscribers(f, freq)
		if err != nil {
			return nil, err
		}
		return newSubscriberTable(rows), nil
	}}
	homeLocations := indicatorSpec{name: "unique_subscriber_home_locations", compute: func(_ context.Context, f Period, freq Frequency) (*Table, error) {
		return homeLocationCountTable(r.agg.UniqueSubscriberHomeLocations(f, freq), freq), nil
	}}

	return map[Frequency][]indicatorSpec{
		FrequencyHour: {transactions, uniqueSubscribers},
		FrequencyDay: {
			transactions, uniqueSubscribers, percentActive,
			connectionMatrix, meanDistance, longestOnly, matrixTime,
			medianDistance, differentAreas, onlyOneRegion, newSims,
			matrixCounts, matrixUnique,
		},
		FrequencyWeek:  {homeLocations, meanDistance},
		FrequencyMonth: {},
	}
}

// RunFrequency runs every indicator registered for the frequency. Requesting
// a frequency with no registration is reported and ignored, not fatal.
func (r *Runner) RunFrequency(ctx context.Context, filter Period, frequency Frequency) []IndicatorStatus {
	specs, ok := r.registry()[frequency]
	if !ok {
		r.logger.WarnContext(ctx, "unknown frequency requested, nothing to run",
			"frequency", frequency.String(),
		)
		return nil
	}

	runID := uuid.NewString()
	r.logger.InfoContext(ctx, "running indicators",
		"run_id", runID,
		"frequency", frequency.String(),
		"indicators", len(specs),
	)

	statuses := make([]IndicatorStatus, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for i, spec := range specs {
		g.Go(func() error {
			statuses[i] = r.runOne(gctx, runID, spec, filter, frequency)
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

// runOne computes and persists a single indicator, recording its outcome.
// Indicator failures are isolated here: a panic or error never propagates to
// sibling indicators.
func (r *Runner) runOne(ctx context.Context, runID string, spec indicatorSpec, filter Period, frequency Frequency) (status IndicatorStatus) {
	name := spec.name
	if frequency != frequencyWhole {
		name = fmt.Sprintf("%s_per_%s", spec.name, frequency)
	}
	status.Name = name
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			status.Err = fmt.Errorf("indicator %s panicked: %v", name, rec)
		}
		status.Duration = time.Since(start)
		r.report(ctx, runID, status)
	}()

	ctx, span := r.tracer.Start(ctx, "indicator.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("indicator.name", name),
			attribute.String("indicator.frequency", frequency.String()),
			attribute.String("run.id", runID),
		),
	)
	defer span.End()

	if r.store.Exists(name) {
		status.Skipped = true
		span.SetAttributes(attribute.Bool("indicator.skipped", true))
		r.recordTable(name)
		return status
	}

	table, err := spec.compute(ctx, filter, frequency)
	if err != nil {
		status.Err = fmt.Errorf("compute %s: %w", name, err)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return status
	}

	existed, err := r.store.Persist(table, name)
	if err != nil {
		status.Err = fmt.Errorf("persist %s: %w", name, err)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return status
	}
	status.Skipped = existed
	r.recordTable(name)
	return status
}

func (r *Runner) recordTable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tableNames = append(r.tableNames, name)
}

func (r *Runner) report(ctx context.Context, runID string, status IndicatorStatus) {
	switch {
	case status.Err != nil:
		r.logger.ErrorContext(ctx, "indicator failed",
			"run_id", runID,
			"name", status.Name,
			"duration", status.Duration,
			"error", status.Err,
		)
	case status.Skipped:
		r.logger.InfoContext(ctx, "skipped: output already exists",
			"run_id", runID,
			"name", status.Name,
		)
	default:
		r.logger.InfoContext(ctx, "indicator saved",
			"run_id", runID,
			"name", status.Name,
			"duration", status.Duration,
		)
	}
}

// RunAllFrequencies runs the daily and hourly indicator sets over the main
// period and the weekly and monthly sets over the whole-weeks period.
func (r *Runner) RunAllFrequencies(ctx context.Context, period, weeksPeriod Period) []IndicatorStatus {
	var statuses []IndicatorStatus
	statuses = append(statuses, r.RunFrequency(ctx, period, FrequencyDay)...)
	statuses = append(statuses, r.RunFrequency(ctx, period, FrequencyHour)...)
	statuses = append(statuses, r.RunFrequency(ctx, weeksPeriod, FrequencyWeek)...)
	statuses = append(statuses, r.RunFrequency(ctx, weeksPeriod, FrequencyMonth)...)
	return statuses
}

// RunIncidence runs both imported-incidence estimators over the incubation
// window, with the same skip-if-exists and failure isolation semantics.
func (r *Runner) RunIncidence(ctx context.Context, window Period) []IndicatorStatus {
	runID := uuid.NewString()
	specs := []struct {
		name    string
		compute func() *Table
	}{
		{name: "accumulated_incidence", compute: func() *Table {
			return regionRiskTable(r.agg.AccumulatedIncidence(window))
		}},
		{name: "accumulated_incidence_imported_only", compute: func() *Table {
			return regionRiskTable(r.agg.AccumulatedIncidenceImportedOnly(window))
		}},
	}

	statuses := make([]IndicatorStatus, 0, len(specs))
	for _, spec := range specs {
		status := r.runOne(ctx, runID, indicatorSpec{
			name: spec.name,
			compute: func(context.Context, Period, Frequency) (*Table, error) {
				return spec.compute(), nil
			},
		}, window, frequencyWhole)
		statuses = append(statuses, status)
	}
	return statuses
}
