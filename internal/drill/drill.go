// internal/drill/drill.go
package drill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrSteadyStateInvalid aborts an experiment whose preconditions do not hold.
var ErrSteadyStateInvalid = errors.New("steady state invalid")

// Experiment is one drill run against a live store.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Observe     []Metric // sampled only after the method ran
	Rollback    []Action
	Validation  []Assertion
}

// Metric is a measurable property of the store.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Holds reports whether value satisfies the threshold.
func (t Threshold) Holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// Action drives load against the store or undoes it.
type Action struct {
	Name    string
	Execute func(context.Context) error
}

// Assertion checks the last observation of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	Experiment       string                 `json:"experiment"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []Violation            `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	Errors           []ErrorEvent           `json:"errors"`
	Failed           []string               `json:"failed_assertions,omitempty"`
}

type Violation struct {
	Metric    string    `json:"metric"`
	Expected  float64   `json:"expected"`
	Actual    float64   `json:"actual"`
	Timestamp time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Source    string    `json:"source"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer      trace.Tracer
	log         *zap.Logger
	experiments []Experiment
	results     []Result
	mu          sync.Mutex
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("videostore/drill"),
		log:    log,
	}
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run validates the steady state, executes the method, samples every metric
// once, rolls back and evaluates the assertions.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "drill.run",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		Experiment:   exp.Name,
		StartTime:    time.Now(),
		Observations: make(map[string][]DataPoint),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.sample(ctx, exp.SteadyState, result); len(violations) > 0 {
		result.Violations = violations
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		span.SetStatus(codes.Error, ErrSteadyStateInvalid.Error())
		return result, fmt.Errorf("%s: %w", exp.Name, ErrSteadyStateInvalid)
	}
	result.SteadyStateValid = true

	span.AddEvent("executing_method")
	e.execute(ctx, exp.Method, result, span)

	span.AddEvent("observing")
	result.Violations = append(result.Violations, e.sample(ctx, exp.SteadyState, result)...)
	result.Violations = append(result.Violations, e.sample(ctx, exp.Observe, result)...)

	span.AddEvent("rolling_back")
	e.execute(ctx, exp.Rollback, result, span)

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = e.validate(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// RunAll runs every registered experiment in order and reports whether all
// hypotheses held.
func (e *Engine) RunAll(ctx context.Context) bool {
	held := true
	for i, exp := range e.Experiments() {
		log := e.log.With(zap.String("experiment", exp.Name))
		log.Info("starting experiment",
			zap.Int("index", i+1),
			zap.String("hypothesis", exp.Hypothesis),
		)

		result, err := e.Run(ctx, exp)
		if err != nil {
			log.Error("experiment aborted", zap.Error(err), zap.Any("violations", result.Violations))
			held = false
			continue
		}
		if !result.HypothesisHeld {
			held = false
			log.Error("hypothesis violated",
				zap.Strings("failed", result.Failed),
				zap.Any("violations", result.Violations),
				zap.Any("errors", result.Errors),
			)
			continue
		}
		log.Info("hypothesis held", zap.Duration("duration", result.Duration))
	}
	return held
}

func (e *Engine) execute(ctx context.Context, actions []Action, result *Result, span trace.Span) {
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			result.Errors = append(result.Errors, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Source:    action.Name,
			})
			span.RecordError(err)
		}
	}
}

func (e *Engine) sample(ctx context.Context, metrics []Metric, result *Result) []Violation {
	var violations []Violation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			result.Errors = append(result.Errors, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Source:    metric.Name,
			})
			violations = append(violations, Violation{
				Metric:    metric.Name,
				Expected:  metric.Threshold.Value,
				Actual:    -1,
				Timestamp: time.Now(),
			})
			continue
		}

		result.Observations[metric.Name] = append(result.Observations[metric.Name],
			DataPoint{Timestamp: time.Now(), Value: value})

		if !metric.Threshold.Holds(value) {
			violations = append(violations, Violation{
				Metric:    metric.Name,
				Expected:  metric.Threshold.Value,
				Actual:    value,
				Timestamp: time.Now(),
			})
		}
	}
	return violations
}

func (e *Engine) validate(assertions []Assertion, result *Result) bool {
	held := len(result.Violations) == 0
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 || !assertion.Condition(observations[len(observations)-1].Value) {
			result.Failed = append(result.Failed, assertion.Message)
			held = false
		}
	}
	return held
}
