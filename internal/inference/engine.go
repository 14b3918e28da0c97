package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/circuitbreaker"
	"github.com/HarshSankhe/behavior-guard-insight/internal/idgen"
	"github.com/HarshSankhe/behavior-guard-insight/internal/metrics"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
	"github.com/HarshSankhe/behavior-guard-insight/internal/scoring"
	"github.com/HarshSankhe/behavior-guard-insight/internal/traces"
)

const (
	storeBreakerKey  = "assessment_store"
	recordTimeout    = 5 * time.Second
	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second
)

// Engine runs the inference pipeline. Construct one with NewEngine and
// share it across request goroutines; all state it touches is either
// immutable or internally synchronized.
type Engine struct {
	cache   *model.Cache
	store   Store
	emitter EventEmitter
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewEngine creates an inference engine over the given model cache.
// store and emitter are optional; nil disables persistence / streaming.
func NewEngine(cache *model.Cache, store Store, logger *slog.Logger) *Engine {
	return &Engine{
		cache:   cache,
		store:   store,
		breaker: circuitbreaker.New(breakerThreshold, breakerOpenFor),
		logger:  logger,
	}
}

// WithEmitter attaches a live-event emitter.
func (e *Engine) WithEmitter(em EventEmitter) *Engine {
	e.emitter = em
	return e
}

// Infer scores a session's event batch, deriving session duration from
// event timestamps.
func (e *Engine) Infer(ctx context.Context, userID, sessionID string, events []behavior.Event) *Assessment {
	return e.infer(ctx, userID, sessionID, events, 0)
}

// InferWithDuration scores a session's event batch using an explicitly
// reported session duration in minutes.
func (e *Engine) InferWithDuration(ctx context.Context, userID, sessionID string, events []behavior.Event, minutes float64) *Assessment {
	return e.infer(ctx, userID, sessionID, events, minutes)
}

func (e *Engine) infer(ctx context.Context, userID, sessionID string, events []behavior.Event, minutes float64) (out *Assessment) {
	_, span := traces.StartSpan(ctx, "inference.Infer",
		traces.UserID(userID), traces.SessionID(sessionID))
	defer span.End()

	start := time.Now()

	// The pipeline must never take the service down with it. A panic in
	// extraction or a defective model becomes a fallback result.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("inference panicked",
				"user_id", userID, "session_id", sessionID, "panic", r)
			out = e.finish(e.fallback(userID, sessionID, fmt.Sprintf("Inference error: %v", r)), start)
		}
	}()

	// A reported duration is taken as given; otherwise it is derived from
	// the event timestamp span so rate features stay correct.
	var features behavior.Vector
	if minutes > 0 {
		features = behavior.ExtractWithDuration(events, minutes)
	} else {
		features = behavior.Extract(events)
	}
	if !behavior.Validate(features) {
		e.logger.Warn("invalid features extracted", "user_id", userID, "session_id", sessionID)
		return e.finish(e.fallback(userID, sessionID, "Invalid features"), start)
	}

	art, usedGlobal := e.cache.Get(userID)
	if art == nil {
		e.logger.Warn("no model available", "user_id", userID)
		return e.finish(e.fallback(userID, sessionID, "No model available"), start)
	}

	res := scoring.Score(art, features, len(events))

	modelUsed := art.ID
	source := "user"
	if usedGlobal {
		source = "global"
	}
	span.SetAttributes(traces.ModelID(modelUsed), traces.RiskScore(res.RiskScore))

	a := &Assessment{
		ID:        idgen.WithPrefix("asm_"),
		UserID:    userID,
		SessionID: sessionID,
		RiskScore: res.RiskScore,
		Factors:   res.Factors,
		Timestamp: time.Now().UTC(),
		Details: Details{
			ModelUsed:           modelUsed,
			ReconstructionError: res.ReconstructionError,
			Confidence:          res.Confidence,
			EventCount:          len(events),
			Anomalies:           res.Anomalies,
			FeatureCount:        behavior.FeatureCount,
		},
	}

	metrics.InferencesTotal.WithLabelValues(source).Inc()
	e.logger.Info("inference completed",
		"user_id", userID,
		"session_id", sessionID,
		"risk_score", a.RiskScore,
		"model_used", modelUsed,
		"reconstruction_error", res.ReconstructionError,
		"events", len(events))

	return e.finish(a, start)
}

// finish applies the shared post-scoring fan-out: metrics, persistence,
// live events.
func (e *Engine) finish(a *Assessment, start time.Time) *Assessment {
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	metrics.RiskScores.Observe(float64(a.RiskScore))
	if a.IsFallback() {
		metrics.InferencesTotal.WithLabelValues("fallback").Inc()
	}

	e.record(a)

	if e.emitter != nil {
		e.emitter.AssessmentCompleted(a)
	}
	return a
}

// record persists the assessment asynchronously. The audit trail is
// best-effort: a down database must not block or pile up goroutines, so
// writes go through a circuit breaker.
func (e *Engine) record(a *Assessment) {
	if e.store == nil {
		return
	}
	if !e.breaker.Allow(storeBreakerKey) {
		metrics.AssessmentWritesTotal.WithLabelValues("circuit_open").Inc()
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := e.store.Record(ctx, a); err != nil {
			e.breaker.RecordFailure(storeBreakerKey)
			metrics.AssessmentWritesTotal.WithLabelValues("error").Inc()
			e.logger.Error("failed to record assessment", "assessment_id", a.ID, "error", err)
			return
		}
		e.breaker.RecordSuccess(storeBreakerKey)
		metrics.AssessmentWritesTotal.WithLabelValues("success").Inc()
	}()
}

// fallback builds the neutral assessment returned when scoring cannot run.
func (e *Engine) fallback(userID, sessionID, reason string) *Assessment {
	return &Assessment{
		ID:        idgen.WithPrefix("asm_"),
		UserID:    userID,
		SessionID: sessionID,
		RiskScore: 50,
		Factors:   scoring.UnknownFactors(),
		Timestamp: time.Now().UTC(),
		Details: Details{
			ModelUsed:    ModelFallback,
			Confidence:   0.1,
			Anomalies:    []string{"Fallback mode: " + reason},
			FeatureCount: behavior.FeatureCount,
		},
	}
}
