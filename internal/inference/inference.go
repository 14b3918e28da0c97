// Package inference orchestrates the scoring pipeline: feature extraction,
// model lookup, risk scoring, and assessment fan-out (persistence plus live
// streaming). The pipeline never surfaces an error to the caller; anything
// that prevents a real score produces a neutral fallback assessment instead.
package inference

import (
	"context"
	"time"

	"github.com/HarshSankhe/behavior-guard-insight/internal/pagination"
	"github.com/HarshSankhe/behavior-guard-insight/internal/scoring"
)

// HighRiskScore marks assessments that trigger high-risk events.
const HighRiskScore = 80

// ModelFallback is the ModelUsed value of a fallback assessment.
const ModelFallback = "fallback"

// Details carries the diagnostic payload of an assessment.
type Details struct {
	ModelUsed           string   `json:"modelUsed"`
	ReconstructionError float64  `json:"reconstructionError"`
	Confidence          float64  `json:"confidence"`
	EventCount          int      `json:"eventCount"`
	Anomalies           []string `json:"anomalies"`
	FeatureCount        int      `json:"featureCount"`
}

// Assessment is the result of scoring one session's event batch.
type Assessment struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"userId"`
	SessionID string                    `json:"sessionId"`
	RiskScore int                       `json:"riskScore"`
	Factors   map[string]scoring.Factor `json:"factors"`
	Timestamp time.Time                 `json:"timestamp"`
	Details   Details                   `json:"details"`
}

// IsFallback reports whether the assessment came from the fallback path
// rather than a real model.
func (a *Assessment) IsFallback() bool {
	return a.Details.ModelUsed == ModelFallback
}

// Store persists assessments for audit and history queries.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListByUser(ctx context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*Assessment, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	RecentHighRisk(ctx context.Context, limit int) ([]*Assessment, error)
	Count(ctx context.Context) (int, error)
}

// EventEmitter receives completed assessments for live streaming. Engine
// calls it synchronously after scoring; implementations must not block.
type EventEmitter interface {
	AssessmentCompleted(a *Assessment)
}
