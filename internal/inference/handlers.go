package inference

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/pagination"
	"github.com/HarshSankhe/behavior-guard-insight/internal/synth"
)

// Handler provides the HTTP surface of the inference pipeline.
type Handler struct {
	engine *Engine
	store  Store
}

// NewHandler creates an inference handler.
func NewHandler(engine *Engine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}

// RegisterRoutes sets up inference routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/infer", h.Infer)
	r.POST("/test-inference", h.TestInference)
	r.GET("/assessments/:userId", h.ListAssessments)
	r.GET("/high-risk", h.RecentHighRisk)
}

// InferRequest is the scoring request body.
type InferRequest struct {
	UserID                 string           `json:"userId" binding:"required"`
	SessionID              string           `json:"sessionId" binding:"required"`
	Events                 []behavior.Event `json:"events" binding:"required"`
	SessionDurationMinutes float64          `json:"sessionDurationMinutes"`
}

// Infer handles POST /infer. Scoring problems never produce a 500; the
// engine falls back to a neutral assessment instead.
func (h *Handler) Infer(c *gin.Context) {
	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId, sessionId, and events are required",
		})
		return
	}
	if len(req.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_events",
			"message": "events list cannot be empty",
		})
		return
	}

	a := h.engine.InferWithDuration(c.Request.Context(), req.UserID, req.SessionID, req.Events, req.SessionDurationMinutes)
	c.JSON(http.StatusOK, a)
}

// TestInference handles POST /test-inference: scores a synthesized
// session. Development helper; keeps working without any real agent.
func (h *Handler) TestInference(c *gin.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	events := synth.Session(synth.Lookup(c.DefaultQuery("profile", synth.ProfileNormal)), rng)

	a := h.engine.Infer(c.Request.Context(), "test_user", "test_session", events)
	c.JSON(http.StatusOK, a)
}

// ListAssessments handles GET /assessments/:userId with cursor pagination.
func (h *Handler) ListAssessments(c *gin.Context) {
	userID := c.Param("userId")
	limit := parseLimit(c, 50, 100)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Malformed pagination cursor",
		})
		return
	}

	// Fetch one extra to know whether another page exists.
	items, err := h.store.ListByUser(c.Request.Context(), userID, limit+1, cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to list assessments",
		})
		return
	}

	items, next, hasMore := pagination.ComputePage(items, limit, func(a *Assessment) (time.Time, string) {
		return a.Timestamp, a.ID
	})

	total, err := h.store.CountByUser(c.Request.Context(), userID)
	if err != nil {
		total = len(items)
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": items,
		"totalCount":  total,
		"nextCursor":  next,
		"hasMore":     hasMore,
	})
}

// RecentHighRisk handles GET /high-risk: latest assessments at or above
// the high-risk score, for ops review.
func (h *Handler) RecentHighRisk(c *gin.Context) {
	limit := parseLimit(c, 20, 100)

	items, err := h.store.RecentHighRisk(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to list high-risk assessments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": items,
		"count":       len(items),
		"threshold":   HighRiskScore,
	})
}

func parseLimit(c *gin.Context, def, max int) int {
	limit := def
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= max {
			limit = parsed
		}
	}
	return limit
}
