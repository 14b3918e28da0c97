package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ServiceClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ServiceClient) *Handlers {
	return &Handlers{client: client}
}

// HandleScoreSession synthesizes and scores a behavioral session.
func (h *Handlers) HandleScoreSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile := req.GetString("profile", "")

	raw, err := h.client.ScoreSession(ctx, profile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to score session: %v", err)), nil
	}

	text, err := formatAssessment(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListModels lists cached model IDs.
func (h *Handlers) HandleListModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListModels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list models: %v", err)), nil
	}

	text, err := formatModelList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse models: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleModelInfo returns metadata for one model.
func (h *Handlers) HandleModelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modelID := req.GetString("model_id", "")
	if modelID == "" {
		return mcp.NewToolResultError("model_id is required"), nil
	}

	raw, err := h.client.ModelInfo(ctx, modelID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get model info: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleRefreshModel forces a model reload from disk.
func (h *Handlers) HandleRefreshModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modelID := req.GetString("model_id", "")
	if modelID == "" {
		return mcp.NewToolResultError("model_id is required"), nil
	}

	raw, err := h.client.RefreshModel(ctx, modelID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to refresh model: %v", err)), nil
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err == nil {
		if ok, _ := resp["reloaded"].(bool); ok {
			return mcp.NewToolResultText(fmt.Sprintf("Model %q reloaded from disk.", modelID)), nil
		}
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleRecentAssessments returns a user's assessment history.
func (h *Handlers) HandleRecentAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := req.GetInt("limit", 20)
	cursor := req.GetString("cursor", "")

	raw, err := h.client.UserAssessments(ctx, userID, limit, cursor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleHighRisk returns recent high-risk assessments across users.
func (h *Handlers) HandleHighRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.RecentHighRisk(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list high-risk assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleServiceHealth returns health plus service statistics.
func (h *Handlers) HandleServiceHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	healthRaw, err := h.client.ServiceHealth(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get health: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Health:\n")
	sb.WriteString(formatJSON(healthRaw))

	// Stats are best-effort; health alone is still useful.
	if statsRaw, err := h.client.ServiceStats(ctx); err == nil {
		sb.WriteString("\n\nStats:\n")
		sb.WriteString(formatJSON(statsRaw))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

func formatAssessment(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Risk Assessment:\n")
	if v := getString(m, "userId"); v != "" {
		sb.WriteString(fmt.Sprintf("  User: %s\n", v))
	}
	if v := getString(m, "sessionId"); v != "" {
		sb.WriteString(fmt.Sprintf("  Session: %s\n", v))
	}
	if v, ok := getFloat(m, "riskScore"); ok {
		sb.WriteString(fmt.Sprintf("  Risk Score: %.0f/100\n", v))
	}

	if details, ok := m["details"].(map[string]any); ok {
		if v := getString(details, "modelUsed"); v != "" {
			sb.WriteString(fmt.Sprintf("  Model: %s\n", v))
		}
		if v, ok := getFloat(details, "confidence"); ok {
			sb.WriteString(fmt.Sprintf("  Confidence: %.0f%%\n", v*100))
		}
		if v, ok := getFloat(details, "reconstructionError"); ok {
			sb.WriteString(fmt.Sprintf("  Reconstruction Error: %.4f\n", v))
		}
		if anomalies, ok := details["anomalies"].([]any); ok && len(anomalies) > 0 {
			sb.WriteString("  Anomalies:\n")
			for _, a := range anomalies {
				if s, ok := a.(string); ok {
					sb.WriteString(fmt.Sprintf("    - %s\n", s))
				}
			}
		}
	}

	if factors, ok := m["factors"].(map[string]any); ok && len(factors) > 0 {
		sb.WriteString("  Factors:\n")
		for _, name := range []string{"typingSpeed", "mouseSpeed", "latency", "appUsage"} {
			f, ok := factors[name].(map[string]any)
			if !ok {
				continue
			}
			value, _ := getFloat(f, "value")
			sb.WriteString(fmt.Sprintf("    %s: %.1f (%s)\n", name, value, getString(f, "deviation")))
		}
	}

	return sb.String(), nil
}

func formatModelList(raw json.RawMessage) (string, error) {
	var resp struct {
		Models []struct {
			ModelID      string `json:"modelId"`
			Version      string `json:"version"`
			FeatureCount int    `json:"featureCount"`
		} `json:"models"`
		TotalCount int `json:"totalCount"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected models response format")
	}

	if len(resp.Models) == 0 {
		return "No models loaded. The service will score with fallback assessments.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d model(s) loaded:\n", len(resp.Models)))
	for _, m := range resp.Models {
		sb.WriteString(fmt.Sprintf("  - %s (v%s, %d features)\n", m.ModelID, m.Version, m.FeatureCount))
	}
	return sb.String(), nil
}

func formatAssessmentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessments []map[string]any `json:"assessments"`
		TotalCount  int              `json:"totalCount"`
		NextCursor  string           `json:"nextCursor"`
		HasMore     bool             `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected assessments response format")
	}

	if len(resp.Assessments) == 0 {
		return "No assessments found.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d assessment(s):\n\n", len(resp.Assessments)))
	for i, a := range resp.Assessments {
		score, _ := getFloat(a, "riskScore")
		sb.WriteString(fmt.Sprintf("%d. [%s] user=%s session=%s score=%.0f\n",
			i+1, getString(a, "timestamp"), getString(a, "userId"), getString(a, "sessionId"), score))
		if details, ok := a["details"].(map[string]any); ok {
			if anomalies, ok := details["anomalies"].([]any); ok && len(anomalies) > 0 {
				for _, an := range anomalies {
					if s, ok := an.(string); ok {
						sb.WriteString(fmt.Sprintf("   ! %s\n", s))
					}
				}
			}
		}
	}
	if resp.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore available; pass cursor=%s to continue.\n", resp.NextCursor))
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
