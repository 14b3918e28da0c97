package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the BehaviorGuard MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScoreSession = mcp.NewTool("score_session",
	mcp.WithDescription(
		"Generate a synthetic behavioral session and score it for authentication risk. "+
			"Returns a full risk assessment: risk score (0-100), behavioral factors with "+
			"deviation grades, detected anomalies, and confidence. "+
			"Use this to smoke-test the scoring pipeline or explore how profiles score."),
	mcp.WithString("profile",
		mcp.Description("Behavioral profile to synthesize: 'normal', 'fast_typer', or 'slow_careful'"),
		mcp.Enum("normal", "fast_typer", "slow_careful")),
)

var ToolListModels = mcp.NewTool("list_models",
	mcp.WithDescription(
		"List the IDs of all behavioral models currently loaded in the cache. "+
			"Per-user models are keyed by user ID; 'global' is the shared fallback model."),
)

var ToolModelInfo = mcp.NewTool("model_info",
	mcp.WithDescription(
		"Get metadata for one cached model: version, feature count, encoding dimension, "+
			"training info, and when it was loaded."),
	mcp.WithString("model_id",
		mcp.Required(),
		mcp.Description("The model ID (a user ID, or 'global')")),
)

var ToolRefreshModel = mcp.NewTool("refresh_model",
	mcp.WithDescription(
		"Force a reload of one model from its checkpoint file on disk. "+
			"Use this after replacing a checkpoint when you don't want to wait for the "+
			"file watcher to pick it up."),
	mcp.WithString("model_id",
		mcp.Required(),
		mcp.Description("The model ID to reload (a user ID, or 'global')")),
)

var ToolRecentAssessments = mcp.NewTool("recent_assessments",
	mcp.WithDescription(
		"List a user's persisted risk assessments, newest first. "+
			"Supports cursor pagination for walking further back in history."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user whose assessment history to fetch")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20)")),
	mcp.WithString("cursor",
		mcp.Description("Opaque cursor from a previous page's nextCursor field")),
)

var ToolHighRisk = mcp.NewTool("high_risk",
	mcp.WithDescription(
		"List recent high-risk assessments across all users (risk score 80 or above). "+
			"This is the ops view for spotting sessions that need attention."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20)")),
)

var ToolServiceHealth = mcp.NewTool("service_health",
	mcp.WithDescription(
		"Get the service health report: per-subsystem status (models directory, "+
			"database, model cache) plus service statistics."),
)
