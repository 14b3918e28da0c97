package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all BehaviorGuard tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("behavior-guard-insight", "1.0.0")
	client := NewServiceClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolScoreSession, h.HandleScoreSession)
	s.AddTool(ToolListModels, h.HandleListModels)
	s.AddTool(ToolModelInfo, h.HandleModelInfo)
	s.AddTool(ToolRefreshModel, h.HandleRefreshModel)
	s.AddTool(ToolRecentAssessments, h.HandleRecentAssessments)
	s.AddTool(ToolHighRisk, h.HandleHighRisk)
	s.AddTool(ToolServiceHealth, h.HandleServiceHealth)

	return s
}
