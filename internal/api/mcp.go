package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lenslab/photocoach/internal/ingest"
	"github.com/lenslab/photocoach/internal/knowledge"
	"github.com/lenslab/photocoach/internal/orchestrator"
	"github.com/lenslab/photocoach/internal/session"
	"github.com/lenslab/photocoach/internal/storage"
	"github.com/lenslab/photocoach/internal/vision"
)

// MCPCoach abstracts the coaching pipeline for the MCP layer.
type MCPCoach interface {
	Coach(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	AnalyzePhoto(ctx context.Context, image []byte, mimeType string) vision.Analysis
	Session(userID string) (*session.Session, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Coach   MCPCoach
	Corpus  KnowledgeSearcher
	Entries []knowledge.Entry
}

// NewMCPServer creates an MCP server with all coaching tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"photocoach",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("photocoach — photography coaching with cited advice: photo analysis, session memory, and a curated knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_photo",
			mcp.WithDescription("Analyze a photo's camera settings and composition. Returns EXIF data, detected issues, and a summary."),
			mcp.WithString("image_base64", mcp.Description("Base64-encoded JPEG image"), mcp.Required()),
			mcp.WithString("mime_type", mcp.Description("Image MIME type (default image/jpeg)")),
		),
		mcpAnalyzePhoto(deps),
	)

	s.AddTool(
		mcp.NewTool("coach_on_photo",
			mcp.WithDescription("Get personalized photography coaching with citations. Optionally analyzes an attached photo and remembers the conversation per user."),
			mcp.WithString("user_id", mcp.Description("Stable user identifier for session memory"), mcp.Required()),
			mcp.WithString("query", mcp.Description("The photography question to answer"), mcp.Required()),
			mcp.WithString("image_base64", mcp.Description("Optional base64-encoded JPEG to analyze")),
			mcp.WithString("skill_level", mcp.Description("beginner, intermediate, or advanced")),
		),
		mcpCoachOnPhoto(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session_history",
			mcp.WithDescription("Fetch a user's coaching session: skill level, conversation history, and compacted summary."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetSessionHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Semantically search the curated photography knowledge base."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_document",
			mcp.WithDescription("Queue a PDF for ingestion into the document index used for supplementary citations."),
			mcp.WithString("path", mcp.Description("Filesystem path to the PDF"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Document title (defaults to the filename)")),
			mcp.WithArray("tags", mcp.Description("Optional tags for categorization")),
		),
		mcpIngestDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"knowledge://stats",
			"Knowledge Base Stats",
			mcp.WithResourceDescription("Curated knowledge base statistics as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAnalyzePhoto(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		imageB64, err := req.RequireString("image_base64")
		if err != nil {
			return mcpError("image_base64 is required"), nil
		}
		image, err := base64.StdEncoding.DecodeString(imageB64)
		if err != nil {
			return mcpError("invalid base64 image data"), nil
		}
		mimeType := req.GetString("mime_type", "image/jpeg")

		analysis := deps.Coach.AnalyzePhoto(ctx, image, mimeType)

		b, err := json.Marshal(analysis)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analysis: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCoachOnPhoto(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		coachReq := orchestrator.Request{
			UserID:     userID,
			Query:      query,
			SkillLevel: req.GetString("skill_level", ""),
		}
		if imageB64 := req.GetString("image_base64", ""); imageB64 != "" {
			image, err := base64.StdEncoding.DecodeString(imageB64)
			if err != nil {
				return mcpError("invalid base64 image data"), nil
			}
			coachReq.Image = image
		}

		res, err := deps.Coach.Coach(ctx, coachReq)
		if err != nil {
			return mcpError(fmt.Sprintf("coaching failed: %v", err)), nil
		}

		out := map[string]any{
			"text":     res.Text,
			"exercise": res.Coach.Exercise,
		}
		if res.Vision != nil {
			out["vision"] = res.Vision
		}
		if len(res.Citations) > 0 {
			out["citations"] = res.Citations
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetSessionHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		sess, err := deps.Coach.Session(userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load session: %v", err)), nil
		}

		b, err := json.Marshal(sess)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 20 {
			limit = 20
		}

		results, err := deps.Corpus.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIngestDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		title := req.GetString("title", "")

		tagsJSON := "[]"
		if tags := req.GetStringSlice("tags", nil); len(tags) > 0 {
			b, err := json.Marshal(tags)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to marshal tags: %v", err)), nil
			}
			tagsJSON = string(b)
		}

		doc, err := ingest.Enqueue(deps.Store, title, path, tagsJSON)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to queue ingest: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Queued document %s for ingestion", doc.ID)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats := knowledge.Summarize(deps.Entries)

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
