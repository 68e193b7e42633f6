package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/migration"
	"github.com/kalambet/jobtrail/internal/records"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Collection *collection.Repository
	Migrator   *migration.Migrator
	Version    string // reported to clients; defaults to "dev"
}

// NewMCPServer creates an MCP server with all jobtrail tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"jobtrail",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("jobtrail: local tracker for job postings and the people connected to them."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_postings",
			mcp.WithDescription("List saved job postings, newest last."),
			mcp.WithString("status", mcp.Description("Only return postings with this status (saved, applied, interviewing, offered, rejected, in_progress, accepted)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 50)")),
		),
		mcpListPostings(deps),
	)

	s.AddTool(
		mcp.NewTool("add_posting",
			mcp.WithDescription("Save a job posting. Postings are deduplicated by URL."),
			mcp.WithString("url", mcp.Description("Link to the job posting"), mcp.Required()),
			mcp.WithString("company", mcp.Description("Hiring company")),
			mcp.WithString("title", mcp.Description("Job title")),
			mcp.WithString("location", mcp.Description("Location or remote policy")),
			mcp.WithString("status", mcp.Description("Application status (default saved)")),
			mcp.WithNumber("interest", mcp.Description("Interest from 1 to 5 (default 2)")),
			mcp.WithArray("tags", mcp.Description("Optional tags for categorization")),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		mcpAddPosting(deps),
	)

	s.AddTool(
		mcp.NewTool("list_connections",
			mcp.WithDescription("List people in the user's network."),
			mcp.WithString("company", mcp.Description("Only return connections at this company")),
		),
		mcpListConnections(deps),
	)

	s.AddTool(
		mcp.NewTool("data_version",
			mcp.WithDescription("Report the detected data generation and the stored schema version."),
		),
		mcpDataVersion(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"jobtrail://postings",
			"Postings",
			mcp.WithResourceDescription("All saved job postings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePostings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"jobtrail://connections",
			"Connections",
			mcp.WithResourceDescription("All connections as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceConnections(deps),
	)

	return s
}

func mcpListPostings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 50)
		if limit <= 0 {
			limit = 50
		}
		if limit > 500 {
			limit = 500
		}
		status := records.Status(req.GetString("status", ""))
		if status != "" && !status.Valid() {
			return mcpError(fmt.Sprintf("unknown status %q", status)), nil
		}

		postings, err := deps.Collection.Postings(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list postings: %v", err)), nil
		}
		postings = page(filterPostings(postings, status), limit, 0)

		b, err := json.Marshal(postings)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal postings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddPosting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		p := records.Posting{
			URL:      url,
			Company:  req.GetString("company", ""),
			Title:    req.GetString("title", ""),
			Location: req.GetString("location", ""),
			Status:   records.Status(req.GetString("status", "")),
			Interest: req.GetInt("interest", 0),
			Tags:     req.GetStringSlice("tags", nil),
			Notes:    req.GetString("notes", ""),
		}

		saved, err := deps.Collection.AddPosting(ctx, p)
		if errors.Is(err, collection.ErrDuplicateURL) {
			return mcpError(fmt.Sprintf("already saved: %s", url)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save posting: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved posting %s", saved.ID)), nil
	}
}

func mcpListConnections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		conns, err := deps.Collection.Connections(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list connections: %v", err)), nil
		}

		if company := req.GetString("company", ""); company != "" {
			filtered := make([]records.Connection, 0, len(conns))
			for _, c := range conns {
				if c.Company == company {
					filtered = append(filtered, c)
				}
			}
			conns = filtered
		}

		b, err := records.EncodeList(conns)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal connections: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDataVersion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		detected, err := deps.Migrator.DetectDataVersion(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to detect data version: %v", err)), nil
		}
		v, err := deps.Migrator.Registry().Version(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read schema version: %v", err)), nil
		}

		b, err := json.Marshal(MigrationStatus{
			Detected:       detected,
			SchemaVersion:  v,
			CurrentVersion: records.CurrentSchemaVersion,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourcePostings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		postings, err := deps.Collection.Postings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list postings: %w", err)
		}

		b, err := records.EncodeList(postings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal postings: %w", err)
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

func mcpResourceConnections(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		conns, err := deps.Collection.Connections(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list connections: %w", err)
		}

		b, err := records.EncodeList(conns)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal connections: %w", err)
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
