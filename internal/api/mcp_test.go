package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/migration"
	"github.com/kalambet/jobtrail/internal/records"
	"github.com/kalambet/jobtrail/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Collection: collection.New(store),
		Migrator:   migration.NewMigrator(store),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// --- tests ---

func TestMCPTool_AddPosting(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpAddPosting(deps), makeCallToolRequest("add_posting", map[string]interface{}{
		"url":      "https://jobs.example.com/42",
		"company":  "Acme",
		"title":    "Backend Engineer",
		"interest": 4,
		"tags":     []string{"go", "remote"},
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.HasPrefix(toolText(t, result), "Saved posting ") {
		t.Fatalf("unexpected response: %s", toolText(t, result))
	}

	postings, err := deps.Collection.Postings(context.Background())
	if err != nil {
		t.Fatalf("listing postings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := postings[0]
	if p.Company != "Acme" || p.Interest != 4 || p.Status != records.StatusSaved {
		t.Fatalf("unexpected posting: %+v", p)
	}
	if len(p.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", p.Tags)
	}
}

func TestMCPTool_AddPosting_Duplicate(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAddPosting(deps)
	req := makeCallToolRequest("add_posting", map[string]interface{}{"url": "https://jobs.example.com/42"})

	if result := callTool(t, handler, req); result.IsError {
		t.Fatalf("first add failed: %s", toolText(t, result))
	}
	result := callTool(t, handler, req)
	if !result.IsError {
		t.Fatal("expected error for duplicate url")
	}
	if !strings.Contains(toolText(t, result), "already saved") {
		t.Fatalf("unexpected message: %s", toolText(t, result))
	}
}

func TestMCPTool_AddPosting_MissingURL(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpAddPosting(deps), makeCallToolRequest("add_posting", map[string]interface{}{"company": "Acme"}))
	if !result.IsError {
		t.Fatal("expected error for missing url")
	}
}

func TestMCPTool_ListPostings(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()
	deps.Collection.AddPosting(ctx, records.Posting{URL: "u1", Status: records.StatusApplied})
	deps.Collection.AddPosting(ctx, records.Posting{URL: "u2"})
	deps.Collection.AddPosting(ctx, records.Posting{URL: "u3", Status: records.StatusApplied})

	tests := []struct {
		name string
		args map[string]interface{}
		want int
	}{
		{"all", map[string]interface{}{}, 3},
		{"by status", map[string]interface{}{"status": "applied"}, 2},
		{"limited", map[string]interface{}{"limit": 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, mcpListPostings(deps), makeCallToolRequest("list_postings", tt.args))
			if result.IsError {
				t.Fatalf("unexpected error: %s", toolText(t, result))
			}
			var got []json.RawMessage
			if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d postings, got %d", tt.want, len(got))
			}
		})
	}
}

func TestMCPTool_ListPostings_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpListPostings(deps), makeCallToolRequest("list_postings", nil))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_ListPostings_BadStatus(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpListPostings(deps), makeCallToolRequest("list_postings", map[string]interface{}{"status": "ghosted"}))
	if !result.IsError {
		t.Fatal("expected error for unknown status")
	}
}

func TestMCPTool_ListConnections(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()
	deps.Collection.AddConnection(ctx, records.Connection{Name: "Ada", Company: "Acme"})
	deps.Collection.AddConnection(ctx, records.Connection{Name: "Grace", Company: "Navy"})

	result := callTool(t, mcpListConnections(deps), makeCallToolRequest("list_connections", map[string]interface{}{"company": "Acme"}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var got []records.Connection
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Ada" {
		t.Fatalf("unexpected connections: %+v", got)
	}
}

func TestMCPTool_DataVersion(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	ctx := context.Background()

	if err := store.Set(ctx, map[string][]byte{"job_applications": []byte(`[{"id":"l1","url":"u"}]`)}); err != nil {
		t.Fatalf("seeding legacy data: %v", err)
	}

	result := callTool(t, mcpDataVersion(deps), makeCallToolRequest("data_version", nil))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var status MigrationStatus
	if err := json.Unmarshal([]byte(toolText(t, result)), &status); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status.Detected != migration.DataV1 || status.SchemaVersion != 0 || status.CurrentVersion != records.CurrentSchemaVersion {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestMCPResource_Postings(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Collection.AddPosting(context.Background(), records.Posting{URL: "u1", Company: "Acme"})

	contents, err := mcpResourcePostings(deps)(context.Background(), makeReadResourceRequest("jobtrail://postings"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "jobtrail://postings" || tc.MIMEType != "application/json" {
		t.Fatalf("unexpected resource metadata: %+v", tc)
	}
	if !strings.Contains(tc.Text, `"company":"Acme"`) {
		t.Fatalf("unexpected resource text: %s", tc.Text)
	}
}

func TestMCPResource_ConnectionsEmpty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	contents, err := mcpResourceConnections(deps)(context.Background(), makeReadResourceRequest("jobtrail://connections"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := contents[0].(mcp.TextResourceContents)
	if tc.Text != "[]" {
		t.Fatalf("expected empty array, got: %s", tc.Text)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
