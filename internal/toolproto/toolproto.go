// Package toolproto exposes the Memory Engine as four named tools
// (remember, recall, forget, status) over stdio, using the server half of
// mark3labs/mcp-go — the teacher only ever plays MCP client against external
// tool servers; engram plays the other side for its own tools.
package toolproto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"engram/internal/domain"
	"engram/internal/ingest"
	"engram/internal/recall"
)

// Server adapts Ingest/Recall/Store to the stdio tool protocol.
type Server struct {
	store  domain.Store
	ingest *ingest.Ingest
	recall *recall.Recall
	logger *slog.Logger

	mcp *server.MCPServer
}

// NewServer builds a toolproto Server with its four tools registered.
func NewServer(store domain.Store, ing *ingest.Ingest, rec *recall.Recall, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		ingest: ing,
		recall: rec,
		logger: logger,
		mcp:    server.NewMCPServer("engram", "1.0.0"),
	}
	s.registerTools()
	return s
}

// Serve blocks, serving tool calls over stdin/stdout until the transport
// closes or the process is signaled to stop.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("remember",
		mcp.WithDescription("Store a new memory, extracting structured fields and an embedding."),
		mcp.WithString("content", mcp.Required(), mcp.Description("the text to remember")),
		mcp.WithString("category", mcp.Description("preference|fact|decision|pattern|outcome; inferred when omitted")),
		mcp.WithString("entity", mcp.Description("the subject entity; inferred when omitted")),
		mcp.WithNumber("confidence", mcp.Description("0..1, defaults to 0.8")),
		mcp.WithString("namespace", mcp.Description("isolation scope; defaults to \"default\"")),
		mcp.WithArray("tags", mcp.Description("free-form tags")),
	), s.handleRemember)

	s.mcp.AddTool(mcp.NewTool("recall",
		mcp.WithDescription("Answer a query with a hybrid-ranked list of matching memories."),
		mcp.WithString("query", mcp.Required(), mcp.Description("the recall query text")),
		mcp.WithNumber("limit", mcp.Description("max results, default 5, capped at 100")),
		mcp.WithNumber("threshold", mcp.Description("minimum similarity, default 0.3")),
		mcp.WithString("namespace", mcp.Description("isolation scope; defaults to \"default\"")),
		mcp.WithString("category", mcp.Description("restrict results to one category")),
	), s.handleRecall)

	s.mcp.AddTool(mcp.NewTool("forget",
		mcp.WithDescription("Delete a memory by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("the memory id to delete")),
	), s.handleForget)

	s.mcp.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Report store and model status."),
	), s.handleStatus)
}

func (s *Server) handleRemember(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var entity *string
	if v, ok := args["entity"].(string); ok && v != "" {
		entity = &v
	}

	res, err := s.ingest.Run(ctx, ingest.Request{
		Content:    stringArg(args, "content"),
		Category:   domain.Category(stringArg(args, "category")),
		Entity:     entity,
		Confidence: numberArg(args, "confidence"),
		Namespace:  stringArg(args, "namespace"),
		Tags:       stringSliceArg(args, "tags"),
		Source:     domain.SourceMCP,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"memory": res.Memory, "warnings": res.Warnings})
}

func (s *Server) handleRecall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	results, err := s.recall.Run(ctx, recall.Query{
		Text:      stringArg(args, "query"),
		Namespace: stringArg(args, "namespace"),
		Category:  domain.Category(stringArg(args, "category")),
		Limit:     int(numberArg(args, "limit")),
		Threshold: numberArg(args, "threshold"),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"memories": results})
}

func (s *Server) handleForget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id := stringArg(args, "id")

	found, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if !found {
		return toolError(domain.NewError("forget", domain.ErrNotFound, id)), nil
	}
	return jsonResult(map[string]any{"deleted": true})
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.Status(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"total":           status.Total,
		"with_embeddings": status.WithEmbeddings,
		"by_category":     status.ByCategory,
		"by_namespace":    status.ByNamespace,
	})
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// jsonResult wraps v as the tool's text result, JSON-encoded.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("toolproto: marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError renders err in-band using the same error-kind taxonomy as the
// HTTP surface, never as a transport-level failure.
func toolError(err error) *mcp.CallToolResult {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"kind":    domain.ErrorKindOf(err),
			"message": err.Error(),
			"details": domain.DetailOf(err),
		},
	})
	result := mcp.NewToolResultText(string(body))
	result.IsError = true
	return result
}
