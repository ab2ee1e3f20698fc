package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/kbminer/internal/chat"
	"github.com/bull/kbminer/internal/feedback"
	"github.com/bull/kbminer/internal/storage"
	"github.com/bull/kbminer/internal/usage"
)

// Asker answers questions about a job's documents.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (chat.Answer, error)
}

// QueryEmbedder embeds search queries.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// ChunkSearcher runs vector search over a job's collection.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, collection string, embedding []float32, limit int) ([]*storage.ScoredChunk, error)
}

// FeedbackRecorder stores likes and dislikes.
type FeedbackRecorder interface {
	Record(ctx context.Context, kind feedback.Kind, entry feedback.Entry) (string, error)
}

// BalanceReader reports token balances.
type BalanceReader interface {
	Balance(ctx context.Context, username string) (usage.Balance, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. A tool is registered only when all of
// its dependencies are set.
type Config struct {
	Asker    Asker
	Embedder QueryEmbedder
	Searcher ChunkSearcher
	Feedback FeedbackRecorder
	Balances BalanceReader
	Logger   *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "kbminer",
		Version: "v0.1.0",
	}
	server := mcp.NewServer(impl, nil)

	if cfg.Asker != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "ask_documents",
			Description: "Ask a question about the documents of an ingestion job. Uses the job's chat history and charges the user's token subscription.",
		}, makeAskHandler(cfg.Asker, logger))
	}

	if cfg.Embedder != nil && cfg.Searcher != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "search_chunks",
			Description: "Search the chunks extracted from an ingestion job's PDFs semantically. Returns chunk text with its source file.",
		}, makeSearchHandler(cfg.Embedder, cfg.Searcher))
	}

	if cfg.Feedback != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "submit_feedback",
			Description: "Record a like or dislike for a chat answer.",
		}, makeFeedbackHandler(cfg.Feedback))
	}

	if cfg.Balances != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "get_token_balance",
			Description: "Get a user's remaining subscription and top-up tokens.",
		}, makeBalanceHandler(cfg.Balances))
	}

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
