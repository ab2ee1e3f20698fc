package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/kbminer/internal/chat"
	"github.com/bull/kbminer/internal/feedback"
	"github.com/bull/kbminer/internal/storage"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
	defaultMinScore   = 0.4
)

func makeAskHandler(asker Asker, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, AskDocumentsInput,
) (*mcp.CallToolResult, AskDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDocumentsInput) (
		*mcp.CallToolResult, AskDocumentsOutput, error,
	) {
		if input.JobID == "" || input.Username == "" {
			return nil, AskDocumentsOutput{}, errors.New("job_id and username are required")
		}

		answer, err := asker.Ask(ctx, chat.Request{
			JobID:    input.JobID,
			Username: input.Username,
			Prompt:   input.Prompt,
		})
		if err != nil {
			logger.Warn("ask_documents failed", "job_id", input.JobID, "error", err)
			return nil, AskDocumentsOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		sources := answer.Sources
		if sources == nil {
			sources = []string{} // Ensure non-nil for JSON marshaling
		}
		return nil, AskDocumentsOutput{
			Answer:     answer.Text,
			Sources:    sources,
			TokensUsed: answer.TokensUsed,
			TokensLeft: answer.TokensLeft,
		}, nil
	}
}

// makeSearchHandler creates the search_chunks tool handler.
// Results below the score threshold are dropped; a missing collection is
// reported as an empty result rather than an error.
func makeSearchHandler(embedder QueryEmbedder, searcher ChunkSearcher) func(
	context.Context, *mcp.CallToolRequest, SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (
		*mcp.CallToolResult, SearchChunksOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxMaxResults)
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = defaultMinScore
		}

		queryEmbedding, err := embedder.EmbedQuery(ctx, input.Query)
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		chunks, err := searcher.SearchChunks(ctx, storage.CollectionName(input.JobID), queryEmbedding, maxResults)
		if errors.Is(err, storage.ErrCollectionNotFound) {
			return nil, SearchChunksOutput{
				Results: []ChunkResult{},
				Message: fmt.Sprintf("Job %s has no indexed documents.", input.JobID),
			}, nil
		}
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]ChunkResult, 0, len(chunks))
		for _, c := range chunks {
			if c.Score < minScore {
				continue
			}
			results = append(results, ChunkResult{
				Source:     c.Source,
				ChunkIndex: c.ChunkIndex,
				Score:      c.Score,
				Content:    c.Content,
			})
		}

		if len(results) == 0 {
			return nil, SearchChunksOutput{
				Results: results,
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}
		return nil, SearchChunksOutput{Results: results}, nil
	}
}

func makeFeedbackHandler(recorder FeedbackRecorder) func(
	context.Context, *mcp.CallToolRequest, SubmitFeedbackInput,
) (*mcp.CallToolResult, SubmitFeedbackOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitFeedbackInput) (
		*mcp.CallToolResult, SubmitFeedbackOutput, error,
	) {
		kind, err := feedback.ParseKind(input.Kind)
		if err != nil {
			return nil, SubmitFeedbackOutput{}, err
		}

		id, err := recorder.Record(ctx, kind, feedback.Entry{
			Username: input.Username,
			Prompt:   input.Prompt,
			Response: input.Response,
		})
		if err != nil {
			return nil, SubmitFeedbackOutput{}, fmt.Errorf("failed to record feedback: %w", err)
		}
		return nil, SubmitFeedbackOutput{ID: id, Message: "Feedback recorded"}, nil
	}
}

func makeBalanceHandler(balances BalanceReader) func(
	context.Context, *mcp.CallToolRequest, TokenBalanceInput,
) (*mcp.CallToolResult, TokenBalanceOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TokenBalanceInput) (
		*mcp.CallToolResult, TokenBalanceOutput, error,
	) {
		b, err := balances.Balance(ctx, input.Username)
		if err != nil {
			return nil, TokenBalanceOutput{}, fmt.Errorf("failed to read balance: %w", err)
		}
		return nil, TokenBalanceOutput{
			Subscription: b.Subscription,
			Topup:        b.Topup,
			Total:        b.Total(),
			StartDate:    b.StartDate,
		}, nil
	}
}
