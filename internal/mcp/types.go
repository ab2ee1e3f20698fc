// Package mcp exposes job chat, chunk search, feedback and token balances as
// Model Context Protocol tools.
package mcp

// AskDocumentsInput defines the input parameters for the ask_documents tool.
type AskDocumentsInput struct {
	JobID    string `json:"job_id" jsonschema:"the ingestion job whose documents are queried"`
	Username string `json:"username" jsonschema:"user charged for the tokens spent"`
	Prompt   string `json:"prompt" jsonschema:"the question to answer"`
}

// AskDocumentsOutput contains the answer.
type AskDocumentsOutput struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	TokensUsed int64    `json:"tokens_used"`
	TokensLeft int64    `json:"tokens_left"`
}

// SearchChunksInput defines the input parameters for the search_chunks tool.
type SearchChunksInput struct {
	JobID string `json:"job_id" jsonschema:"the ingestion job to search"`
	Query string `json:"query" jsonschema:"the semantic search query"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"maximum number of chunks to return (default 5, at most 20)"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum relevance score between 0 and 1 (default 0.4)"`
}

// SearchChunksOutput contains the search results.
type SearchChunksOutput struct {
	Results []ChunkResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// ChunkResult is a single chunk match.
type ChunkResult struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// SubmitFeedbackInput defines the input parameters for the submit_feedback tool.
type SubmitFeedbackInput struct {
	Kind     string `json:"kind" jsonschema:"like or dislike"`
	Username string `json:"username"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// SubmitFeedbackOutput confirms the stored entry.
type SubmitFeedbackOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// TokenBalanceInput defines the input parameters for the get_token_balance tool.
type TokenBalanceInput struct {
	Username string `json:"username"`
}

// TokenBalanceOutput is the user's balance.
type TokenBalanceOutput struct {
	Subscription int64  `json:"subscription"`
	Topup        int64  `json:"topup"`
	Total        int64  `json:"total"`
	StartDate    string `json:"start_date,omitempty"`
}
