// Package chat answers questions about an ingested job's documents using
// retrieval over the job's collection and the stored conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"

	"github.com/bull/kbminer/internal/history"
	"github.com/bull/kbminer/internal/storage"
	"github.com/bull/kbminer/internal/usage"
)

const (
	DefaultModel            = "gpt-4-1106-preview"
	DefaultTemperature      = 0.2
	DefaultTopK             = 4
	DefaultMaxContextTokens = 6000
)

// InsufficientTokensAnswer replaces the answer when the user cannot pay for it.
const InsufficientTokensAnswer = "Sorry you do not have sufficient tokens to generate response"

var ErrEmptyPrompt = errors.New("prompt is empty")

// Request is one user question in a job's conversation.
type Request struct {
	JobID    string
	Username string
	Prompt   string
}

// Answer is the reply plus token accounting.
type Answer struct {
	Text       string
	Sources    []string
	TokensUsed int64
	TokensLeft int64
	Charged    bool
}

// QueryEmbedder embeds a single query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Retriever finds the chunks nearest to an embedding.
type Retriever interface {
	SearchChunks(ctx context.Context, collection string, embedding []float32, limit int) ([]*storage.ScoredChunk, error)
}

// Ledger reads and spends token balances.
type Ledger interface {
	Balance(ctx context.Context, username string) (usage.Balance, error)
	DecrementSubscription(ctx context.Context, username string, n int64) error
}

// History loads and extends a session transcript.
type History interface {
	Messages(ctx context.Context, sessionID string) ([]history.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...history.Message) error
}

// Options tunes the model calls and retrieval.
type Options struct {
	Model            string
	Temperature      float64
	TopK             int
	MaxContextTokens int
}

// Service runs conversational retrieval.
type Service struct {
	client    *openai.Client
	embedder  QueryEmbedder
	retriever Retriever
	ledger    Ledger
	history   History
	opts      Options
	logger    *slog.Logger
}

// NewService creates a Service. Zero options take the package defaults.
func NewService(client *openai.Client, embedder QueryEmbedder, retriever Retriever, ledger Ledger, hist History, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = DefaultMaxContextTokens
	}
	return &Service{
		client:    client,
		embedder:  embedder,
		retriever: retriever,
		ledger:    ledger,
		history:   hist,
		opts:      opts,
		logger:    logger,
	}
}

// Ask answers req.Prompt, charges the tokens spent to the user and records
// the exchange. When the user's subscription cannot cover the cost the answer
// is replaced and nothing is recorded.
func (s *Service) Ask(ctx context.Context, req Request) (Answer, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Answer{}, ErrEmptyPrompt
	}
	logger := s.logger.With("job_id", req.JobID, "username", req.Username)

	if _, err := s.ledger.Balance(ctx, req.Username); err != nil {
		return Answer{}, err
	}

	msgs, err := s.history.Messages(ctx, req.JobID)
	if err != nil {
		return Answer{}, err
	}
	turns := history.Turns(msgs)

	var answer Answer
	question := req.Prompt
	if len(turns) > 0 {
		condensed, used, err := s.condense(ctx, turns, req.Prompt)
		if err != nil {
			return Answer{}, err
		}
		question = condensed
		answer.TokensUsed += used
	}

	contextChunks, err := s.retrieve(ctx, req.JobID, question)
	if err != nil {
		return Answer{}, err
	}
	for _, c := range contextChunks {
		answer.Sources = append(answer.Sources, c.Source)
	}

	text, used, err := s.answer(ctx, contextChunks, question)
	if err != nil {
		return Answer{}, err
	}
	answer.Text = text
	answer.TokensUsed += used

	switch err := s.ledger.DecrementSubscription(ctx, req.Username, answer.TokensUsed); {
	case errors.Is(err, usage.ErrInsufficientTokens):
		logger.Info("Not enough tokens", "needed", answer.TokensUsed)
		answer.Text = InsufficientTokensAnswer
	case err != nil:
		return Answer{}, err
	default:
		answer.Charged = true
		if err := s.history.Append(ctx, req.JobID,
			history.Message{Type: history.Human, Content: req.Prompt},
			history.Message{Type: history.AI, Content: answer.Text},
		); err != nil {
			logger.Warn("Failed to append chat history", "error", err)
		}
	}

	balance, err := s.ledger.Balance(ctx, req.Username)
	if err != nil {
		return Answer{}, err
	}
	answer.TokensLeft = balance.Total()

	logger.Info("Answered question",
		"tokens_used", answer.TokensUsed,
		"tokens_left", answer.TokensLeft,
		"chunks", len(contextChunks),
	)
	return answer, nil
}

func (s *Service) condense(ctx context.Context, turns []history.Turn, prompt string) (string, int64, error) {
	var transcript strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&transcript, "\nHuman: %s\nAssistant: %s", t.Human, t.AI)
	}

	text, used, err := s.complete(ctx, openai.UserMessage(fmt.Sprintf(condensePrompt, transcript.String(), prompt)))
	if err != nil {
		return "", 0, fmt.Errorf("condense question: %w", err)
	}
	if text == "" {
		return prompt, used, nil
	}
	return text, used, nil
}

// retrieve returns the nearest chunks, dropping the furthest ones until the
// context fits the token budget.
func (s *Service) retrieve(ctx context.Context, jobID, question string) ([]*storage.Chunk, error) {
	emb, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	scored, err := s.retriever.SearchChunks(ctx, storage.CollectionName(jobID), emb, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}

	chunks := make([]*storage.Chunk, 0, len(scored))
	total := 0
	for _, sc := range scored {
		chunks = append(chunks, sc.Chunk)
		total += estimateTokens(sc.Content)
	}
	for total > s.opts.MaxContextTokens && len(chunks) > 0 {
		total -= estimateTokens(chunks[len(chunks)-1].Content)
		chunks = chunks[:len(chunks)-1]
	}
	return chunks, nil
}

func (s *Service) answer(ctx context.Context, chunks []*storage.Chunk, question string) (string, int64, error) {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}

	text, used, err := s.complete(ctx,
		openai.SystemMessage(answerPrompt+strings.Join(parts, "\n\n")),
		openai.UserMessage(question),
	)
	if err != nil {
		return "", 0, fmt.Errorf("answer question: %w", err)
	}
	return text, used, nil
}

func (s *Service) complete(ctx context.Context, msgs ...openai.ChatCompletionMessageParamUnion) (string, int64, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.opts.Model),
		Messages:    msgs,
		Temperature: openai.Float(s.opts.Temperature),
	})
	if err != nil {
		return "", 0, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage.TotalTokens, errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Usage.TotalTokens, nil
}

// estimateTokens uses 4 characters per token.
func estimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

const condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const answerPrompt = `Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
`
