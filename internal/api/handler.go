// Package api serves the review endpoints behind API Gateway: chat plus
// like/dislike feedback.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/bull/kbminer/internal/chat"
	"github.com/bull/kbminer/internal/feedback"
	"github.com/bull/kbminer/internal/usage"
)

const JobChat = "chat"

// Request is the JSON body posted by the review UI.
type Request struct {
	Job      string `json:"job"`
	Username string `json:"username"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	JobID    string `json:"job_id"`
	// Timestamp is the client's time of the reaction. Unparseable or missing
	// values fall back to the server time.
	Timestamp string `json:"timestamp"`
}

// ChatResponse is the body returned for chat jobs.
type ChatResponse struct {
	Answer string `json:"answer"`
	Tokens string `json:"tokens"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Asker answers chat requests.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (chat.Answer, error)
}

// FeedbackRecorder stores like/dislike entries.
type FeedbackRecorder interface {
	Record(ctx context.Context, kind feedback.Kind, entry feedback.Entry) (string, error)
}

// Handler routes review requests by their job field.
type Handler struct {
	asker    Asker
	feedback FeedbackRecorder
	logger   *slog.Logger
}

// NewHandler serves chat and feedback.
func NewHandler(asker Asker, fb FeedbackRecorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{asker: asker, feedback: fb, logger: logger}
}

// FeedbackOnly serves like/dislike and rejects chat.
func FeedbackOnly(fb FeedbackRecorder, logger *slog.Logger) *Handler {
	return NewHandler(nil, fb, logger)
}

// Handle never returns an error; failures are reported in the response.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req Request
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respond(http.StatusBadRequest, errorResponse{Error: "invalid request body"}), nil
	}
	logger := h.logger.With("job", req.Job, "username", req.Username)

	if req.Job == JobChat && h.asker != nil {
		return h.handleChat(ctx, logger, req), nil
	}
	kind, err := feedback.ParseKind(req.Job)
	if err != nil {
		logger.Warn("Rejected request", "error", err)
		return respond(http.StatusBadRequest, errorResponse{Error: "Invalid job type"}), nil
	}
	return h.handleFeedback(ctx, logger, kind, req), nil
}

func (h *Handler) handleChat(ctx context.Context, logger *slog.Logger, req Request) events.APIGatewayProxyResponse {
	if req.JobID == "" || req.Username == "" {
		return respond(http.StatusBadRequest, errorResponse{Error: "job_id and username are required"})
	}

	answer, err := h.asker.Ask(ctx, chat.Request{JobID: req.JobID, Username: req.Username, Prompt: req.Prompt})
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		return respond(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, usage.ErrUserNotFound):
		return respond(http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		logger.Error("Chat failed", "job_id", req.JobID, "error", err)
		return respond(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return respond(http.StatusOK, ChatResponse{
		Answer: answer.Text,
		Tokens: strconv.FormatInt(answer.TokensLeft, 10),
	})
}

func (h *Handler) handleFeedback(ctx context.Context, logger *slog.Logger, kind feedback.Kind, req Request) events.APIGatewayProxyResponse {
	ts, ok := ParseTimestamp(req.Timestamp)
	if !ok && req.Timestamp != "" {
		logger.Debug("Ignoring unparseable timestamp", "timestamp", req.Timestamp)
	}
	id, err := h.feedback.Record(ctx, kind, feedback.Entry{
		Username:  req.Username,
		Prompt:    req.Prompt,
		Response:  req.Response,
		Timestamp: ts,
	})
	if err != nil {
		logger.Error("Failed to record feedback", "error", err)
		return respond(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	logger.Info("Recorded feedback", "id", id)
	return respond(http.StatusOK, messageResponse{Message: string(kind)})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO forms browsers and
// Python clients send; zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func respond(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
