// Package feedback records like/dislike reactions to chat answers.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

// Kind is the reaction type.
type Kind string

const (
	Like    Kind = "like"
	Dislike Kind = "dislike"
)

// ErrInvalidKind is returned for anything other than like or dislike.
var ErrInvalidKind = errors.New("invalid feedback kind")

// ParseKind accepts "like" or "dislike", ignoring case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Like, Dislike:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Entry is the reaction being recorded.
type Entry struct {
	Username  string
	Prompt    string
	Response  string
	Timestamp time.Time // zero means now
}

type item struct {
	ID        string `dynamodbav:"id"`
	Username  string `dynamodbav:"username"`
	Prompt    string `dynamodbav:"prompt"`
	Response  string `dynamodbav:"response"`
	Timestamp string `dynamodbav:"timestamp"`
}

// PutItemAPI is the subset of the DynamoDB client the store needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store writes likes and dislikes to separate tables.
type Store struct {
	client        PutItemAPI
	likesTable    string
	dislikesTable string
	now           func() time.Time
}

// NewStore creates a Store.
func NewStore(client PutItemAPI, likesTable, dislikesTable string) *Store {
	return &Store{
		client:        client,
		likesTable:    likesTable,
		dislikesTable: dislikesTable,
		now:           time.Now,
	}
}

// Record stores entry under a new id and returns that id.
func (s *Store) Record(ctx context.Context, kind Kind, entry Entry) (string, error) {
	var table string
	switch kind {
	case Like:
		table = s.likesTable
	case Dislike:
		table = s.dislikesTable
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	it := item{
		ID:        uuid.New().String(),
		Username:  entry.Username,
		Prompt:    entry.Prompt,
		Response:  entry.Response,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return "", fmt.Errorf("marshal feedback: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	}); err != nil {
		return "", fmt.Errorf("put %s: %w", kind, err)
	}
	return it.ID, nil
}
