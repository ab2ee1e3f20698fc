// Package history persists chat transcripts per session.
package history

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	Human = "human"
	AI    = "ai"
)

// Message is one transcript entry.
type Message struct {
	Type    string `dynamodbav:"type"`
	Content string `dynamodbav:"content"`
}

// Turn is a question and the answer given to it.
type Turn struct {
	Human string
	AI    string
}

// Turns pairs each human message with the ai message right after it.
// Unanswered questions are skipped.
func Turns(msgs []Message) []Turn {
	var turns []Turn
	for i := 0; i+1 < len(msgs); i++ {
		if msgs[i].Type == Human && msgs[i+1].Type == AI {
			turns = append(turns, Turn{Human: msgs[i].Content, AI: msgs[i+1].Content})
			i++
		}
	}
	return turns
}

type record struct {
	SessionID string    `dynamodbav:"SessionId"`
	History   []Message `dynamodbav:"History"`
}

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store keeps one item per session.
type Store struct {
	client DynamoAPI
	table  string
}

// NewStore creates a Store over table.
func NewStore(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

func (s *Store) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"SessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
}

// Messages returns the session's transcript, oldest first. An unknown session
// has an empty transcript.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", sessionID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", sessionID, err)
	}
	return rec.History, nil
}

// Append adds msgs to the end of the session's transcript in one write.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	list, err := attributevalue.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(sessionID),
		UpdateExpression:         aws.String("SET #h = list_append(if_not_exists(#h, :empty), :msgs)"),
		ExpressionAttributeNames: map[string]string{"#h": "History"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":msgs":  list,
		},
	})
	if err != nil {
		return fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return nil
}
