// Package usage tracks per-user token balances.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInsufficientTokens = errors.New("insufficient tokens")
)

// Balance is what a user can still spend.
type Balance struct {
	Subscription int64
	Topup        int64
	StartDate    string
}

// Total is subscription plus top-up.
func (b Balance) Total() int64 {
	return b.Subscription + b.Topup
}

type pool struct {
	Available int64 `dynamodbav:"available"`
}

type usageItem struct {
	ID        string `dynamodbav:"id"`
	StartDate string `dynamodbav:"start_date"`
	Tokens    struct {
		Subscription pool `dynamodbav:"subscription"`
		Topup        pool `dynamodbav:"topup"`
	} `dynamodbav:"tokens"`
}

// DynamoAPI is the subset of the DynamoDB client the ledger needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Ledger reads and spends token balances.
type Ledger struct {
	client DynamoAPI
	table  string
}

// NewLedger creates a Ledger over table.
func NewLedger(client DynamoAPI, table string) *Ledger {
	return &Ledger{client: client, table: table}
}

// UserKey is the item id for username.
func UserKey(username string) string {
	return "user_" + username
}

func (l *Ledger) key(username string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: UserKey(username)},
	}
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, username string) (Balance, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.table),
		Key:            l.key(username),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Balance{}, fmt.Errorf("get usage for %s: %w", username, err)
	}
	if len(out.Item) == 0 {
		return Balance{}, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	var it usageItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return Balance{}, fmt.Errorf("decode usage for %s: %w", username, err)
	}
	return Balance{
		Subscription: it.Tokens.Subscription.Available,
		Topup:        it.Tokens.Topup.Available,
		StartDate:    it.StartDate,
	}, nil
}

// DecrementSubscription subtracts n from the subscription pool. The update is
// conditional, so a balance never goes negative; a missing user fails the
// same condition.
func (l *Ledger) DecrementSubscription(ctx context.Context, username string, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(l.table),
		Key:                 l.key(username),
		UpdateExpression:    aws.String("SET #t.#s.#a = #t.#s.#a - :n"),
		ConditionExpression: aws.String("attribute_exists(id) AND #t.#s.#a >= :n"),
		ExpressionAttributeNames: map[string]string{
			"#t": "tokens",
			"#s": "subscription",
			"#a": "available",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberN{Value: fmt.Sprint(n)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s needs %d", ErrInsufficientTokens, username, n)
		}
		return fmt.Errorf("decrement usage for %s: %w", username, err)
	}
	return nil
}
