package usage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	update *dynamodb.UpdateItemInput
	err    error
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.update = in
	return &dynamodb.UpdateItemOutput{}, f.err
}

func usageRecord(subscription, topup int64) map[string]types.AttributeValue {
	pool := func(n int64) types.AttributeValue {
		return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"available": &types.AttributeValueMemberN{Value: fmt.Sprint(n)},
		}}
	}
	return map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: "user_ann"},
		"start_date": &types.AttributeValueMemberS{Value: "2024-01-01"},
		"tokens": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"subscription": pool(subscription),
			"topup":        pool(topup),
		}},
	}
}

func TestBalance(t *testing.T) {
	client := &fakeDynamo{items: map[string]map[string]types.AttributeValue{"user_ann": usageRecord(900, 100)}}

	b, err := NewLedger(client, "usage").Balance(context.Background(), "ann")
	require.NoError(t, err)

	assert.Equal(t, int64(900), b.Subscription)
	assert.Equal(t, int64(100), b.Topup)
	assert.Equal(t, int64(1000), b.Total())
	assert.Equal(t, "2024-01-01", b.StartDate)
}

func TestBalance_UserNotFound(t *testing.T) {
	_, err := NewLedger(&fakeDynamo{}, "usage").Balance(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDecrementSubscription(t *testing.T) {
	client := &fakeDynamo{}

	require.NoError(t, NewLedger(client, "usage").DecrementSubscription(context.Background(), "ann", 42))

	in := client.update
	require.NotNil(t, in)
	assert.Equal(t, "usage", aws.ToString(in.TableName))
	assert.Equal(t, "user_ann", in.Key["id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "42", in.ExpressionAttributeValues[":n"].(*types.AttributeValueMemberN).Value)
	assert.Contains(t, aws.ToString(in.ConditionExpression), ">= :n")
}

func TestDecrementSubscription_Insufficient(t *testing.T) {
	client := &fakeDynamo{err: &types.ConditionalCheckFailedException{Message: aws.String("failed")}}

	err := NewLedger(client, "usage").DecrementSubscription(context.Background(), "ann", 42)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
}

func TestDecrementSubscription_OtherError(t *testing.T) {
	client := &fakeDynamo{err: errors.New("throttled")}

	err := NewLedger(client, "usage").DecrementSubscription(context.Background(), "ann", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientTokens)
}

func TestDecrementSubscription_ZeroIsNoop(t *testing.T) {
	client := &fakeDynamo{}
	require.NoError(t, NewLedger(client, "usage").DecrementSubscription(context.Background(), "ann", 0))
	assert.Nil(t, client.update)
}
