package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutItem struct {
	input *dynamodb.PutItemInput
	err   error
}

func (f *fakePutItem) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.input = params
	return &dynamodb.PutItemOutput{}, f.err
}

func str(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s is not a string", key)
	return v.Value
}

func TestRecord_RoutesByKind(t *testing.T) {
	tests := []struct {
		kind  Kind
		table string
	}{
		{Like, "likes"},
		{Dislike, "dislikes"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			client := &fakePutItem{}
			store := NewStore(client, "likes", "dislikes")
			store.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)) }

			id, err := store.Record(context.Background(), tt.kind, Entry{Username: "ann", Prompt: "q", Response: "a"})
			require.NoError(t, err)

			assert.Equal(t, tt.table, aws.ToString(client.input.TableName))
			item := client.input.Item
			assert.Equal(t, id, str(t, item, "id"))
			assert.Equal(t, "ann", str(t, item, "username"))
			assert.Equal(t, "q", str(t, item, "prompt"))
			assert.Equal(t, "a", str(t, item, "response"))
			assert.Equal(t, "2024-03-01T11:00:00Z", str(t, item, "timestamp"))
		})
	}
}

func TestRecord_InvalidKind(t *testing.T) {
	client := &fakePutItem{}
	_, err := NewStore(client, "likes", "dislikes").Record(context.Background(), Kind("meh"), Entry{})

	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.Nil(t, client.input)
}

func TestRecord_PutError(t *testing.T) {
	client := &fakePutItem{err: errors.New("throttled")}
	_, err := NewStore(client, "likes", "dislikes").Record(context.Background(), Like, Entry{})

	assert.ErrorContains(t, err, "throttled")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Like ")
	require.NoError(t, err)
	assert.Equal(t, Like, k)

	_, err = ParseKind("chat")
	assert.ErrorIs(t, err, ErrInvalidKind)
}
