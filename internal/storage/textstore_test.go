package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutItem struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (f *fakePutItem) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestTextStore_Put(t *testing.T) {
	fake := &fakePutItem{}
	store := NewTextStore(fake, "pdf-data-dump")

	err := store.Put(context.Background(), "job-1", "report.pdf", "Hello\n")
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	input := fake.inputs[0]
	assert.Equal(t, "pdf-data-dump", aws.ToString(input.TableName))

	file, ok := input.Item["file"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "job-1_report.pdf", file.Value)

	text, ok := input.Item["text"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "Hello\n", text.Value)
}

func TestTextStore_PutError(t *testing.T) {
	store := NewTextStore(&fakePutItem{err: errors.New("table not found")}, "pdf-data-dump")

	err := store.Put(context.Background(), "job-1", "a.pdf", "x")
	assert.ErrorContains(t, err, "table not found")
}

func TestTextStore_RejectsOversizedText(t *testing.T) {
	fake := &fakePutItem{}
	store := NewTextStore(fake, "pdf-data-dump")

	err := store.Put(context.Background(), "job-1", "huge.pdf", strings.Repeat("a", maxItemBytes))
	assert.ErrorIs(t, err, ErrTextTooLarge)
	assert.Empty(t, fake.inputs)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "Job0f8fad5bd9cb469fa16570867728950e", CollectionName("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "Job0f8fad5bd9cb469fa16570867728950e", CollectionName("0f8fad5bd9cb469fa16570867728950e"))
	assert.Equal(t, "Jobmy_job_1", CollectionName("my job/1"))
}
