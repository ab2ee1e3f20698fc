package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// maxItemBytes is DynamoDB's per-item size limit.
const maxItemBytes = 400 * 1024

// PutItemAPI is the slice of the DynamoDB client TextStore needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// TextStore keeps the raw extracted text of every ingested file, one item per
// file keyed "{job_id}_{filename}". Writes overwrite, so re-ingestion is idempotent.
type TextStore struct {
	client PutItemAPI
	table  string
}

type textItem struct {
	File string `dynamodbav:"file"`
	Text string `dynamodbav:"text"`
}

// NewTextStore creates a TextStore writing to table.
func NewTextStore(client PutItemAPI, table string) *TextStore {
	return &TextStore{client: client, table: table}
}

// TextKey is the item key for a job's file.
func TextKey(jobID, filename string) string {
	return jobID + "_" + filename
}

// Put stores the text for one file.
func (s *TextStore) Put(ctx context.Context, jobID, filename, text string) error {
	key := TextKey(jobID, filename)
	if size := len("file") + len(key) + len("text") + len(text); size > maxItemBytes {
		return fmt.Errorf("%w: %s is %d bytes", ErrTextTooLarge, key, size)
	}

	item, err := attributevalue.MarshalMap(textItem{File: key, Text: text})
	if err != nil {
		return fmt.Errorf("marshal text item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %s into %s: %w", key, s.table, err)
	}
	return nil
}
