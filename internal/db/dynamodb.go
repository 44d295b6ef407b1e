package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	FEEDBACK_TABLE_NAME = "FeedbackItems"
	MAX_BATCH_WRITE     = 25
	MAX_WRITE_RETRIES   = 3
)

// DynamoAPI is the slice of the DynamoDB client the item store uses.
type DynamoAPI interface {
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoItemStore keeps feedback items partitioned by batch_id with
// item_id as the sort key.
type DynamoItemStore struct {
	client  DynamoAPI
	table   string
	backoff time.Duration
}

func NewDynamoItemStore(client DynamoAPI) *DynamoItemStore {
	return &DynamoItemStore{client: client, table: FEEDBACK_TABLE_NAME, backoff: 500 * time.Millisecond}
}

func (s *DynamoItemStore) Store(ctx context.Context, batchID string, items []models.FeedbackItem) error {
	for i := 0; i < len(items); i += MAX_BATCH_WRITE {
		if err := ctx.Err(); err != nil {
			slog.Warn("[DynamoDB] context canceled")
			return err
		}

		end := min(i+MAX_BATCH_WRITE, len(items))
		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			av, err := attributevalue.MarshalMap(item)
			if err != nil {
				return fmt.Errorf("[DynamoDB] Failed to marshal item %s: %w", item.ID, err)
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: av},
			})
		}

		if err := s.batchWrite(ctx, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Stored feedback batch",
		slog.String("batch_id", batchID),
		slog.Int("count", len(items)))
	return nil
}

func (s *DynamoItemStore) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write feedback: %w", err)
	}

	retryCount := 0
	backoff := s.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < MAX_WRITE_RETRIES {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if n := len(out.UnprocessedItems[s.table]); n > 0 {
		return fmt.Errorf("[DynamoDB] %d items were not written after %d retries", n, MAX_WRITE_RETRIES)
	}
	return nil
}

// Exists reads at most one key of the partition.
func (s *DynamoItemStore) Exists(ctx context.Context, batchID string) (bool, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("batch_id = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: batchID},
		},
		ProjectionExpression: aws.String("item_id"),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("[DynamoDB] Lookup for batch %s failed: %w", batchID, err)
	}
	return len(out.Items) > 0, nil
}

// Load returns a batch in item_id order.
func (s *DynamoItemStore) Load(ctx context.Context, batchID string) ([]models.FeedbackItem, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("batch_id = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: batchID},
		},
	})

	var items []models.FeedbackItem
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Query for batch %s failed: %w", batchID, err)
		}
		var page []models.FeedbackItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal feedback page", slog.String("error", err.Error()))
			return nil, err
		}
		for _, item := range page {
			item.Timestamp = item.Timestamp.UTC()
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return nil, errs.ErrBatchNotFound
	}
	slog.Info("[DynamoDB] Loaded feedback batch",
		slog.String("batch_id", batchID),
		slog.Int("count", len(items)))
	return items, nil
}
